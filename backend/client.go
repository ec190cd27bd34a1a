// Package backend is the HTTP client for the delivery platform's auth API.
// One Client serves exactly one role; all four roles share the same envelope
// shape and differ only in endpoint paths and the identity key under "data".
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mealroute/session-gateway/identity"
	"github.com/mealroute/session-gateway/roles"
)

const defaultRequestTimeout = 15 * time.Second

// ErrSignupUnsupported is returned for roles that register out of band.
var ErrSignupUnsupported = errors.New("signup is not supported for this role")

// Grant is a successful login or signup: a bearer token plus the identity the
// backend returned alongside it.
type Grant struct {
	Token    string
	Identity *identity.Identity
}

// Credentials is the role-appropriate login payload, passed through to the
// backend as-is (email+password for most roles, phone+OTP variants exist).
type Credentials map[string]any

// Client calls the auth endpoints for a single role. The zero value is not
// usable; construct with New.
type Client struct {
	role       roles.Config
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (primarily for tests
// and for callers that need custom transports or timeouts).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a Client for one role against the given API base URL.
func New(role roles.Config, baseURL string, options ...Option) (*Client, error) {
	if err := role.Validate(); err != nil {
		return nil, errors.Wrap(err, "[backend.New] invalid role config")
	}
	if baseURL == "" {
		return nil, errors.New("[backend.New] baseURL is required")
	}
	c := &Client{
		role:       role,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Role returns the role config this client was built for.
func (c *Client) Role() roles.Config { return c.role }

// Login exchanges credentials for a Grant. Backend rejections come back as an
// *APIError carrying the backend's message and, for the admin role, an
// optional challenge code.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Grant, error) {
	env, err := c.post(ctx, c.role.LoginPath, "", creds)
	if err != nil {
		return nil, err
	}
	return c.grantFromEnvelope(env)
}

// Signup registers a new account and returns a Grant, for roles that allow
// self-registration. Restaurant and delivery partners return
// ErrSignupUnsupported without touching the network.
func (c *Client) Signup(ctx context.Context, payload Credentials) (*Grant, error) {
	if !c.role.AllowSignup {
		return nil, ErrSignupUnsupported
	}
	env, err := c.post(ctx, c.role.SignupPath, "", payload)
	if err != nil {
		return nil, err
	}
	return c.grantFromEnvelope(env)
}

// Profile fetches the current identity for a previously issued token. Used
// both to validate a restored token at boot and to enrich a fresh login.
func (c *Client) Profile(ctx context.Context, token string) (*identity.Identity, error) {
	env, err := c.get(ctx, c.role.ProfilePath, token)
	if err != nil {
		return nil, err
	}
	return c.identityFromEnvelope(env)
}

// Logout asks the backend to invalidate the token. Callers treat failure as
// non-fatal; this method only reports it.
func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := c.post(ctx, c.role.LogoutPath, token, nil)
	return err
}

// envelope is the backend's uniform response shape.
type envelope struct {
	Success bool                       `json:"success"`
	Message string                     `json:"message"`
	Data    map[string]json.RawMessage `json:"data"`
}

func (c *Client) grantFromEnvelope(env *envelope) (*Grant, error) {
	var token string
	if raw, ok := env.Data["token"]; ok {
		if err := json.Unmarshal(raw, &token); err != nil {
			return nil, errors.Wrap(err, "[backend.grantFromEnvelope] malformed token")
		}
	}
	if token == "" {
		return nil, &APIError{Message: "backend response is missing a token"}
	}
	ident, err := c.identityFromEnvelope(env)
	if err != nil {
		return nil, err
	}
	return &Grant{Token: token, Identity: ident}, nil
}

func (c *Client) identityFromEnvelope(env *envelope) (*identity.Identity, error) {
	raw, ok := env.Data[c.role.IdentityKey]
	if !ok {
		return nil, &APIError{Message: "backend response is missing the " + c.role.IdentityKey + " payload"}
	}
	ident, err := identity.FromJSON(raw)
	if err != nil {
		return nil, &APIError{Message: "backend returned an unreadable " + c.role.IdentityKey + " payload"}
	}
	return ident, nil
}

func (c *Client) get(ctx context.Context, path, token string) (*envelope, error) {
	return c.do(ctx, http.MethodGet, path, token, nil)
}

func (c *Client) post(ctx context.Context, path, token string, body any) (*envelope, error) {
	return c.do(ctx, http.MethodPost, path, token, body)
}

// do performs one request and normalizes every failure mode (transport
// error, non-2xx, success:false, malformed body) into an *APIError. Nothing
// escapes this method as a panic or a raw transport error.
func (c *Client) do(ctx context.Context, method, path, token string, body any) (*envelope, error) {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "[backend.do] marshal request body")
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "[backend.do] build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Message: transportFailureMessage, cause: err}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&env); err != nil {
		return nil, &APIError{Status: resp.StatusCode, Message: transportFailureMessage, cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		return nil, apiErrorFromEnvelope(resp.StatusCode, &env)
	}
	return &env, nil
}

const (
	transportFailureMessage = "could not reach the server, please try again"
	maxResponseBytes        = 1 << 20
)
