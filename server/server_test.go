package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mealroute/session-gateway/backend"
	"github.com/mealroute/session-gateway/credstore/storefakes"
	"github.com/mealroute/session-gateway/identity"
	"github.com/mealroute/session-gateway/internal/config"
	"github.com/mealroute/session-gateway/roles"
	"github.com/mealroute/session-gateway/server"
	"github.com/mealroute/session-gateway/session"
	"github.com/mealroute/session-gateway/session/apifakes"
)

// testConfig satisfies config.Config with env-backed defaults, overriding
// the login limiter so rate-limit tests stay deterministic.
type testConfig struct {
	config.EnvVars
	config.Backend
	config.Cors
	config.Security

	loginBurst int
}

func (c testConfig) GetLoginBurst() int {
	if c.loginBurst > 0 {
		return c.loginBurst
	}
	return 100
}

func (c testConfig) GetLoginRatePerMinute() float64 { return 1 }

type serverFixture struct {
	srv   *server.Server
	store *storefakes.FakeStore
	apis  map[roles.Role]*apifakes.FakeAPI
}

func setupServerFixture(t *testing.T, cfg testConfig) *serverFixture {
	t.Helper()

	store := storefakes.NewFakeStore()
	apis := make(map[roles.Role]*apifakes.FakeAPI, 4)

	build := func(rc roles.Config) *session.Manager {
		api := &apifakes.FakeAPI{}
		apis[rc.Role] = api
		m, err := session.NewManager(rc, api, store, zerolog.Nop())
		require.NoError(t, err)
		return m
	}

	managers := &server.Managers{
		User:       build(roles.User()),
		Admin:      build(roles.Admin()),
		Restaurant: build(roles.Restaurant()),
		Delivery:   build(roles.Delivery()),
	}

	return &serverFixture{
		srv:   server.NewWithManagers(cfg, managers, zerolog.Nop()),
		store: store,
		apis:  apis,
	}
}

func (f *serverFixture) restoreAll(t *testing.T) {
	t.Helper()
	f.srv.Managers().BootRestore(context.Background())
}

func (f *serverFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func grantFor(t *testing.T, id, token string) *backend.Grant {
	t.Helper()
	ident, err := identity.FromJSON(json.RawMessage(`{"id":"` + id + `","name":"Test"}`))
	require.NoError(t, err)
	return &backend.Grant{Token: token, Identity: ident}
}

type envelope struct {
	Success bool                       `json:"success"`
	Message string                     `json:"message"`
	Data    map[string]json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestLoginEndpoint(t *testing.T) {
	f := setupServerFixture(t, testConfig{})
	f.restoreAll(t)

	f.apis[roles.RoleUser].LoginGrant = grantFor(t, "u1", "tok-u")

	rec := f.do(t, http.MethodPost, "/portal/user/login", `{"email":"sam@example.com","password":"pw"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)
	require.JSONEq(t, `"authenticated"`, string(env.Data["phase"]))
	require.Contains(t, string(env.Data["identity"]), `"u1"`)
}

func TestLoginUnknownRole(t *testing.T) {
	f := setupServerFixture(t, testConfig{})
	f.restoreAll(t)

	rec := f.do(t, http.MethodPost, "/portal/rider/login", `{}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginFailureRelaysBackendMessage(t *testing.T) {
	f := setupServerFixture(t, testConfig{})
	f.restoreAll(t)

	f.apis[roles.RoleUser].LoginErr = &backend.APIError{Status: 401, Message: "invalid credentials"}

	rec := f.do(t, http.MethodPost, "/portal/user/login", `{}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	env := decodeEnvelope(t, rec)
	require.False(t, env.Success)
	require.Equal(t, "invalid credentials", env.Message)
}

func TestAdminChallengeRelayedIntact(t *testing.T) {
	f := setupServerFixture(t, testConfig{})
	f.restoreAll(t)

	f.apis[roles.RoleAdmin].LoginErr = &backend.APIError{
		Status:    401,
		Message:   "verification code sent",
		Challenge: backend.ChallengeOTPRequired,
	}

	rec := f.do(t, http.MethodPost, "/portal/admin/login", `{}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	env := decodeEnvelope(t, rec)
	require.JSONEq(t, `"otp_required"`, string(env.Data["challenge"]))
}

func TestRoleIsolation(t *testing.T) {
	f := setupServerFixture(t, testConfig{})
	f.restoreAll(t)

	f.apis[roles.RoleUser].LoginGrant = grantFor(t, "u1", "tok-u")
	rec := f.do(t, http.MethodPost, "/portal/user/login", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// The other three roles are untouched, in memory and in the store.
	for _, r := range []roles.Role{roles.RoleAdmin, roles.RoleRestaurant, roles.RoleDelivery} {
		require.Equal(t, session.PhaseUnauthenticated, f.srv.Managers().ByRole(r).Snapshot().Phase)
		require.False(t, f.store.Has(r))
	}
	require.True(t, f.store.Has(roles.RoleUser))

	// And logging the user out leaves an authenticated admin alone.
	f.apis[roles.RoleAdmin].LoginGrant = grantFor(t, "a1", "tok-a")
	rec = f.do(t, http.MethodPost, "/portal/admin/login", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/portal/user/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, session.PhaseAuthenticated, f.srv.Managers().Admin.Snapshot().Phase)
	require.True(t, f.store.Has(roles.RoleAdmin))
	require.False(t, f.store.Has(roles.RoleUser))
}

func TestProfileGuard(t *testing.T) {
	f := setupServerFixture(t, testConfig{})

	// Still restoring: the guard holds the request.
	rec := f.do(t, http.MethodGet, "/portal/user/profile", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	f.restoreAll(t)

	// Unauthenticated: redirected to the role's login route.
	rec = f.do(t, http.MethodGet, "/portal/user/profile", "")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, roles.User().LoginRoute, rec.Header().Get("Location"))

	// Authenticated: the identity comes back.
	f.apis[roles.RoleUser].LoginGrant = grantFor(t, "u1", "tok-u")
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/portal/user/login", `{}`).Code)

	rec = f.do(t, http.MethodGet, "/portal/user/profile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"u1"`)
}

func TestLogoutAlwaysSucceeds(t *testing.T) {
	f := setupServerFixture(t, testConfig{})
	f.restoreAll(t)

	f.apis[roles.RoleUser].LoginGrant = grantFor(t, "u1", "tok-u")
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/portal/user/login", `{}`).Code)

	f.apis[roles.RoleUser].LogoutErr = &backend.APIError{Status: 500, Message: "backend down"}

	rec := f.do(t, http.MethodPost, "/portal/user/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, session.PhaseUnauthenticated, f.srv.Managers().User.Snapshot().Phase)
	require.False(t, f.store.Has(roles.RoleUser))
}

func TestSignupUnavailableForDelivery(t *testing.T) {
	f := setupServerFixture(t, testConfig{})
	f.restoreAll(t)

	rec := f.do(t, http.MethodPost, "/portal/delivery/signup", `{}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionStateEndpoint(t *testing.T) {
	f := setupServerFixture(t, testConfig{})

	rec := f.do(t, http.MethodGet, "/portal/restaurant/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.JSONEq(t, `"restoring"`, string(env.Data["phase"]))

	f.restoreAll(t)

	rec = f.do(t, http.MethodGet, "/portal/restaurant/session", "")
	env = decodeEnvelope(t, rec)
	require.JSONEq(t, `"unauthenticated"`, string(env.Data["phase"]))
}

func TestLoginRateLimit(t *testing.T) {
	f := setupServerFixture(t, testConfig{loginBurst: 2})
	f.restoreAll(t)

	f.apis[roles.RoleUser].LoginErr = &backend.APIError{Status: 401, Message: "invalid credentials"}

	require.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/portal/user/login", `{}`).Code)
	require.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/portal/user/login", `{}`).Code)

	rec := f.do(t, http.MethodPost, "/portal/user/login", `{}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Other roles keep their own budget.
	f.apis[roles.RoleAdmin].LoginErr = &backend.APIError{Status: 401, Message: "invalid credentials"}
	require.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/portal/admin/login", `{}`).Code)
}

func TestHealthz(t *testing.T) {
	f := setupServerFixture(t, testConfig{})
	f.restoreAll(t)

	rec := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "unauthenticated")
}
