package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mealroute/session-gateway/backend"
	"github.com/mealroute/session-gateway/roles"
)

func newTestClient(t *testing.T, role roles.Config, handler http.HandlerFunc) (*backend.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := backend.New(role, srv.URL, backend.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return client, srv
}

func TestLoginSuccess(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody map[string]any

	client, _ := newTestClient(t, roles.User(), func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"token": "tok-1",
				"user":  map[string]any{"id": "u1", "name": "Sam"},
			},
		})
	})

	grant, err := client.Login(context.Background(), backend.Credentials{"email": "sam@example.com", "password": "pw"})
	require.NoError(t, err)
	require.Equal(t, "/auth/user/login", gotPath)
	require.Equal(t, "application/json", gotContentType)
	require.Equal(t, "sam@example.com", gotBody["email"])
	require.Equal(t, "tok-1", grant.Token)
	require.Equal(t, "u1", grant.Identity.ID)
	require.Equal(t, "Sam", grant.Identity.Field("name"))
}

func TestLoginRejectionCarriesBackendMessage(t *testing.T) {
	client, _ := newTestClient(t, roles.User(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "account suspended",
		})
	})

	_, err := client.Login(context.Background(), backend.Credentials{})
	apiErr, ok := backend.AsAPIError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, "account suspended", apiErr.Message)
	require.Empty(t, apiErr.Challenge)
}

func TestAdminLoginChallenge(t *testing.T) {
	client, _ := newTestClient(t, roles.Admin(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "verification code sent",
			"data":    map[string]any{"challenge": "otp_required"},
		})
	})

	_, err := client.Login(context.Background(), backend.Credentials{})
	apiErr, ok := backend.AsAPIError(err)
	require.True(t, ok)
	require.True(t, apiErr.HasChallenge(backend.ChallengeOTPRequired))
	require.Equal(t, "verification code sent", apiErr.Message)
}

func TestLoginSuccessFalseWithOKStatus(t *testing.T) {
	// Some backends answer 200 with success:false; that is still a failure.
	client, _ := newTestClient(t, roles.User(), func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "invalid credentials",
		})
	})

	_, err := client.Login(context.Background(), backend.Credentials{})
	apiErr, ok := backend.AsAPIError(err)
	require.True(t, ok)
	require.Equal(t, "invalid credentials", apiErr.Message)
}

func TestMalformedResponseNormalizes(t *testing.T) {
	client, _ := newTestClient(t, roles.User(), func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway error</html>"))
	})

	_, err := client.Login(context.Background(), backend.Credentials{})
	_, ok := backend.AsAPIError(err)
	require.True(t, ok)
}

func TestTransportFailureNormalizes(t *testing.T) {
	client, srv := newTestClient(t, roles.User(), func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := client.Login(context.Background(), backend.Credentials{})
	apiErr, ok := backend.AsAPIError(err)
	require.True(t, ok)
	require.NotEmpty(t, apiErr.Message)
}

func TestProfileSendsBearerToken(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, roles.Restaurant(), func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/auth/restaurant/profile", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"restaurant": map[string]any{"id": "r9", "name": "Spice Garden"},
			},
		})
	})

	ident, err := client.Profile(context.Background(), "tok-9")
	require.NoError(t, err)
	require.Equal(t, "Bearer tok-9", gotAuth)
	require.Equal(t, "r9", ident.ID)
}

func TestSignupUnsupportedRoleSkipsNetwork(t *testing.T) {
	requests := 0
	client, _ := newTestClient(t, roles.Delivery(), func(w http.ResponseWriter, r *http.Request) {
		requests++
	})

	_, err := client.Signup(context.Background(), backend.Credentials{})
	require.ErrorIs(t, err, backend.ErrSignupUnsupported)
	require.Zero(t, requests)
}

func TestLogout(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, roles.User(), func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	require.NoError(t, client.Logout(context.Background(), "tok-1"))
	require.Equal(t, "Bearer tok-1", gotAuth)
}

func TestGrantWithoutTokenFails(t *testing.T) {
	client, _ := newTestClient(t, roles.User(), func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"user": map[string]any{"id": "u1"}},
		})
	})

	_, err := client.Login(context.Background(), backend.Credentials{})
	_, ok := backend.AsAPIError(err)
	require.True(t, ok)
}
