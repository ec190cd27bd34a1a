package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/mealroute/session-gateway/backend"
	"github.com/mealroute/session-gateway/guard"
	"github.com/mealroute/session-gateway/internal/obs"
	"github.com/mealroute/session-gateway/session"
)

const maxRequestBytes = 1 << 20

// apiResponse mirrors the backend's envelope so portal front ends deal with
// one response shape end to end.
type apiResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp apiResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeFailure(w http.ResponseWriter, err error) {
	if apiErr, ok := backend.AsAPIError(err); ok {
		status := apiErr.Status
		if status < 400 {
			// No backend status means the backend never answered.
			status = http.StatusBadGateway
		}
		resp := apiResponse{Success: false, Message: apiErr.Message}
		if apiErr.Challenge != "" {
			resp.Data = map[string]any{"challenge": apiErr.Challenge}
		}
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusInternalServerError, apiResponse{Success: false, Message: "something went wrong, please try again"})
}

func (s *Server) decodePayload(r *http.Request) (backend.Credentials, error) {
	var payload backend.Credentials
	body := io.LimitReader(r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// LoginHandler authenticates one role's session from a JSON credential
// payload. A rejected login leaves any existing session untouched and relays
// the backend's message, including the admin OTP challenge code when present.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mgr, err := s.manager(r.PathValue("role"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		role := string(mgr.Role().Role)

		creds, err := s.decodePayload(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Message: "invalid request body"})
			return
		}

		if err := mgr.Login(r.Context(), creds); err != nil {
			obs.RecordLoginAttempt(role, "login", "failure")
			writeFailure(w, err)
			return
		}

		obs.RecordLoginAttempt(role, "login", "success")
		s.respondSession(w, mgr, http.StatusOK)
	}
}

// SignupHandler registers a new account for roles that self-register.
func (s *Server) SignupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mgr, err := s.manager(r.PathValue("role"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		role := string(mgr.Role().Role)

		payload, err := s.decodePayload(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Message: "invalid request body"})
			return
		}

		if err := mgr.Signup(r.Context(), payload); err != nil {
			if errors.Is(err, backend.ErrSignupUnsupported) {
				writeJSON(w, http.StatusNotFound, apiResponse{Success: false, Message: "signup is not available for this role"})
				return
			}
			obs.RecordLoginAttempt(role, "signup", "failure")
			writeFailure(w, err)
			return
		}

		obs.RecordLoginAttempt(role, "signup", "success")
		s.respondSession(w, mgr, http.StatusCreated)
	}
}

// LogoutHandler tears the role's session down. It always reports success;
// remote invalidation failures are not the caller's problem.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mgr, err := s.manager(r.PathValue("role"))
		if err != nil {
			http.NotFound(w, r)
			return
		}

		mgr.Logout(r.Context())
		obs.SetAuthenticated(string(mgr.Role().Role), false)
		writeJSON(w, http.StatusOK, apiResponse{Success: true})
	}
}

// SessionStateHandler reports the role's current phase and identity; front
// ends poll it to decide between a loading screen, a login form, and the
// portal itself.
func (s *Server) SessionStateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mgr, err := s.manager(r.PathValue("role"))
		if err != nil {
			http.NotFound(w, r)
			return
		}

		st := mgr.Snapshot()
		data := map[string]any{"phase": string(st.Phase)}
		if st.Identity != nil {
			data["identity"] = json.RawMessage(st.Identity.Raw)
		}
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: data})
	}
}

// ProfileHandler serves the authenticated identity. It only runs behind a
// role's guard, so the identity is always present in the context.
func (s *Server) ProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := guard.IdentityFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusInternalServerError, apiResponse{Success: false, Message: "no identity in context"})
			return
		}
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]any{
			"identity": json.RawMessage(ident.Raw),
		}})
	}
}

// HealthzHandler reports liveness plus each role's settled phase.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		phases := make(map[string]any, 4)
		for _, mgr := range s.managers.All() {
			phases[string(mgr.Role().Role)] = string(mgr.Snapshot().Phase)
		}
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]any{"sessions": phases}})
	}
}

func (s *Server) respondSession(w http.ResponseWriter, mgr *session.Manager, status int) {
	st := mgr.Snapshot()
	obs.SetAuthenticated(string(mgr.Role().Role), st.Phase == session.PhaseAuthenticated)

	data := map[string]any{"phase": string(st.Phase)}
	if st.Identity != nil {
		data["identity"] = json.RawMessage(st.Identity.Raw)
	}
	writeJSON(w, status, apiResponse{Success: true, Data: data})
}
