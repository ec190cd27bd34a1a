// Package guard gates protected routes on a role's session state. The
// decision is a pure function of the state; the HTTP form wraps it as
// middleware in the same shape the rest of the server's middleware uses.
package guard

import (
	"context"
	"net/http"

	"github.com/mealroute/session-gateway/identity"
	"github.com/mealroute/session-gateway/session"
)

// Decision is one of the three renderable outcomes for a protected route.
type Decision int

const (
	// DecisionWait holds the request: the session is still restoring.
	DecisionWait Decision = iota
	// DecisionRedirect sends the caller to the role's login route.
	DecisionRedirect
	// DecisionAllow lets the protected handler run.
	DecisionAllow
)

func (d Decision) String() string {
	switch d {
	case DecisionWait:
		return "wait"
	case DecisionRedirect:
		return "redirect"
	case DecisionAllow:
		return "allow"
	}
	return "unknown"
}

// Decide maps session state to an outcome. It performs no I/O and holds no
// state.
func Decide(st session.State) Decision {
	switch st.Phase {
	case session.PhaseRestoring:
		return DecisionWait
	case session.PhaseAuthenticated:
		return DecisionAllow
	default:
		return DecisionRedirect
	}
}

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

// ContextKeyIdentity stores the authenticated identity for the protected
// handler.
const ContextKeyIdentity ContextKey = "session_identity"

// IdentityFromContext returns the identity the guard injected, if any.
func IdentityFromContext(ctx context.Context) (*identity.Identity, bool) {
	ident, ok := ctx.Value(ContextKeyIdentity).(*identity.Identity)
	return ident, ok && ident != nil
}

// Protect builds middleware gating a handler on the manager's state: a 503
// with Retry-After while restoring, a redirect to the role's login route
// while unauthenticated, and the handler with the identity in context when
// authenticated.
func Protect(m *session.Manager) func(http.HandlerFunc) http.HandlerFunc {
	loginRoute := m.Role().LoginRoute
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			st := m.Snapshot()
			switch Decide(st) {
			case DecisionWait:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "session restore in progress", http.StatusServiceUnavailable)
			case DecisionRedirect:
				http.Redirect(w, r, loginRoute, http.StatusSeeOther)
			case DecisionAllow:
				ctx := context.WithValue(r.Context(), ContextKeyIdentity, st.Identity)
				next(w, r.WithContext(ctx))
			}
		}
	}
}
