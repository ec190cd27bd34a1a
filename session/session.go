// Package session owns the lifecycle of one role's authenticated session:
// restore at boot, login, signup, logout. A Manager is the only component
// that mutates its role's credential record or in-memory session state.
package session

import (
	"context"

	"github.com/mealroute/session-gateway/backend"
	"github.com/mealroute/session-gateway/identity"
)

// Phase is the session's lifecycle position. Exactly one phase holds at a
// time. PhaseRestoring is entered once, at construction, and never again.
type Phase string

const (
	PhaseRestoring       Phase = "restoring"
	PhaseAuthenticated   Phase = "authenticated"
	PhaseUnauthenticated Phase = "unauthenticated"
)

// State is a point-in-time snapshot of a Manager. Identity is non-nil iff
// Phase is PhaseAuthenticated.
type State struct {
	Phase    Phase
	Identity *identity.Identity
}

// API is the slice of the backend client the Manager depends on.
// *backend.Client satisfies it; tests substitute a fake.
type API interface {
	Login(ctx context.Context, creds backend.Credentials) (*backend.Grant, error)
	Signup(ctx context.Context, payload backend.Credentials) (*backend.Grant, error)
	Profile(ctx context.Context, token string) (*identity.Identity, error)
	Logout(ctx context.Context, token string) error
}

var _ API = (*backend.Client)(nil)
