package apifakes

import (
	"context"
	"sync"

	"github.com/mealroute/session-gateway/backend"
	"github.com/mealroute/session-gateway/identity"
)

// FakeAPI is a scriptable session.API for tests. Each operation returns the
// configured grant/identity/error; hooks allow per-call behavior and panics.
type FakeAPI struct {
	lock sync.Mutex

	LoginGrant  *backend.Grant
	LoginErr    error
	SignupGrant *backend.Grant
	SignupErr   error
	ProfileID   *identity.Identity
	ProfileErr  error
	LogoutErr   error

	// Hooks override the static fields above when non-nil.
	LoginHook   func(creds backend.Credentials) (*backend.Grant, error)
	ProfileHook func(token string) (*identity.Identity, error)
	LogoutHook  func(token string) error

	LoginCalls   int
	SignupCalls  int
	ProfileCalls int
	LogoutCalls  int

	ProfileTokens []string
}

func (f *FakeAPI) Login(_ context.Context, creds backend.Credentials) (*backend.Grant, error) {
	f.lock.Lock()
	f.LoginCalls++
	hook := f.LoginHook
	grant, err := f.LoginGrant, f.LoginErr
	f.lock.Unlock()

	if hook != nil {
		return hook(creds)
	}
	return grant, err
}

func (f *FakeAPI) Signup(_ context.Context, _ backend.Credentials) (*backend.Grant, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.SignupCalls++
	return f.SignupGrant, f.SignupErr
}

func (f *FakeAPI) Profile(_ context.Context, token string) (*identity.Identity, error) {
	f.lock.Lock()
	f.ProfileCalls++
	f.ProfileTokens = append(f.ProfileTokens, token)
	hook := f.ProfileHook
	ident, err := f.ProfileID, f.ProfileErr
	f.lock.Unlock()

	if hook != nil {
		return hook(token)
	}
	return ident, err
}

func (f *FakeAPI) Logout(_ context.Context, token string) error {
	f.lock.Lock()
	f.LogoutCalls++
	hook := f.LogoutHook
	err := f.LogoutErr
	f.lock.Unlock()

	if hook != nil {
		return hook(token)
	}
	return err
}
