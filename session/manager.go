package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mealroute/session-gateway/backend"
	"github.com/mealroute/session-gateway/credstore"
	"github.com/mealroute/session-gateway/identity"
	"github.com/mealroute/session-gateway/roles"
)

// Manager orchestrates one role's session. Backend calls happen outside the
// lock; every state write is guarded by an attempt sequence so a slow
// response that was superseded by a newer call cannot clobber newer state.
type Manager struct {
	role    roles.Config
	api     API
	store   credstore.Store
	log     zerolog.Logger
	nowTime func() time.Time

	lock     sync.Mutex
	phase    Phase
	ident    *identity.Identity
	token    string
	restored bool
	seq      uint64
}

// ManagerOption modifies a Manager at construction.
type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing the token
// expiry short-circuit).
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// NewManager builds a Manager in PhaseRestoring. Callers must run Restore
// once before relying on Snapshot; the access guard holds traffic until then.
func NewManager(role roles.Config, api API, store credstore.Store, log zerolog.Logger, options ...ManagerOption) (*Manager, error) {
	if err := role.Validate(); err != nil {
		return nil, errors.Wrap(err, "[NewManager] invalid role config")
	}
	if api == nil {
		return nil, errors.New("[NewManager] api is required")
	}
	if store == nil {
		return nil, errors.New("[NewManager] store is required")
	}

	m := &Manager{
		role:    role,
		api:     api,
		store:   store,
		log:     log.With().Str("role", string(role.Role)).Logger(),
		nowTime: time.Now,
		phase:   PhaseRestoring,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Role returns the role config this Manager serves.
func (m *Manager) Role() roles.Config { return m.role }

// Snapshot returns the current session state.
func (m *Manager) Snapshot() State {
	m.lock.Lock()
	defer m.lock.Unlock()
	return State{Phase: m.phase, Identity: m.ident}
}

// Token returns the current bearer token, or "" when not authenticated.
func (m *Manager) Token() string {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.token
}

// Restore validates any persisted credential record and settles the session
// into authenticated or unauthenticated. It runs its work at most once; later
// calls return the settled state immediately. Restore never propagates a
// failure: a missing record, a rejected token, a network fault, and a
// panicking client all settle the session as unauthenticated, the last three
// purging the stored record.
func (m *Manager) Restore(ctx context.Context) State {
	m.lock.Lock()
	if m.restored {
		st := State{Phase: m.phase, Identity: m.ident}
		m.lock.Unlock()
		return st
	}
	m.restored = true
	attempt := m.nextAttemptLocked()
	m.lock.Unlock()

	rec, ok, err := m.store.Read(m.role.Role)
	if err != nil || !ok {
		if err != nil {
			m.log.Warn().Err(err).Msg("credential store unreadable at boot")
		}
		return m.settle(attempt, PhaseUnauthenticated, nil, "")
	}

	// A stored token that is a JWT with a passed exp claim cannot validate;
	// skip the round-trip and purge directly.
	if m.tokenExpired(rec.Token) {
		m.log.Info().Msg("stored token expired, purging session")
		m.purge()
		return m.settle(attempt, PhaseUnauthenticated, nil, "")
	}

	ident, err := m.safeProfile(ctx, rec.Token)
	if err != nil {
		m.log.Info().Err(err).Msg("stored token rejected, purging session")
		m.purge()
		return m.settle(attempt, PhaseUnauthenticated, nil, "")
	}

	m.log.Info().Str("identity", ident.ID).Msg("session restored")
	return m.settle(attempt, PhaseAuthenticated, ident, rec.Token)
}

// Login exchanges credentials for a session. On success the grant is
// persisted and a single profile call enriches the identity; a failed
// enrichment falls back to the login identity rather than failing the login.
// On failure the session is left exactly as it was, authenticated or not,
// and the backend failure (admin challenge code intact) is returned.
func (m *Manager) Login(ctx context.Context, creds backend.Credentials) error {
	return m.establish(ctx, func() (*backend.Grant, error) {
		return m.api.Login(ctx, creds)
	}, "login")
}

// Signup registers a new account; its success path is identical to Login's.
func (m *Manager) Signup(ctx context.Context, payload backend.Credentials) error {
	if !m.role.AllowSignup {
		return backend.ErrSignupUnsupported
	}
	return m.establish(ctx, func() (*backend.Grant, error) {
		return m.api.Signup(ctx, payload)
	}, "signup")
}

func (m *Manager) establish(ctx context.Context, acquire func() (*backend.Grant, error), op string) error {
	m.lock.Lock()
	attempt := m.nextAttemptLocked()
	m.lock.Unlock()

	grant, err := acquire()
	if err != nil {
		// Phase untouched: a failed login while already authenticated must
		// not log the caller out. The attempt's sequence slot is released
		// so an older call still on the wire, such as the boot restore,
		// settles normally.
		m.releaseAttempt(attempt)
		m.log.Info().Err(err).Msgf("%s rejected", op)
		return err
	}

	if m.superseded(attempt) {
		m.log.Debug().Msgf("%s superseded by a newer session change", op)
		return nil
	}

	ident := grant.Identity
	if fresh, err := m.safeProfile(ctx, grant.Token); err == nil && fresh != nil {
		ident = fresh
	} else if err != nil {
		m.log.Debug().Err(err).Msg("profile enrichment failed, keeping login identity")
	}

	// Stale-check, persistence, and the phase change happen in one locked
	// section: a logout that settled while we were on the wire must not see
	// its cleared record rewritten.
	m.lock.Lock()
	if attempt != m.seq {
		m.lock.Unlock()
		m.log.Debug().Msgf("%s superseded by a newer session change", op)
		return nil
	}
	if err := m.store.Write(m.role.Role, credstore.Record{
		Token:    grant.Token,
		Identity: grant.Identity.Raw,
	}); err != nil {
		m.seq--
		m.lock.Unlock()
		return errors.Wrapf(err, "[Manager.%s] persist credentials", op)
	}
	m.phase = PhaseAuthenticated
	m.ident = ident
	m.token = grant.Token
	m.lock.Unlock()

	if ident != nil {
		m.log.Info().Str("identity", ident.ID).Msgf("%s succeeded", op)
	}
	return nil
}

func (m *Manager) superseded(attempt uint64) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return attempt != m.seq
}

// releaseAttempt gives a failed attempt's sequence slot back so that an
// older in-flight attempt can still settle.
func (m *Manager) releaseAttempt(attempt uint64) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if attempt == m.seq {
		m.seq--
	}
}

// Logout tears the session down. The remote invalidation is best-effort and
// its failure is swallowed; the local record is cleared and the phase set to
// unauthenticated unconditionally.
func (m *Manager) Logout(ctx context.Context) {
	m.lock.Lock()
	attempt := m.nextAttemptLocked()
	token := m.token
	m.lock.Unlock()

	if token != "" {
		if err := m.safeLogout(ctx, token); err != nil {
			m.log.Debug().Err(err).Msg("remote logout failed, continuing local teardown")
		}
	}

	m.purge()
	m.settle(attempt, PhaseUnauthenticated, nil, "")
	m.log.Info().Msg("logged out")
}

// settle writes the outcome of an attempt unless a newer attempt has already
// begun, in which case the current state is returned untouched.
func (m *Manager) settle(attempt uint64, phase Phase, ident *identity.Identity, token string) State {
	m.lock.Lock()
	defer m.lock.Unlock()
	if attempt == m.seq {
		m.phase = phase
		m.ident = ident
		m.token = token
	}
	return State{Phase: m.phase, Identity: m.ident}
}

func (m *Manager) nextAttemptLocked() uint64 {
	m.seq++
	return m.seq
}

// purge clears the stored record; a failing store is logged, not propagated,
// since every purge path is already tearing the session down.
func (m *Manager) purge() {
	if err := m.store.Clear(m.role.Role); err != nil {
		m.log.Warn().Err(err).Msg("failed to clear credential store")
	}
}

// safeProfile shields callers from a panicking API implementation; a panic
// reads as a failed validation.
func (m *Manager) safeProfile(ctx context.Context, token string) (ident *identity.Identity, err error) {
	defer func() {
		if r := recover(); r != nil {
			ident = nil
			err = errors.Errorf("[Manager.safeProfile] panic: %v", r)
		}
	}()
	return m.api.Profile(ctx, token)
}

func (m *Manager) safeLogout(ctx context.Context, token string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("[Manager.safeLogout] panic: %v", r)
		}
	}()
	return m.api.Logout(ctx, token)
}

// tokenExpired reports whether token is a JWT whose exp claim has passed.
// Opaque tokens and JWTs without an exp claim return false and are left to
// the backend to judge.
func (m *Manager) tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Time.Before(m.nowTime())
}

// String implements fmt.Stringer for log readability.
func (m *Manager) String() string {
	st := m.Snapshot()
	return fmt.Sprintf("session.Manager{role: %s, phase: %s}", m.role.Role, st.Phase)
}
