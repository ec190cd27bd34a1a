package server

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mealroute/session-gateway/credstore"
	"github.com/mealroute/session-gateway/internal/config"
	"github.com/mealroute/session-gateway/internal/obs"
	"github.com/mealroute/session-gateway/roles"
	"github.com/mealroute/session-gateway/session"
)

// Managers bundles the four role-scoped session managers. Each manager is
// constructed exactly once per process; the roles share a store instance but
// only ever touch their own namespace inside it.
type Managers struct {
	User       *session.Manager
	Admin      *session.Manager
	Restaurant *session.Manager
	Delivery   *session.Manager
}

// NewManagers builds the four managers over per-role backend clients and the
// given credential store.
func NewManagers(cfg config.Config, store credstore.Store, logger zerolog.Logger) (*Managers, error) {
	clients, err := buildClients(cfg)
	if err != nil {
		return nil, err
	}

	build := func(rc roles.Config) (*session.Manager, error) {
		return session.NewManager(rc, clients[rc.Role], store, logger)
	}

	m := &Managers{}
	if m.User, err = build(roles.User()); err != nil {
		return nil, errors.Wrap(err, "[NewManagers] user")
	}
	if m.Admin, err = build(roles.Admin()); err != nil {
		return nil, errors.Wrap(err, "[NewManagers] admin")
	}
	if m.Restaurant, err = build(roles.Restaurant()); err != nil {
		return nil, errors.Wrap(err, "[NewManagers] restaurant")
	}
	if m.Delivery, err = build(roles.Delivery()); err != nil {
		return nil, errors.Wrap(err, "[NewManagers] delivery")
	}
	return m, nil
}

// All returns the managers in the canonical role order.
func (m *Managers) All() []*session.Manager {
	return []*session.Manager{m.User, m.Admin, m.Restaurant, m.Delivery}
}

// ByRole returns the manager for a role, or nil for an unknown role.
func (m *Managers) ByRole(r roles.Role) *session.Manager {
	switch r {
	case roles.RoleUser:
		return m.User
	case roles.RoleAdmin:
		return m.Admin
	case roles.RoleRestaurant:
		return m.Restaurant
	case roles.RoleDelivery:
		return m.Delivery
	}
	return nil
}

// BootRestore runs the four boot restores concurrently. Each role settles on
// its own; one role's slow or failing backend call never blocks another's.
func (m *Managers) BootRestore(ctx context.Context) {
	var wg sync.WaitGroup
	for _, mgr := range m.All() {
		wg.Add(1)
		go func(mgr *session.Manager) {
			defer wg.Done()
			st := mgr.Restore(ctx)
			role := string(mgr.Role().Role)
			obs.RecordRestore(role, string(st.Phase))
			obs.SetAuthenticated(role, st.Phase == session.PhaseAuthenticated)
		}(mgr)
	}
	wg.Wait()
}
