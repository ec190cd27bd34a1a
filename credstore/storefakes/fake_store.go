package storefakes

import (
	"sync"

	"github.com/mealroute/session-gateway/credstore"
	"github.com/mealroute/session-gateway/roles"
)

var _ credstore.Store = (*FakeStore)(nil)

// FakeStore is an in-memory credstore.Store for tests. Optional error hooks
// let tests force individual operations to fail.
type FakeStore struct {
	records map[roles.Role]credstore.Record
	lock    sync.RWMutex

	WriteErr error
	ReadErr  error
	ClearErr error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{records: make(map[roles.Role]credstore.Record)}
}

func (fs *FakeStore) Write(role roles.Role, rec credstore.Record) error {
	if fs.WriteErr != nil {
		return fs.WriteErr
	}
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.records[role] = rec
	return nil
}

func (fs *FakeStore) Read(role roles.Role) (credstore.Record, bool, error) {
	if fs.ReadErr != nil {
		return credstore.Record{}, false, fs.ReadErr
	}
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	rec, ok := fs.records[role]
	return rec, ok, nil
}

func (fs *FakeStore) Clear(role roles.Role) error {
	if fs.ClearErr != nil {
		return fs.ClearErr
	}
	fs.lock.Lock()
	defer fs.lock.Unlock()
	delete(fs.records, role)
	return nil
}

// Has reports whether a record exists for the role, bypassing error hooks.
func (fs *FakeStore) Has(role roles.Role) bool {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	_, ok := fs.records[role]
	return ok
}
