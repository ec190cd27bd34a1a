package credstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/mealroute/session-gateway/roles"
)

// FileStore keeps one JSON file per role under a data folder, surviving
// process restarts. Writes go through a temp file and an atomic rename so a
// crash or a concurrent reader never observes a half-written record.
type FileStore struct {
	dir  string
	lock sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the data folder if needed and returns a store rooted
// there.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("[credstore.NewFileStore] dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "[credstore.NewFileStore] create data folder")
	}
	return &FileStore{dir: dir}, nil
}

func (fs *FileStore) path(role roles.Role) string {
	return filepath.Join(fs.dir, string(role)+"-credentials.json")
}

// Write persists the record for the role, replacing any previous one.
func (fs *FileStore) Write(role roles.Role, rec Record) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "[FileStore.Write] marshal record")
	}

	tmp, err := os.CreateTemp(fs.dir, string(role)+"-credentials-*.tmp")
	if err != nil {
		return errors.Wrap(err, "[FileStore.Write] create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "[FileStore.Write] write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "[FileStore.Write] close temp file")
	}
	if err := os.Rename(tmpName, fs.path(role)); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "[FileStore.Write] rename into place")
	}
	return nil
}

// Read returns the role's record if one exists. A missing file means no
// session.
func (fs *FileStore) Read(role roles.Role) (Record, bool, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	data, err := os.ReadFile(fs.path(role))
	if os.IsNotExist(err) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, errors.Wrap(err, "[FileStore.Read] read file")
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		// A corrupt record is as good as no record; the session layer will
		// treat the role as logged out and rewrite on the next login.
		return Record{}, false, nil
	}
	if rec.Token == "" {
		return Record{}, false, nil
	}
	return rec, true, nil
}

// Clear removes the role's record. Clearing an absent record is a no-op.
func (fs *FileStore) Clear(role roles.Role) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	err := os.Remove(fs.path(role))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[FileStore.Clear] remove file")
	}
	return nil
}
