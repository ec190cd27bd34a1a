// Package credstore persists one credential record per role: the bearer
// token and the last-known identity snapshot. The two fields live and die
// together; no implementation ever exposes one without the other.
package credstore

import (
	"encoding/json"

	"github.com/mealroute/session-gateway/roles"
)

// Record is a role's persisted credentials. Identity is the backend's raw
// identity blob as of the last successful login or profile fetch.
type Record struct {
	Token    string          `json:"token"`
	Identity json.RawMessage `json:"identity"`
}

// Store is the durable credential store. Absence of a record is a normal,
// representable state, not an error. Write and Clear are atomic from a
// reader's perspective: a concurrent Read sees either the old record, the
// new record, or nothing, never a token without its snapshot.
type Store interface {
	Write(role roles.Role, rec Record) error
	Read(role roles.Role) (Record, bool, error)
	Clear(role roles.Role) error
}
