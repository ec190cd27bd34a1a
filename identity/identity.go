// Package identity holds the opaque, role-scoped identity blob returned by
// the backend. The session layer never interprets display fields; it extracts
// the stable ID and carries the rest through unchanged.
package identity

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Identity is a backend-owned identity. Raw is the exact JSON object the
// backend returned; ID is pulled out of it because the session layer needs a
// stable handle for logging and equality checks.
type Identity struct {
	ID  string
	Raw json.RawMessage
}

// FromJSON builds an Identity from a backend identity object. The blob is
// kept byte-for-byte; only the id field is lifted out. Backends in the wild
// use either "id" or "_id".
func FromJSON(raw json.RawMessage) (*Identity, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, errors.New("[identity.FromJSON] empty identity payload")
	}
	var probe struct {
		ID    string `json:"id"`
		AltID string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, errors.Wrap(err, "[identity.FromJSON] malformed identity payload")
	}
	id := probe.ID
	if id == "" {
		id = probe.AltID
	}
	if id == "" {
		return nil, errors.New("[identity.FromJSON] identity payload has no id")
	}
	cp := make(json.RawMessage, len(raw))
	copy(cp, raw)
	return &Identity{ID: id, Raw: cp}, nil
}

// Field returns a top-level string field from the raw blob, or "" if the
// field is absent or not a string. Convenience for handlers and logs; the
// session core itself never calls this.
func (i *Identity) Field(name string) string {
	if i == nil || len(i.Raw) == 0 {
		return ""
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(i.Raw, &m); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(m[name], &s); err != nil {
		return ""
	}
	return s
}

// MarshalJSON emits the original backend blob unchanged.
func (i *Identity) MarshalJSON() ([]byte, error) {
	if i == nil || len(i.Raw) == 0 {
		return []byte("null"), nil
	}
	return i.Raw, nil
}

// UnmarshalJSON re-hydrates via FromJSON so ID stays consistent with Raw.
func (i *Identity) UnmarshalJSON(data []byte) error {
	parsed, err := FromJSON(data)
	if err != nil {
		return err
	}
	*i = *parsed
	return nil
}
