package credstore

import (
	"crypto/rand"
	"encoding/json"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"

	"github.com/mealroute/session-gateway/roles"
)

// scrypt parameters follow the package's interactive-use recommendation.
const (
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	sealSaltSize = 16
	sealKeySize  = 32
)

// sealedRecord is what a SealedStore hands to its inner store: the salt and
// nonce in the clear, the record ciphertext under Identity, and a fixed
// marker token so inner stores that treat an empty token as "no record"
// behave the same way.
type sealedRecord struct {
	Salt  []byte `json:"salt"`
	Nonce []byte `json:"nonce"`
	Box   []byte `json:"box"`
}

const sealedTokenMarker = "sealed"

// SealedStore wraps another Store and seals records at rest with
// secretbox, the key derived from a configured secret via scrypt. Bearer
// tokens in a world-readable data folder are the concern; this keeps them
// unreadable without the configured secret.
type SealedStore struct {
	inner  Store
	secret []byte
}

var _ Store = (*SealedStore)(nil)

// NewSealedStore wraps inner. The secret must be non-empty; rotation is a
// wipe-and-relogin affair, not handled here.
func NewSealedStore(inner Store, secret string) (*SealedStore, error) {
	if inner == nil {
		return nil, errors.New("[credstore.NewSealedStore] inner store is required")
	}
	if secret == "" {
		return nil, errors.New("[credstore.NewSealedStore] secret is required")
	}
	return &SealedStore{inner: inner, secret: []byte(secret)}, nil
}

func (ss *SealedStore) deriveKey(salt []byte) (*[sealKeySize]byte, error) {
	raw, err := scrypt.Key(ss.secret, salt, scryptN, scryptR, scryptP, sealKeySize)
	if err != nil {
		return nil, errors.Wrap(err, "[SealedStore.deriveKey] scrypt")
	}
	var key [sealKeySize]byte
	copy(key[:], raw)
	return &key, nil
}

// Write seals the record and stores the ciphertext in the inner store.
func (ss *SealedStore) Write(role roles.Role, rec Record) error {
	plain, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "[SealedStore.Write] marshal record")
	}

	salt := make([]byte, sealSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return errors.Wrap(err, "[SealedStore.Write] salt")
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return errors.Wrap(err, "[SealedStore.Write] nonce")
	}

	key, err := ss.deriveKey(salt)
	if err != nil {
		return err
	}

	sealed := sealedRecord{
		Salt:  salt,
		Nonce: nonce[:],
		Box:   secretbox.Seal(nil, plain, &nonce, key),
	}
	blob, err := json.Marshal(sealed)
	if err != nil {
		return errors.Wrap(err, "[SealedStore.Write] marshal sealed record")
	}
	return ss.inner.Write(role, Record{Token: sealedTokenMarker, Identity: blob})
}

// Read opens the sealed record. A record that fails to open (wrong secret,
// tampered file) reads as absent, mirroring how the file store treats a
// corrupt record.
func (ss *SealedStore) Read(role roles.Role) (Record, bool, error) {
	outer, ok, err := ss.inner.Read(role)
	if err != nil || !ok {
		return Record{}, false, err
	}

	var sealed sealedRecord
	if err := json.Unmarshal(outer.Identity, &sealed); err != nil {
		return Record{}, false, nil
	}
	if len(sealed.Nonce) != 24 {
		return Record{}, false, nil
	}

	key, err := ss.deriveKey(sealed.Salt)
	if err != nil {
		return Record{}, false, err
	}

	var nonce [24]byte
	copy(nonce[:], sealed.Nonce)
	plain, opened := secretbox.Open(nil, sealed.Box, &nonce, key)
	if !opened {
		return Record{}, false, nil
	}

	var rec Record
	if err := json.Unmarshal(plain, &rec); err != nil {
		return Record{}, false, nil
	}
	return rec, rec.Token != "", nil
}

// Clear removes the role's record from the inner store.
func (ss *SealedStore) Clear(role roles.Role) error {
	return ss.inner.Clear(role)
}
