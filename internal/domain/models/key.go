package models

import (
	"crypto/rsa"
	"time"
)

// SigningKey is one verification key published by the identity provider.
// Keys are replaced wholesale on refresh and never mutated in place.
type SigningKey struct {
	KeyID     string
	PublicKey *rsa.PublicKey
	Algorithm string
}

// KeySet is an immutable snapshot of the identity provider's key directory.
type KeySet struct {
	Keys      map[string]SigningKey
	FetchedAt time.Time
}

// Lookup returns the key with the given id.
func (s *KeySet) Lookup(keyID string) (SigningKey, bool) {
	if s == nil {
		return SigningKey{}, false
	}
	k, ok := s.Keys[keyID]
	return k, ok
}

// KeyIDs returns the ids in the set, in no particular order.
func (s *KeySet) KeyIDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.Keys))
	for id := range s.Keys {
		ids = append(ids, id)
	}
	return ids
}
