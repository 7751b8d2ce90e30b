// Package user defines the resolved user identity consumed by evaluation:
// a set of typed identifiers plus free-form and system properties.
package user

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Well-known identifier types. Custom identifier types may appear alongside.
const (
	IdentifierTypeID     = "$id"
	IdentifierTypeUser   = "$userId"
	IdentifierTypeDevice = "$deviceId"
)

// User is the resolved identity evaluation runs against. It is immutable for
// the duration of one evaluation call.
type User struct {
	Identifiers      map[string]string
	Properties       map[string]any
	SystemProperties map[string]any
}

// Identifier returns the identifier value of the given type.
func (u User) Identifier(identifierType string) (string, bool) {
	v, ok := u.Identifiers[identifierType]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Property resolves a free-form user property by name.
func (u User) Property(name string) (any, bool) {
	v, ok := u.Properties[name]
	return v, ok
}

// SystemProperty resolves a system property (platform, version, ...) by name.
func (u User) SystemProperty(name string) (any, bool) {
	v, ok := u.SystemProperties[name]
	return v, ok
}

// IdentityHash is a stable digest of the identifier set. Two users with the
// same identifiers produce the same hash regardless of map order; a change in
// any identifier changes the hash. Used to detect identity switches.
func (u User) IdentityHash() string {
	keys := make([]string, 0, len(u.Identifiers))
	for k := range u.Identifiers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(u.Identifiers[k]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
