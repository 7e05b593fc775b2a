// Package access defines the interfaces for the Access Rights Control.
package access

import (
	"encoding"
	"strings"

	"go.neoki.io/neoki/core/store"
)

// Identity is an abstraction to uniquely identify a transaction emitter.
type Identity interface {
	encoding.TextMarshaler

	// Equal returns true when the other identity is the same.
	Equal(other Identity) bool
}

// Credential is an abstraction of a scoped permission that an identity can
// hold.
type Credential interface {
	// GetID returns the identifier of the credential.
	GetID() []byte

	// GetRule returns the scope of the credential.
	GetRule() string
}

// Service is an abstraction to grant, revoke and verify accesses.
type Service interface {
	// Match returns nil if the group of identities has access to the given
	// credential, otherwise a meaningful error on the reason it does not.
	Match(store store.Readable, creds Credential, idents ...Identity) error

	// Grant updates the credential so that the group of identities has
	// access.
	Grant(store store.Snapshot, creds Credential, idents ...Identity) error

	// Revoke removes the access of the group of identities.
	Revoke(store store.Snapshot, creds Credential, idents ...Identity) error
}

// Compile returns a compacted rule from the string segments.
func Compile(segments ...string) string {
	return strings.Join(segments, ":")
}
