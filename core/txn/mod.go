// Package txn defines the transaction given as input to a contract
// execution: an identified, signed-style envelope of string-keyed byte
// arguments. The nonce orders the transactions of a single identity.
package txn

import "go.neoki.io/neoki/core/access"

// Transaction is the input of a contract execution.
type Transaction interface {
	// GetID returns the unique identifier of the transaction.
	GetID() []byte

	// GetNonce returns the sequence number of the transaction for the
	// identity that created it.
	GetNonce() uint64

	// GetIdentity returns the identity that created the transaction.
	GetIdentity() access.Identity

	// GetArg returns the value of the named argument, or nil when the
	// transaction does not carry it.
	GetArg(key string) []byte
}

// Arg is a named argument carried by a transaction.
type Arg struct {
	Key   string
	Value []byte
}
