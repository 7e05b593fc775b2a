// Package signed implements the transaction carried by an identified emitter.
//
// The ledger environment authenticates the emitter before the transaction
// reaches a contract, so the transaction here carries the identity directly
// and gets a unique identifier at creation.
package signed

import (
	"github.com/rs/xid"
	"go.neoki.io/neoki/core/access"
	"go.neoki.io/neoki/core/txn"
	"golang.org/x/xerrors"
)

var _ txn.Transaction = Transaction{}

// Transaction is a transaction signed by an identity. It can contain
// arguments read by the contracts.
//
// - implements txn.Transaction
type Transaction struct {
	nonce uint64
	args  map[string][]byte
	ident access.Identity
	id    []byte
}

// TransactionOption is the type of options to create a transaction.
type TransactionOption func(*Transaction)

// WithArg is an option to set an argument with the key and the value.
func WithArg(key string, value []byte) TransactionOption {
	return func(tx *Transaction) {
		tx.args[key] = value
	}
}

// NewTransaction creates a new transaction with the provided nonce and
// identity.
func NewTransaction(nonce uint64, ident access.Identity, opts ...TransactionOption) (Transaction, error) {
	if ident == nil {
		return Transaction{}, xerrors.New("identity is nil")
	}

	tx := Transaction{
		nonce: nonce,
		args:  make(map[string][]byte),
		ident: ident,
		id:    xid.New().Bytes(),
	}

	for _, opt := range opts {
		opt(&tx)
	}

	return tx, nil
}

// GetID implements txn.Transaction. It returns the ID of the transaction.
func (t Transaction) GetID() []byte {
	return append([]byte{}, t.id...)
}

// GetNonce implements txn.Transaction. It returns the nonce.
func (t Transaction) GetNonce() uint64 {
	return t.nonce
}

// GetIdentity implements txn.Transaction. It returns the identity of the
// emitter.
func (t Transaction) GetIdentity() access.Identity {
	return t.ident
}

// GetArgs returns the list of arguments available.
func (t Transaction) GetArgs() []string {
	args := make([]string, 0, len(t.args))
	for key := range t.args {
		args = append(args, key)
	}

	return args
}

// GetArg implements txn.Transaction. It returns the value of the argument if
// it is set, otherwise nil.
func (t Transaction) GetArg(key string) []byte {
	return t.args[key]
}
