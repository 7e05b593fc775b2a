// Package execution defines the primitives to execute a transaction against a
// smart contract.
package execution

import (
	"go.neoki.io/neoki/core/store"
	"go.neoki.io/neoki/core/txn"
)

// Step is the smart contract input. It gives the contract access to the
// current transaction and to the previous transactions of the same batch.
type Step struct {
	Previous []txn.Transaction

	Current txn.Transaction
}

// Result is the result of a transaction execution.
type Result struct {
	// Accepted is the success state of the transaction.
	Accepted bool

	// Message gives a chance to the execution to explain why a transaction
	// has failed.
	Message string
}

// Service is the execution service that defines the primitives to execute a
// transaction.
type Service interface {
	// Execute must apply the transaction to the snapshot and return the
	// result of it.
	Execute(snap store.Snapshot, step Step) (Result, error)
}
