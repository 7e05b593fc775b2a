// Package native implements an execution service to run native smart
// contracts.
//
// A native smart contract is written in Go and packaged with the application.
// The service stages the writes of an execution in an overlay snapshot and
// applies them only when the contract succeeds, so a failed transaction never
// leaves a partial state change behind.
package native

import (
	"go.neoki.io/neoki/core"
	"go.neoki.io/neoki/core/execution"
	"go.neoki.io/neoki/core/store"
	"go.neoki.io/neoki/core/store/mem"
	"golang.org/x/xerrors"
)

const (
	// ContractArg is the argument key in the transaction to look up a
	// contract.
	ContractArg = "go.neoki.io/neoki.ContractArg"
)

// Contract is the interface to implement to register a smart contract that
// will be executed natively.
type Contract interface {
	Execute(store.Snapshot, execution.Step) error
}

// Service is an execution service for packaged applications. Those
// applications have complete access to the snapshot and can directly update
// it.
//
// - implements execution.Service
type Service struct {
	contracts map[string]Contract
	watcher   *core.Watcher
}

// NewExecution returns a new native execution. The registered contracts will
// be executed for every incoming transaction.
func NewExecution() *Service {
	return &Service{
		contracts: map[string]Contract{},
		watcher:   core.NewWatcher(),
	}
}

// Set stores the contract using the name as the key. A transaction can
// trigger this contract by using the same name as the contract argument.
func (ns *Service) Set(name string, contract Contract) {
	ns.contracts[name] = contract
}

// Watch registers the observer so that it will be notified of every executed
// transaction.
func (ns *Service) Watch(obs core.Observer) {
	ns.watcher.Add(obs)
}

// Unwatch removes the observer.
func (ns *Service) Unwatch(obs core.Observer) {
	ns.watcher.Remove(obs)
}

// Execute implements execution.Service. It runs the contract targeted by the
// transaction on a staging snapshot and applies the writes only on success.
func (ns *Service) Execute(snap store.Snapshot, step execution.Step) (execution.Result, error) {
	name := string(step.Current.GetArg(ContractArg))

	contract := ns.contracts[name]
	if contract == nil {
		return execution.Result{}, xerrors.Errorf("unknown contract '%s'", name)
	}

	res := execution.Result{
		Accepted: true,
	}

	staging := mem.NewStaging(snap)

	err := contract.Execute(staging, step)
	if err != nil {
		res.Accepted = false
		res.Message = err.Error()

		rejectedTxs.WithLabelValues(name).Inc()
	} else {
		err = staging.Apply()
		if err != nil {
			return execution.Result{}, xerrors.Errorf("failed to apply: %v", err)
		}

		acceptedTxs.WithLabelValues(name).Inc()
	}

	ns.watcher.Notify(core.Event{
		Contract: name,
		TxID:     step.Current.GetID(),
		Accepted: res.Accepted,
		Message:  res.Message,
	})

	return res, nil
}
