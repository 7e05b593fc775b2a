// Package nfts implements the native contract of the Neoki collectible
// registry, a multi-quantity token store. Minting allocates a fresh token
// identifier; holders can then move partial quantities directly or through an
// approved operator.
package nfts

import (
	"strconv"

	"go.neoki.io/neoki"
	"go.neoki.io/neoki/core/access"
	"go.neoki.io/neoki/core/execution"
	"go.neoki.io/neoki/core/execution/native"
	"go.neoki.io/neoki/core/store"
	"golang.org/x/xerrors"
)

// commands defines the commands of the nfts contract. This interface helps in
// testing the contract.
type commands interface {
	mint(snap store.Snapshot, step execution.Step) error
	transfer(snap store.Snapshot, step execution.Step) error
	approveAll(snap store.Snapshot, step execution.Step) error
}

const (
	// ContractName is the name of the contract.
	ContractName = "go.neoki.io/neoki.Nfts"

	// ContractUID is the unique (4-bytes) identifier of the contract, used as
	// the namespace of its keys.
	ContractUID = "NFTS"

	// ToArg is the argument's name in the transaction that contains the
	// recipient address.
	ToArg = "nfts:to"

	// FromArg is the argument's name in the transaction that contains the
	// holder debited by a TRANSFER.
	FromArg = "nfts:from"

	// TokenArg is the argument's name in the transaction that contains the
	// token identifier.
	TokenArg = "nfts:token"

	// AmountArg is the argument's name in the transaction that contains the
	// token quantity.
	AmountArg = "nfts:amount"

	// URIArg is the argument's name in the transaction that contains the
	// metadata location of a minted token.
	URIArg = "nfts:uri"

	// OperatorArg is the argument's name in the transaction that contains
	// the operator of an APPROVE_ALL.
	OperatorArg = "nfts:operator"

	// ApprovedArg is the argument's name in the transaction that contains
	// "true" or "false" for an APPROVE_ALL.
	ApprovedArg = "nfts:approved"

	// CmdArg is the argument's name to indicate the kind of command we want
	// to run on the contract. Should be one of the Command type.
	CmdArg = "nfts:command"
)

// Command defines a type of command for the nfts contract.
type Command string

const (
	// CmdMint defines the command to mint a new token.
	CmdMint Command = "MINT"

	// CmdTransfer defines the command to move a quantity of a token.
	CmdTransfer Command = "TRANSFER"

	// CmdApproveAll defines the command to set an operator approval.
	CmdApproveAll Command = "APPROVE_ALL"
)

// RegisterContract registers the nfts contract to the given execution
// service.
func RegisterContract(exec *native.Service, c Contract) {
	exec.Set(ContractName, c)
}

// Contract is the smart contract of the collectible registry. Its commands
// are open: minting is free for everyone and transfers are authorized by the
// holder or an approved operator.
//
// - implements native.Contract
type Contract struct {
	// registry provides the collectible operations shared with the
	// marketplace.
	registry Registry

	// cmd provides the commands that can be executed by this smart contract.
	cmd commands
}

// NewContract creates a new nfts contract.
func NewContract() Contract {
	contract := Contract{
		registry: NewRegistry(),
	}

	contract.cmd = nftsCommand{Contract: &contract}

	return contract
}

// Execute implements native.Contract. It runs the appropriate command.
func (c Contract) Execute(snap store.Snapshot, step execution.Step) error {
	cmd := step.Current.GetArg(CmdArg)
	if len(cmd) == 0 {
		return xerrors.Errorf("'%s' not found in tx arg", CmdArg)
	}

	switch Command(cmd) {
	case CmdMint:
		err := c.cmd.mint(snap, step)
		if err != nil {
			return xerrors.Errorf("failed to MINT: %v", err)
		}
	case CmdTransfer:
		err := c.cmd.transfer(snap, step)
		if err != nil {
			return xerrors.Errorf("failed to TRANSFER: %v", err)
		}
	case CmdApproveAll:
		err := c.cmd.approveAll(snap, step)
		if err != nil {
			return xerrors.Errorf("failed to APPROVE_ALL: %v", err)
		}
	default:
		return xerrors.Errorf("unknown command: %s", cmd)
	}

	return nil
}

// nftsCommand implements the commands of the nfts contract.
//
// - implements commands
type nftsCommand struct {
	*Contract
}

// mint implements commands. It performs the MINT command.
func (c nftsCommand) mint(snap store.Snapshot, step execution.Step) error {
	to, err := emitter(step)
	if err != nil {
		return err
	}

	amount, err := uintArg(step, AmountArg)
	if err != nil {
		return err
	}

	uri := string(step.Current.GetArg(URIArg))

	id, err := c.registry.Mint(snap, to, amount, uri)
	if err != nil {
		return err
	}

	neoki.Logger.Info().Str("contract", ContractName).
		Msgf("minted %d of token %d to %v", amount, id, to)

	return nil
}

// transfer implements commands. It performs the TRANSFER command.
func (c nftsCommand) transfer(snap store.Snapshot, step execution.Step) error {
	operator, err := emitter(step)
	if err != nil {
		return err
	}

	from := operator

	if value := step.Current.GetArg(FromArg); len(value) != 0 {
		from = access.Address(value)
	}

	to := step.Current.GetArg(ToArg)
	if len(to) == 0 {
		return xerrors.Errorf("'%s' not found in tx arg", ToArg)
	}

	id, err := uintArg(step, TokenArg)
	if err != nil {
		return err
	}

	amount, err := uintArg(step, AmountArg)
	if err != nil {
		return err
	}

	return c.registry.SafeTransferFrom(snap, operator, from, access.Address(to), id, amount)
}

// approveAll implements commands. It performs the APPROVE_ALL command.
func (c nftsCommand) approveAll(snap store.Snapshot, step execution.Step) error {
	owner, err := emitter(step)
	if err != nil {
		return err
	}

	operator := step.Current.GetArg(OperatorArg)
	if len(operator) == 0 {
		return xerrors.Errorf("'%s' not found in tx arg", OperatorArg)
	}

	approved := string(step.Current.GetArg(ApprovedArg)) == "true"

	return c.registry.SetApprovalForAll(snap, owner, access.Address(operator), approved)
}

func emitter(step execution.Step) (access.Address, error) {
	addr, ok := access.AddressOf(step.Current.GetIdentity())
	if !ok {
		return "", xerrors.New("emitter is not an address")
	}

	return addr, nil
}

func uintArg(step execution.Step, key string) (uint64, error) {
	value := step.Current.GetArg(key)
	if len(value) == 0 {
		return 0, xerrors.Errorf("'%s' not found in tx arg", key)
	}

	parsed, err := strconv.ParseUint(string(value), 10, 64)
	if err != nil {
		return 0, xerrors.Errorf("failed to parse '%s': %v", key, err)
	}

	return parsed, nil
}
