// Package nko implements the native contract of the Niko token, the fungible
// value token every sale in the economy settles with. It keeps a balance per
// holder and an allowance per (owner, spender) pair with the usual approve
// and transfer-from semantics.
package nko

import (
	"strconv"

	"go.neoki.io/neoki"
	"go.neoki.io/neoki/core/access"
	"go.neoki.io/neoki/core/execution"
	"go.neoki.io/neoki/core/execution/native"
	"go.neoki.io/neoki/core/store"
	"golang.org/x/xerrors"
)

// commands defines the commands of the nko contract. This interface helps in
// testing the contract.
type commands interface {
	transfer(snap store.Snapshot, step execution.Step) error
	approve(snap store.Snapshot, step execution.Step) error
	transferFrom(snap store.Snapshot, step execution.Step) error
	mint(snap store.Snapshot, step execution.Step) error
}

const (
	// ContractName is the name of the contract.
	ContractName = "go.neoki.io/neoki.Nko"

	// ContractUID is the unique (4-bytes) identifier of the contract, used as
	// the namespace of its keys.
	ContractUID = "NKO0"

	// ToArg is the argument's name in the transaction that contains the
	// recipient address.
	ToArg = "nko:to"

	// FromArg is the argument's name in the transaction that contains the
	// address debited by a TRANSFER_FROM.
	FromArg = "nko:from"

	// SpenderArg is the argument's name in the transaction that contains the
	// approved spender address.
	SpenderArg = "nko:spender"

	// AmountArg is the argument's name in the transaction that contains the
	// token amount.
	AmountArg = "nko:amount"

	// CmdArg is the argument's name to indicate the kind of command we want
	// to run on the contract. Should be one of the Command type.
	CmdArg = "nko:command"

	// credentialAllCommand defines the credential command that is allowed to
	// perform all commands.
	credentialAllCommand = "all"
)

// Command defines a type of command for the nko contract.
type Command string

const (
	// CmdTransfer defines the command to move tokens from the emitter to a
	// recipient.
	CmdTransfer Command = "TRANSFER"

	// CmdApprove defines the command to approve a spender.
	CmdApprove Command = "APPROVE"

	// CmdTransferFrom defines the command to move tokens out of an approved
	// balance.
	CmdTransferFrom Command = "TRANSFER_FROM"

	// CmdMint defines the command to create new tokens. Only the minter
	// credential can run it.
	CmdMint Command = "MINT"
)

// NewCreds creates new credentials for the minting command of the nko
// contract.
func NewCreds(id []byte) access.Credential {
	return access.NewContractCreds(id, ContractName, credentialAllCommand)
}

// RegisterContract registers the nko contract to the given execution service.
func RegisterContract(exec *native.Service, c Contract) {
	exec.Set(ContractName, c)
}

// Contract is the smart contract of the NKO token.
//
// - implements native.Contract
type Contract struct {
	// ledger provides the balance operations shared with the other
	// contracts.
	ledger Ledger

	// access is the access control service managing the minting right.
	access access.Service

	// accessKey is the credential allowed to mint.
	accessKey []byte

	// cmd provides the commands that can be executed by this smart contract.
	cmd commands
}

// NewContract creates a new nko contract.
func NewContract(aKey []byte, srvc access.Service) Contract {
	contract := Contract{
		ledger:    NewLedger(),
		access:    srvc,
		accessKey: aKey,
	}

	contract.cmd = nkoCommand{Contract: &contract}

	return contract
}

// Execute implements native.Contract. It runs the appropriate command.
func (c Contract) Execute(snap store.Snapshot, step execution.Step) error {
	cmd := step.Current.GetArg(CmdArg)
	if len(cmd) == 0 {
		return xerrors.Errorf("'%s' not found in tx arg", CmdArg)
	}

	switch Command(cmd) {
	case CmdTransfer:
		err := c.cmd.transfer(snap, step)
		if err != nil {
			return xerrors.Errorf("failed to TRANSFER: %v", err)
		}
	case CmdApprove:
		err := c.cmd.approve(snap, step)
		if err != nil {
			return xerrors.Errorf("failed to APPROVE: %v", err)
		}
	case CmdTransferFrom:
		err := c.cmd.transferFrom(snap, step)
		if err != nil {
			return xerrors.Errorf("failed to TRANSFER_FROM: %v", err)
		}
	case CmdMint:
		creds := NewCreds(c.accessKey)

		err := c.access.Match(snap, creds, step.Current.GetIdentity())
		if err != nil {
			return xerrors.Errorf("identity not authorized: %v", err)
		}

		err = c.cmd.mint(snap, step)
		if err != nil {
			return xerrors.Errorf("failed to MINT: %v", err)
		}
	default:
		return xerrors.Errorf("unknown command: %s", cmd)
	}

	return nil
}

// nkoCommand implements the commands of the nko contract.
//
// - implements commands
type nkoCommand struct {
	*Contract
}

// transfer implements commands. It performs the TRANSFER command.
func (c nkoCommand) transfer(snap store.Snapshot, step execution.Step) error {
	from, err := emitter(step)
	if err != nil {
		return err
	}

	to, err := addressArg(step, ToArg)
	if err != nil {
		return err
	}

	amount, err := amountArg(step, AmountArg)
	if err != nil {
		return err
	}

	err = c.ledger.Transfer(snap, from, to, amount)
	if err != nil {
		return err
	}

	neoki.Logger.Info().Str("contract", ContractName).
		Msgf("transferred %d from %v to %v", amount, from, to)

	return nil
}

// approve implements commands. It performs the APPROVE command.
func (c nkoCommand) approve(snap store.Snapshot, step execution.Step) error {
	owner, err := emitter(step)
	if err != nil {
		return err
	}

	spender, err := addressArg(step, SpenderArg)
	if err != nil {
		return err
	}

	amount, err := amountArg(step, AmountArg)
	if err != nil {
		return err
	}

	return c.ledger.Approve(snap, owner, spender, amount)
}

// transferFrom implements commands. It performs the TRANSFER_FROM command.
func (c nkoCommand) transferFrom(snap store.Snapshot, step execution.Step) error {
	spender, err := emitter(step)
	if err != nil {
		return err
	}

	from, err := addressArg(step, FromArg)
	if err != nil {
		return err
	}

	to, err := addressArg(step, ToArg)
	if err != nil {
		return err
	}

	amount, err := amountArg(step, AmountArg)
	if err != nil {
		return err
	}

	return c.ledger.TransferFrom(snap, spender, from, to, amount)
}

// mint implements commands. It performs the MINT command.
func (c nkoCommand) mint(snap store.Snapshot, step execution.Step) error {
	to, err := addressArg(step, ToArg)
	if err != nil {
		return err
	}

	amount, err := amountArg(step, AmountArg)
	if err != nil {
		return err
	}

	err = c.ledger.Mint(snap, to, amount)
	if err != nil {
		return err
	}

	neoki.Logger.Info().Str("contract", ContractName).
		Msgf("minted %d to %v", amount, to)

	return nil
}

func emitter(step execution.Step) (access.Address, error) {
	addr, ok := access.AddressOf(step.Current.GetIdentity())
	if !ok {
		return "", xerrors.New("emitter is not an address")
	}

	return addr, nil
}

func addressArg(step execution.Step, key string) (access.Address, error) {
	value := step.Current.GetArg(key)
	if len(value) == 0 {
		return "", xerrors.Errorf("'%s' not found in tx arg", key)
	}

	return access.Address(value), nil
}

func amountArg(step execution.Step, key string) (uint64, error) {
	value := step.Current.GetArg(key)
	if len(value) == 0 {
		return 0, xerrors.Errorf("'%s' not found in tx arg", key)
	}

	amount, err := strconv.ParseUint(string(value), 10, 64)
	if err != nil {
		return 0, xerrors.Errorf("failed to parse amount: %v", err)
	}

	return amount, nil
}
