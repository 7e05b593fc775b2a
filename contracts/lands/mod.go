// Package lands implements the native contract of the Neoki land registry, a
// unique-ownership store of the parcels of a 651 by 651 grid. Half of the
// grid, rounded up, is reserved and stays unmintable for 364 days after the
// registry is initialized.
package lands

import (
	"strconv"
	"time"

	"go.neoki.io/neoki"
	"go.neoki.io/neoki/core/access"
	"go.neoki.io/neoki/core/execution"
	"go.neoki.io/neoki/core/execution/native"
	"go.neoki.io/neoki/core/store"
	"golang.org/x/xerrors"
)

// commands defines the commands of the lands contract. This interface helps
// in testing the contract.
type commands interface {
	mint(snap store.Snapshot, step execution.Step) error
}

const (
	// ContractName is the name of the contract.
	ContractName = "go.neoki.io/neoki.Lands"

	// ContractUID is the unique (4-bytes) identifier of the contract, used as
	// the namespace of its keys.
	ContractUID = "LAND"

	// TokenName is the display name of the registry.
	TokenName = "Neoki Lands"

	// TokenSymbol is the display symbol of the registry.
	TokenSymbol = "LAND"

	// ToArg is the argument's name in the transaction that contains the
	// recipient address.
	ToArg = "lands:to"

	// IDArg is the argument's name in the transaction that contains the
	// parcel identifier.
	IDArg = "lands:id"

	// CmdArg is the argument's name to indicate the kind of command we want
	// to run on the contract. Should be one of the Command type.
	CmdArg = "lands:command"

	// credentialMintCommand defines the credential command of the exclusive
	// minting right.
	credentialMintCommand = "mint"
)

// Command defines a type of command for the lands contract.
type Command string

const (
	// CmdMint defines the command to mint a parcel. Only the minter
	// credential can run it.
	CmdMint Command = "MINT"
)

// NewCreds creates the minter credentials of the lands contract. The selling
// contract is expected to be the only long-term holder.
func NewCreds(id []byte) access.Credential {
	return access.NewContractCreds(id, ContractName, credentialMintCommand)
}

// RegisterContract registers the lands contract to the given execution
// service.
func RegisterContract(exec *native.Service, c Contract) {
	exec.Set(ContractName, c)
}

// Contract is the smart contract of the land registry.
//
// - implements native.Contract
type Contract struct {
	// registry provides the parcel operations shared with the selling
	// contract.
	registry Registry

	// access is the access control service managing the minting right.
	access access.Service

	// accessKey is the credential allowed to mint.
	accessKey []byte

	// clock gives the current time to the lock checks.
	clock func() time.Time

	// cmd provides the commands that can be executed by this smart contract.
	cmd commands
}

// NewContract creates a new lands contract.
func NewContract(aKey []byte, srvc access.Service) Contract {
	contract := Contract{
		registry:  NewRegistry(),
		access:    srvc,
		accessKey: aKey,
		clock:     time.Now,
	}

	contract.cmd = landsCommand{Contract: &contract}

	return contract
}

// Execute implements native.Contract. It runs the appropriate command.
func (c Contract) Execute(snap store.Snapshot, step execution.Step) error {
	creds := NewCreds(c.accessKey)

	err := c.access.Match(snap, creds, step.Current.GetIdentity())
	if err != nil {
		return xerrors.Errorf("identity not authorized: %v", err)
	}

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
	default:
		return xerrors.Errorf("unknown command: %s", cmd)
	}

	return nil
}

// landsCommand implements the commands of the lands contract.
//
// - implements commands
type landsCommand struct {
	*Contract
}

// mint implements commands. It performs the MINT command.
func (c landsCommand) mint(snap store.Snapshot, step execution.Step) error {
	to := step.Current.GetArg(ToArg)
	if len(to) == 0 {
		return xerrors.Errorf("'%s' not found in tx arg", ToArg)
	}

	value := step.Current.GetArg(IDArg)
	if len(value) == 0 {
		return xerrors.Errorf("'%s' not found in tx arg", IDArg)
	}

	id, err := strconv.ParseUint(string(value), 10, 64)
	if err != nil {
		return xerrors.Errorf("failed to parse id: %v", err)
	}

	err = c.registry.Mint(snap, access.Address(to), id, c.clock())
	if err != nil {
		return err
	}

	neoki.Logger.Info().Str("contract", ContractName).
		Msgf("minted LAND %d to %s", id, to)

	return nil
}
