package nfts

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.neoki.io/neoki/core/access"
	"go.neoki.io/neoki/core/execution"
	"go.neoki.io/neoki/core/execution/native"
	"go.neoki.io/neoki/core/store"
	"go.neoki.io/neoki/core/txn"
	"go.neoki.io/neoki/core/txn/signed"
	"go.neoki.io/neoki/internal/testing/fake"
)

const (
	alice = access.Address("alice")
	bob   = access.Address("bob")
)

func TestExecute(t *testing.T) {
	contract := NewContract()

	err := contract.Execute(fake.NewSnapshot(), makeStep(t))
	require.EqualError(t, err, "'nfts:command' not found in tx arg")

	contract.cmd = fakeCmd{err: fake.GetError()}

	err = contract.Execute(fake.NewSnapshot(), makeStep(t, CmdArg, "MINT"))
	require.EqualError(t, err, fake.Err("failed to MINT"))

	err = contract.Execute(fake.NewSnapshot(), makeStep(t, CmdArg, "TRANSFER"))
	require.EqualError(t, err, fake.Err("failed to TRANSFER"))

	err = contract.Execute(fake.NewSnapshot(), makeStep(t, CmdArg, "APPROVE_ALL"))
	require.EqualError(t, err, fake.Err("failed to APPROVE_ALL"))

	err = contract.Execute(fake.NewSnapshot(), makeStep(t, CmdArg, "fake"))
	require.EqualError(t, err, "unknown command: fake")

	contract.cmd = fakeCmd{}
	err = contract.Execute(fake.NewSnapshot(), makeStep(t, CmdArg, "MINT"))
	require.NoError(t, err)
}

func TestCommand_Mint(t *testing.T) {
	contract := NewContract()

	cmd := nftsCommand{Contract: &contract}

	snap := fake.NewSnapshot()

	err := cmd.mint(snap, makeStep(t))
	require.EqualError(t, err, "'nfts:amount' not found in tx arg")

	err = cmd.mint(snap, makeStep(t, AmountArg, "0"))
	require.EqualError(t, err, "amount must be positive")

	err = cmd.mint(snap, makeStep(t, AmountArg, "10", URIArg, "ipfs://deadbeef"))
	require.NoError(t, err)

	balance, err := contract.registry.BalanceOf(snap, alice, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(10), balance)

	uri, err := contract.registry.URI(snap, 1)
	require.NoError(t, err)
	require.Equal(t, "ipfs://deadbeef", uri)
}

func TestCommand_Transfer(t *testing.T) {
	contract := NewContract()

	cmd := nftsCommand{Contract: &contract}

	snap := fake.NewSnapshot()

	id, err := contract.registry.Mint(snap, alice, 10, "")
	require.NoError(t, err)

	err = cmd.transfer(snap, makeStep(t))
	require.EqualError(t, err, "'nfts:to' not found in tx arg")

	err = cmd.transfer(snap, makeStep(t, ToArg, "bob"))
	require.EqualError(t, err, "'nfts:token' not found in tx arg")

	err = cmd.transfer(snap, makeStep(t, ToArg, "bob", TokenArg, "1"))
	require.EqualError(t, err, "'nfts:amount' not found in tx arg")

	// the emitter moves its own balance
	err = cmd.transfer(snap, makeStep(t, ToArg, "bob", TokenArg, "1", AmountArg, "4"))
	require.NoError(t, err)

	// moving someone else's balance requires an approval
	err = cmd.transfer(snap, makeStep(t,
		FromArg, "bob", ToArg, "alice", TokenArg, "1", AmountArg, "1"))
	require.EqualError(t, err, "'alice' is not approved by 'bob'")

	require.NoError(t, contract.registry.SetApprovalForAll(snap, bob, alice, true))

	err = cmd.transfer(snap, makeStep(t,
		FromArg, "bob", ToArg, "alice", TokenArg, "1", AmountArg, "1"))
	require.NoError(t, err)

	balance, err := contract.registry.BalanceOf(snap, alice, id)
	require.NoError(t, err)
	require.Equal(t, uint64(7), balance)

	balance, err = contract.registry.BalanceOf(snap, bob, id)
	require.NoError(t, err)
	require.Equal(t, uint64(3), balance)
}

func TestCommand_ApproveAll(t *testing.T) {
	contract := NewContract()

	cmd := nftsCommand{Contract: &contract}

	snap := fake.NewSnapshot()

	err := cmd.approveAll(snap, makeStep(t))
	require.EqualError(t, err, "'nfts:operator' not found in tx arg")

	err = cmd.approveAll(snap, makeStep(t, OperatorArg, "bob", ApprovedArg, "true"))
	require.NoError(t, err)

	approved, err := contract.registry.IsApprovedForAll(snap, alice, bob)
	require.NoError(t, err)
	require.True(t, approved)

	err = cmd.approveAll(snap, makeStep(t, OperatorArg, "bob", ApprovedArg, "false"))
	require.NoError(t, err)

	approved, err = contract.registry.IsApprovedForAll(snap, alice, bob)
	require.NoError(t, err)
	require.False(t, approved)
}

func TestRegistry_Mint_Sequence(t *testing.T) {
	registry := NewRegistry()

	snap := fake.NewSnapshot()

	for i := uint64(1); i <= 3; i++ {
		id, err := registry.Mint(snap, alice, 1, "")
		require.NoError(t, err)
		require.Equal(t, i, id)
	}
}

func TestRegistry_SafeTransferFrom(t *testing.T) {
	registry := NewRegistry()

	snap := fake.NewSnapshot()

	id, err := registry.Mint(snap, alice, 5, "")
	require.NoError(t, err)

	err = registry.SafeTransferFrom(snap, alice, alice, bob, id, 6)
	require.EqualError(t, err, "token 1: insufficient balance: have 5, need 6")

	err = registry.SafeTransferFrom(snap, alice, alice, bob, id, 5)
	require.NoError(t, err)

	balance, err := registry.BalanceOf(snap, bob, id)
	require.NoError(t, err)
	require.Equal(t, uint64(5), balance)
}

func TestRegisterContract(t *testing.T) {
	RegisterContract(native.NewExecution(), Contract{})
}

// -----------------------------------------------------------------------------
// Utility functions

func makeStep(t *testing.T, args ...string) execution.Step {
	return execution.Step{Current: makeTx(t, args...)}
}

func makeTx(t *testing.T, args ...string) txn.Transaction {
	options := []signed.TransactionOption{}
	for i := 0; i < len(args)-1; i += 2 {
		options = append(options, signed.WithArg(args[i], []byte(args[i+1])))
	}

	tx, err := signed.NewTransaction(0, alice, options...)
	require.NoError(t, err)

	return tx
}

type fakeCmd struct {
	err error
}

func (c fakeCmd) mint(_ store.Snapshot, _ execution.Step) error {
	return c.err
}

func (c fakeCmd) transfer(_ store.Snapshot, _ execution.Step) error {
	return c.err
}

func (c fakeCmd) approveAll(_ store.Snapshot, _ execution.Step) error {
	return c.err
}
