package marketplace

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"go.neoki.io/neoki/contracts/nfts"
	"go.neoki.io/neoki/contracts/nko"
	"go.neoki.io/neoki/core/access"
	"go.neoki.io/neoki/core/execution"
	"go.neoki.io/neoki/core/execution/native"
	"go.neoki.io/neoki/core/store"
	"go.neoki.io/neoki/core/store/mem"
	"go.neoki.io/neoki/core/txn"
	"go.neoki.io/neoki/core/txn/signed"
	"go.neoki.io/neoki/internal/testing/fake"
)

const (
	alice      = access.Address("alice")
	bob        = access.Address("bob")
	market     = access.Address("market")
	collection = access.Address("collection")
	foundation = access.Address("foundation")
	pool       = access.Address("pool")
)

func TestExecute(t *testing.T) {
	contract := makeContract()

	err := contract.Execute(fake.NewSnapshot(), makeStep(t, alice))
	require.EqualError(t, err, "'marketplace:command' not found in tx arg")

	contract.cmd = fakeCmd{err: fake.GetError()}

	for _, cmd := range []string{
		"MINT_LIST", "LIST", "ADD_AMOUNT", "REMOVE_AMOUNT", "UPDATE_PRICE", "BUY", "DISPLAY",
	} {
		err = contract.Execute(fake.NewSnapshot(), makeStep(t, alice, CmdArg, cmd))
		require.EqualError(t, err, fake.Err("failed to "+cmd))
	}

	err = contract.Execute(fake.NewSnapshot(), makeStep(t, alice, CmdArg, "fake"))
	require.EqualError(t, err, "unknown command: fake")

	contract.cmd = fakeCmd{}
	err = contract.Execute(fake.NewSnapshot(), makeStep(t, alice, CmdArg, "LIST"))
	require.NoError(t, err)
}

func TestMintAndListItem(t *testing.T) {
	contract := makeContract()

	snap := fake.NewSnapshot()

	_, err := contract.MintAndListItem(snap, alice, 10, 450, "ipfs://deadbeef")
	require.EqualError(t, err,
		"failed to pay mint fee: insufficient allowance: have 0, need 5")

	fund(t, snap, alice, 100)

	item, err := contract.MintAndListItem(snap, alice, 10, 450, "ipfs://deadbeef")
	require.NoError(t, err)
	require.Equal(t, uint64(1), item.ItemID)
	require.Equal(t, uint64(1), item.TokenID)
	require.Equal(t, alice, item.Owner)
	require.True(t, item.Escrowed)

	// the flat creation fee goes to the foundation
	balance, err := nko.NewLedger().BalanceOf(snap, foundation)
	require.NoError(t, err)
	require.Equal(t, uint64(DefaultMintFee), balance)

	// the minted quantity is escrowed by the marketplace
	held, err := nfts.NewRegistry().BalanceOf(snap, market, item.TokenID)
	require.NoError(t, err)
	require.Equal(t, uint64(10), held)
}

func TestListItem(t *testing.T) {
	contract := makeContract()

	snap := fake.NewSnapshot()

	_, err := contract.ListItem(snap, alice, "fake", 1, 10, 100)
	require.EqualError(t, err, "unsupported collection 'fake'")

	_, err = contract.ListItem(snap, alice, collection, 1, 0, 100)
	require.EqualError(t, err, "amount must be positive")

	id, err := nfts.NewRegistry().Mint(snap, alice, 10, "")
	require.NoError(t, err)

	item, err := contract.ListItem(snap, alice, collection, id, 10, 100)
	require.NoError(t, err)
	require.Equal(t, uint64(1), item.ItemID)
	require.False(t, item.Escrowed)

	// listing does not move the inventory
	held, err := nfts.NewRegistry().BalanceOf(snap, alice, id)
	require.NoError(t, err)
	require.Equal(t, uint64(10), held)
}

func TestAddMyListingItemAmount(t *testing.T) {
	contract := makeContract()

	snap := fake.NewSnapshot()

	err := contract.AddMyListingItemAmount(snap, alice, 1, 5, 1)
	require.EqualError(t, err, "item 1 not found")

	id, err := nfts.NewRegistry().Mint(snap, alice, 10, "")
	require.NoError(t, err)

	item, err := contract.ListItem(snap, alice, collection, id, 4, 100)
	require.NoError(t, err)

	err = contract.AddMyListingItemAmount(snap, bob, item.ItemID, 5, id)
	require.EqualError(t, err, "not the owner of the listed item")

	err = contract.AddMyListingItemAmount(snap, alice, item.ItemID, 5, 99)
	require.EqualError(t, err, "wrong token: expected 99, listed 1")

	err = contract.AddMyListingItemAmount(snap, alice, item.ItemID, 5, id)
	require.NoError(t, err)

	items, err := contract.AllItems(snap)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, uint64(9), items[0].Amount)
}

func TestRemoveMyListingItemAmount(t *testing.T) {
	contract := makeContract()

	snap := fake.NewSnapshot()
	fund(t, snap, alice, 100)

	item, err := contract.MintAndListItem(snap, alice, 10, 450, "")
	require.NoError(t, err)

	err = contract.RemoveMyListingItemAmount(snap, bob, item.ItemID, 1)
	require.EqualError(t, err, "not the owner of the listed item")

	err = contract.RemoveMyListingItemAmount(snap, alice, item.ItemID, 11)
	require.EqualError(t, err, "insufficient listed amount: have 10, need 11")

	err = contract.RemoveMyListingItemAmount(snap, alice, item.ItemID, 4)
	require.NoError(t, err)

	// the escrowed quantity comes back to the seller
	held, err := nfts.NewRegistry().BalanceOf(snap, alice, item.TokenID)
	require.NoError(t, err)
	require.Equal(t, uint64(4), held)

	// removing the rest makes the listing disappear
	err = contract.RemoveMyListingItemAmount(snap, alice, item.ItemID, 6)
	require.NoError(t, err)

	items, err := contract.AllItems(snap)
	require.NoError(t, err)
	require.Empty(t, items)

	err = contract.RemoveMyListingItemAmount(snap, alice, item.ItemID, 1)
	require.EqualError(t, err, "item 1 not found")
}

func TestUpdateMyListingItemPrice(t *testing.T) {
	contract := makeContract()

	snap := fake.NewSnapshot()

	err := contract.UpdateMyListingItemPrice(snap, alice, 1, 500)
	require.EqualError(t, err, "item 1 not found")

	id, err := nfts.NewRegistry().Mint(snap, alice, 10, "")
	require.NoError(t, err)

	item, err := contract.ListItem(snap, alice, collection, id, 10, 100)
	require.NoError(t, err)

	err = contract.UpdateMyListingItemPrice(snap, bob, item.ItemID, 500)
	require.EqualError(t, err, "not the owner of the listed item")

	err = contract.UpdateMyListingItemPrice(snap, alice, item.ItemID, 500)
	require.NoError(t, err)

	items, err := contract.AllItems(snap)
	require.NoError(t, err)
	require.Equal(t, uint64(500), items[0].Price)
}

func TestBuyItem(t *testing.T) {
	contract := makeContract()

	snap := fake.NewSnapshot()
	fund(t, snap, alice, 100)

	_, err := contract.BuyItem(snap, bob, 1, 0)
	require.EqualError(t, err, "amount must be positive")

	_, err = contract.BuyItem(snap, bob, 1, 1)
	require.EqualError(t, err, "item 1 not found")

	item, err := contract.MintAndListItem(snap, alice, 10, 450, "")
	require.NoError(t, err)

	_, err = contract.BuyItem(snap, bob, item.ItemID, 11)
	require.EqualError(t, err, "insufficient listed amount: have 10, need 11")

	_, err = contract.BuyItem(snap, bob, item.ItemID, 10)
	require.EqualError(t, err,
		"failed to pay seller: insufficient allowance: have 0, need 432")

	fund(t, snap, bob, 450)

	payment, err := contract.BuyItem(snap, bob, item.ItemID, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(450), payment)

	ledger := nko.NewLedger()

	// 4% of 450 is 18, split evenly
	requireBalance(t, ledger, snap, alice, 100-DefaultMintFee+432)
	requireBalance(t, ledger, snap, pool, 9)
	requireBalance(t, ledger, snap, foundation, DefaultMintFee+9)

	// the whole quantity moved out of escrow
	held, err := nfts.NewRegistry().BalanceOf(snap, bob, item.TokenID)
	require.NoError(t, err)
	require.Equal(t, uint64(10), held)

	// a fully bought listing disappears
	items, err := contract.AllItems(snap)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestBuyItem_Partial(t *testing.T) {
	contract := makeContract()

	snap := fake.NewSnapshot()
	fund(t, snap, alice, 100)
	fund(t, snap, bob, 100)

	item, err := contract.MintAndListItem(snap, alice, 8, 100, "")
	require.NoError(t, err)

	// 2 of 8 at a whole-listing price of 100 settles the truncated share
	payment, err := contract.BuyItem(snap, bob, item.ItemID, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(25), payment)

	ledger := nko.NewLedger()

	// fee 1, nothing for the pool after the halving
	requireBalance(t, ledger, snap, alice, 100-DefaultMintFee+24)
	requireBalance(t, ledger, snap, pool, 0)
	requireBalance(t, ledger, snap, foundation, DefaultMintFee+1)

	items, err := contract.AllItems(snap)
	require.NoError(t, err)
	require.Equal(t, uint64(6), items[0].Amount)
}

func TestBuyItem_FeeRemainder(t *testing.T) {
	contract := makeContract()

	snap := fake.NewSnapshot()
	fund(t, snap, alice, 100)
	fund(t, snap, bob, 100)

	item, err := contract.MintAndListItem(snap, alice, 25, 200, "")
	require.NoError(t, err)

	payment, err := contract.BuyItem(snap, bob, item.ItemID, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(80), payment)

	ledger := nko.NewLedger()

	// fee 3: 1 to the pool, the odd unit to the foundation
	requireBalance(t, ledger, snap, alice, 100-DefaultMintFee+77)
	requireBalance(t, ledger, snap, pool, 1)
	requireBalance(t, ledger, snap, foundation, DefaultMintFee+2)
}

func TestBuyItem_Overflow(t *testing.T) {
	contract := makeContract()

	snap := fake.NewSnapshot()

	id, err := nfts.NewRegistry().Mint(snap, alice, 4, "")
	require.NoError(t, err)

	item, err := contract.ListItem(snap, alice, collection, id, 4, 1<<62)
	require.NoError(t, err)

	// the proportional settlement must not wrap into a free purchase
	_, err = contract.BuyItem(snap, bob, item.ItemID, 4)
	require.EqualError(t, err, "payment overflow")

	err = contract.UpdateMyListingItemPrice(snap, alice, item.ItemID, math.MaxUint64/100)
	require.NoError(t, err)

	_, err = contract.BuyItem(snap, bob, item.ItemID, 4)
	require.EqualError(t, err, "fee overflow")
}

func TestAddMyListingItemAmount_Overflow(t *testing.T) {
	contract := makeContract()

	snap := fake.NewSnapshot()

	id, err := nfts.NewRegistry().Mint(snap, alice, 1, "")
	require.NoError(t, err)

	item, err := contract.ListItem(snap, alice, collection, id, 1, 10)
	require.NoError(t, err)

	err = contract.AddMyListingItemAmount(snap, alice, item.ItemID, math.MaxUint64, id)
	require.EqualError(t, err, "amount overflow")
}

func TestBuyItem_PlainListing(t *testing.T) {
	contract := makeContract()

	snap := fake.NewSnapshot()
	fund(t, snap, bob, 100)

	id, err := nfts.NewRegistry().Mint(snap, alice, 10, "")
	require.NoError(t, err)

	item, err := contract.ListItem(snap, alice, collection, id, 10, 100)
	require.NoError(t, err)

	// the seller kept custody and never approved the marketplace; the refused
	// purchase runs on an overlay so its payments are discarded with it
	staging := mem.NewStaging(snap)

	_, err = contract.BuyItem(staging, bob, item.ItemID, 10)
	require.EqualError(t, err, "failed to deliver: 'market' is not approved by 'alice'")

	requireBalance(t, nko.NewLedger(), snap, bob, 100)

	require.NoError(t, nfts.NewRegistry().SetApprovalForAll(snap, alice, market, true))

	_, err = contract.BuyItem(snap, bob, item.ItemID, 10)
	require.NoError(t, err)

	held, err := nfts.NewRegistry().BalanceOf(snap, bob, id)
	require.NoError(t, err)
	require.Equal(t, uint64(10), held)
}

func TestCompaction(t *testing.T) {
	contract := makeContract()

	snap := fake.NewSnapshot()
	fund(t, snap, alice, 100)
	fund(t, snap, bob, 1000)

	for i := 0; i < 3; i++ {
		_, err := contract.MintAndListItem(snap, alice, 1, 100, "")
		require.NoError(t, err)
	}

	// buying out the middle listing shifts the tail without a gap
	_, err := contract.BuyItem(snap, bob, 2, 1)
	require.NoError(t, err)

	items, err := contract.AllItems(snap)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, uint64(1), items[0].ItemID)
	require.Equal(t, uint64(3), items[1].ItemID)

	// identifiers keep growing, a removed one is never reused
	item, err := contract.MintAndListItem(snap, alice, 1, 100, "")
	require.NoError(t, err)
	require.Equal(t, uint64(4), item.ItemID)
}

func TestCommand_MintList(t *testing.T) {
	contract := makeContract()

	cmd := marketCommand{Contract: &contract}

	snap := fake.NewSnapshot()
	fund(t, snap, alice, 100)

	err := cmd.mintList(snap, makeStep(t, alice))
	require.EqualError(t, err, "'marketplace:amount' not found in tx arg")

	err = cmd.mintList(snap, makeStep(t, alice, AmountArg, "10"))
	require.EqualError(t, err, "'marketplace:price' not found in tx arg")

	err = cmd.mintList(snap, makeStep(t, alice, AmountArg, "oops", PriceArg, "450"))
	require.EqualError(t, err,
		"failed to parse 'marketplace:amount': strconv.ParseUint: parsing \"oops\": invalid syntax")

	err = cmd.mintList(snap, makeStep(t, alice, AmountArg, "10", PriceArg, "450"))
	require.NoError(t, err)

	items, err := contract.AllItems(snap)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestCommand_List(t *testing.T) {
	contract := makeContract()

	cmd := marketCommand{Contract: &contract}

	snap := fake.NewSnapshot()

	id, err := nfts.NewRegistry().Mint(snap, alice, 10, "")
	require.NoError(t, err)

	err = cmd.list(snap, makeStep(t, alice))
	require.EqualError(t, err, "'marketplace:collection' not found in tx arg")

	err = cmd.list(snap, makeStep(t, alice,
		CollectionArg, "collection", TokenArg, "1", AmountArg, "10", PriceArg, "100"))
	require.NoError(t, err)

	items, err := contract.AllItems(snap)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, id, items[0].TokenID)
}

func TestCommand_Buy(t *testing.T) {
	contract := makeContract()

	cmd := marketCommand{Contract: &contract}

	snap := fake.NewSnapshot()
	fund(t, snap, alice, 100)
	fund(t, snap, bob, 450)

	_, err := contract.MintAndListItem(snap, alice, 10, 450, "")
	require.NoError(t, err)

	err = cmd.buy(snap, makeStep(t, bob))
	require.EqualError(t, err, "'marketplace:item' not found in tx arg")

	err = cmd.buy(snap, makeStep(t, bob, ItemArg, "1"))
	require.EqualError(t, err, "'marketplace:amount' not found in tx arg")

	err = cmd.buy(snap, makeStep(t, bob, ItemArg, "1", AmountArg, "10"))
	require.NoError(t, err)

	held, err := nfts.NewRegistry().BalanceOf(snap, bob, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(10), held)
}

func TestCommand_Display(t *testing.T) {
	contract := makeContract()

	buf := &bytes.Buffer{}
	contract.printer = buf

	cmd := marketCommand{Contract: &contract}

	snap := fake.NewSnapshot()
	fund(t, snap, alice, 100)

	_, err := contract.MintAndListItem(snap, alice, 10, 450, "")
	require.NoError(t, err)

	err = cmd.display(snap)
	require.NoError(t, err)

	require.Equal(t, "1: token 1 x10 at 450 by alice\n", buf.String())
}

func TestInfoLog(t *testing.T) {
	log := infoLog{}

	n, err := log.Write([]byte{0b0, 0b1})
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestRegisterContract(t *testing.T) {
	RegisterContract(native.NewExecution(), Contract{})
}

// -----------------------------------------------------------------------------
// Utility functions

func makeContract() Contract {
	return NewContract(nko.NewLedger(), nfts.NewRegistry(), collection, market, Config{
		Foundation: foundation,
		StakePool:  pool,
		MintFee:    DefaultMintFee,
		FeeBps:     DefaultFeeBps,
	})
}

// fund credits the trader and approves the marketplace as a spender.
func fund(t *testing.T, snap store.Snapshot, who access.Address, amount uint64) {
	ledger := nko.NewLedger()

	require.NoError(t, ledger.Mint(snap, who, amount))
	require.NoError(t, ledger.Approve(snap, who, market, amount))
}

func requireBalance(t *testing.T, ledger nko.Ledger, st store.Readable,
	who access.Address, expected uint64) {

	balance, err := ledger.BalanceOf(st, who)
	require.NoError(t, err)
	require.Equal(t, expected, balance)
}

func makeStep(t *testing.T, ident access.Address, args ...string) execution.Step {
	return execution.Step{Current: makeTx(t, ident, args...)}
}

func makeTx(t *testing.T, ident access.Address, args ...string) txn.Transaction {
	options := []signed.TransactionOption{}
	for i := 0; i < len(args)-1; i += 2 {
		options = append(options, signed.WithArg(args[i], []byte(args[i+1])))
	}

	tx, err := signed.NewTransaction(0, ident, options...)
	require.NoError(t, err)

	return tx
}

type fakeCmd struct {
	err error
}

func (c fakeCmd) mintList(_ store.Snapshot, _ execution.Step) error {
	return c.err
}

func (c fakeCmd) list(_ store.Snapshot, _ execution.Step) error {
	return c.err
}

func (c fakeCmd) addAmount(_ store.Snapshot, _ execution.Step) error {
	return c.err
}

func (c fakeCmd) removeAmount(_ store.Snapshot, _ execution.Step) error {
	return c.err
}

func (c fakeCmd) updatePrice(_ store.Snapshot, _ execution.Step) error {
	return c.err
}

func (c fakeCmd) buy(_ store.Snapshot, _ execution.Step) error {
	return c.err
}

func (c fakeCmd) display(_ store.Snapshot) error {
	return c.err
}
