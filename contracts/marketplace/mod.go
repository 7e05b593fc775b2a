// Package marketplace implements the native contract of the Neoki
// collectible marketplace. Holders list quantities of a collectible at a
// price, top up or shrink their listings, and buyers purchase any
// sub-quantity. A purchase settles the proportional share of the listing
// price, minus a fee split between the staking pool and the foundation.
package marketplace

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"go.neoki.io/neoki"
	"go.neoki.io/neoki/core/access"
	"go.neoki.io/neoki/core/execution"
	"go.neoki.io/neoki/core/execution/native"
	"go.neoki.io/neoki/core/store"
	"golang.org/x/xerrors"
)

// commands defines the commands of the marketplace contract. This interface
// helps in testing the contract.
type commands interface {
	mintList(snap store.Snapshot, step execution.Step) error
	list(snap store.Snapshot, step execution.Step) error
	addAmount(snap store.Snapshot, step execution.Step) error
	removeAmount(snap store.Snapshot, step execution.Step) error
	updatePrice(snap store.Snapshot, step execution.Step) error
	buy(snap store.Snapshot, step execution.Step) error
	display(snap store.Snapshot) error
}

const (
	// ContractName is the name of the contract.
	ContractName = "go.neoki.io/neoki.Marketplace"

	// ContractUID is the unique (4-bytes) identifier of the contract, used as
	// the namespace of its keys.
	ContractUID = "MKT0"

	// ItemArg is the argument's name in the transaction that contains the
	// listing identifier.
	ItemArg = "marketplace:item"

	// CollectionArg is the argument's name in the transaction that contains
	// the registry address of a LIST.
	CollectionArg = "marketplace:collection"

	// TokenArg is the argument's name in the transaction that contains the
	// token identifier.
	TokenArg = "marketplace:token"

	// AmountArg is the argument's name in the transaction that contains a
	// quantity.
	AmountArg = "marketplace:amount"

	// PriceArg is the argument's name in the transaction that contains the
	// price of the whole listed amount.
	PriceArg = "marketplace:price"

	// URIArg is the argument's name in the transaction that contains the
	// metadata location of a MINT_LIST.
	URIArg = "marketplace:uri"

	// CmdArg is the argument's name to indicate the kind of command we want
	// to run on the contract. Should be one of the Command type.
	CmdArg = "marketplace:command"

	// FeeBasis is the denominator of the fee rate.
	FeeBasis = 10000

	// DefaultFeeBps is the purchase fee rate observed on the production
	// deployment: 4%, half to the staking pool, half to the foundation.
	DefaultFeeBps = 400

	// DefaultMintFee is the flat creation fee in NKO charged on mint-backed
	// listings.
	DefaultMintFee = 5
)

// Command defines a type of command for the marketplace contract.
type Command string

const (
	// CmdMintList defines the command to mint a new collectible and list it.
	CmdMintList Command = "MINT_LIST"

	// CmdList defines the command to list an already-held collectible.
	CmdList Command = "LIST"

	// CmdAddAmount defines the command to top up a listing.
	CmdAddAmount Command = "ADD_AMOUNT"

	// CmdRemoveAmount defines the command to shrink a listing.
	CmdRemoveAmount Command = "REMOVE_AMOUNT"

	// CmdUpdatePrice defines the command to replace the price of a listing.
	CmdUpdatePrice Command = "UPDATE_PRICE"

	// CmdBuy defines the command to buy a quantity of a listing.
	CmdBuy Command = "BUY"

	// CmdDisplay defines the command to display the visible listings.
	CmdDisplay Command = "DISPLAY"
)

// Collection is the registry capability required to mint and deliver the
// listed collectibles.
type Collection interface {
	Mint(snap store.Snapshot, to access.Address, amount uint64, uri string) (uint64, error)

	SafeTransferFrom(snap store.Snapshot, operator, from, to access.Address, id, amount uint64) error
}

// Payer is the token capability required to settle the payments.
type Payer interface {
	TransferFrom(snap store.Snapshot, spender, from, to access.Address, amount uint64) error
}

// Config holds the settlement parties and fees of the marketplace.
type Config struct {
	// Foundation receives the mint fees and half of the purchase fees.
	Foundation access.Address

	// StakePool receives the other half of the purchase fees.
	StakePool access.Address

	// MintFee is the flat NKO amount charged on MINT_LIST.
	MintFee uint64

	// FeeBps is the purchase fee rate in basis points.
	FeeBps uint64
}

// RegisterContract registers the marketplace contract to the given execution
// service.
func RegisterContract(exec *native.Service, c Contract) {
	exec.Set(ContractName, c)
}

// Contract is the smart contract of the collectible marketplace. Its
// commands are open: mutations are authorized by the listing ownership.
//
// - implements native.Contract
type Contract struct {
	// token settles the payments.
	token Payer

	// nfts mints and moves the collectibles.
	nfts Collection

	// collection is the ledger address of the registry backing the
	// listings. Listings of another registry are refused.
	collection access.Address

	// self is the ledger address of the contract. It holds the escrowed
	// inventory and is the approved spender and operator of the traders.
	self access.Address

	// config holds the settlement parties and fees.
	config Config

	// cmd provides the commands that can be executed by this smart contract.
	cmd commands

	// printer is the output used by the DISPLAY command.
	printer io.Writer
}

// NewContract creates a new marketplace contract.
func NewContract(token Payer, nfts Collection, collection, self access.Address, config Config) Contract {
	contract := Contract{
		token:      token,
		nfts:       nfts,
		collection: collection,
		self:       self,
		config:     config,
		printer:    infoLog{},
	}

	contract.cmd = marketCommand{Contract: &contract}

	return contract
}

// Execute implements native.Contract. It runs the appropriate command.
func (c Contract) Execute(snap store.Snapshot, step execution.Step) error {
	cmd := step.Current.GetArg(CmdArg)
	if len(cmd) == 0 {
		return xerrors.Errorf("'%s' not found in tx arg", CmdArg)
	}

	var err error

	switch Command(cmd) {
	case CmdMintList:
		err = c.cmd.mintList(snap, step)
	case CmdList:
		err = c.cmd.list(snap, step)
	case CmdAddAmount:
		err = c.cmd.addAmount(snap, step)
	case CmdRemoveAmount:
		err = c.cmd.removeAmount(snap, step)
	case CmdUpdatePrice:
		err = c.cmd.updatePrice(snap, step)
	case CmdBuy:
		err = c.cmd.buy(snap, step)
	case CmdDisplay:
		err = c.cmd.display(snap)
	default:
		return xerrors.Errorf("unknown command: %s", cmd)
	}

	if err != nil {
		return xerrors.Errorf("failed to %s: %v", cmd, err)
	}

	return nil
}

// AllItems returns the visible listings in table order.
func (c Contract) AllItems(st store.Readable) ([]Listing, error) {
	return loadItems(st)
}

// MintAndListItem charges the mint fee to the seller, mints a fresh
// collectible into the marketplace's custody and lists it. It returns the
// created listing.
func (c Contract) MintAndListItem(snap store.Snapshot, seller access.Address,
	amount, price uint64, uri string) (Listing, error) {

	err := c.token.TransferFrom(snap, c.self, seller, c.config.Foundation, c.config.MintFee)
	if err != nil {
		return Listing{}, xerrors.Errorf("failed to pay mint fee: %v", err)
	}

	tokenID, err := c.nfts.Mint(snap, c.self, amount, uri)
	if err != nil {
		return Listing{}, xerrors.Errorf("failed to mint: %v", err)
	}

	return c.appendListing(snap, Listing{
		Collection: c.collection,
		TokenID:    tokenID,
		Amount:     amount,
		Price:      price,
		Owner:      seller,
		Escrowed:   true,
	})
}

// ListItem lists an already-held quantity of a collectible. No transfer
// happens at listing time: the seller keeps custody and must have approved
// the marketplace as an operator for the settlement to succeed.
func (c Contract) ListItem(snap store.Snapshot, seller, collection access.Address,
	tokenID, amount, price uint64) (Listing, error) {

	if collection != c.collection {
		return Listing{}, xerrors.Errorf("unsupported collection '%v'", collection)
	}

	if amount == 0 {
		return Listing{}, xerrors.New("amount must be positive")
	}

	return c.appendListing(snap, Listing{
		Collection: collection,
		TokenID:    tokenID,
		Amount:     amount,
		Price:      price,
		Owner:      seller,
	})
}

// AddMyListingItemAmount tops up the listing. The expected token protects the
// seller against topping up the wrong listing.
func (c Contract) AddMyListingItemAmount(snap store.Snapshot, caller access.Address,
	itemID, add, expectTokenID uint64) error {

	items, err := loadItems(snap)
	if err != nil {
		return err
	}

	slot, item, err := findItem(items, itemID)
	if err != nil {
		return err
	}

	if item.Owner != caller {
		return xerrors.New("not the owner of the listed item")
	}

	if item.TokenID != expectTokenID {
		return xerrors.Errorf("wrong token: expected %d, listed %d", expectTokenID, item.TokenID)
	}

	if item.Amount+add < item.Amount {
		return xerrors.New("amount overflow")
	}

	items[slot].Amount += add

	return storeItems(snap, items)
}

// RemoveMyListingItemAmount shrinks the listing and returns escrowed
// inventory to the seller. The listing disappears from the table when its
// amount reaches zero.
func (c Contract) RemoveMyListingItemAmount(snap store.Snapshot, caller access.Address,
	itemID, remove uint64) error {

	items, err := loadItems(snap)
	if err != nil {
		return err
	}

	slot, item, err := findItem(items, itemID)
	if err != nil {
		return err
	}

	if item.Owner != caller {
		return xerrors.New("not the owner of the listed item")
	}

	if remove > item.Amount {
		return xerrors.Errorf("insufficient listed amount: have %d, need %d", item.Amount, remove)
	}

	if item.Escrowed {
		err = c.nfts.SafeTransferFrom(snap, c.self, c.self, item.Owner, item.TokenID, remove)
		if err != nil {
			return xerrors.Errorf("failed to return inventory: %v", err)
		}
	}

	items[slot].Amount -= remove

	if items[slot].Amount == 0 {
		items = removeItem(items, slot)
	}

	return storeItems(snap, items)
}

// UpdateMyListingItemPrice replaces the price of the listing.
func (c Contract) UpdateMyListingItemPrice(snap store.Snapshot, caller access.Address,
	itemID, price uint64) error {

	items, err := loadItems(snap)
	if err != nil {
		return err
	}

	slot, item, err := findItem(items, itemID)
	if err != nil {
		return err
	}

	if item.Owner != caller {
		return xerrors.New("not the owner of the listed item")
	}

	items[slot].Price = price

	return storeItems(snap, items)
}

// BuyItem settles the purchase of a quantity of the listing: the buyer pays
// the proportional share of the listing price, fees are split between the
// staking pool and the foundation, the quantity moves to the buyer and the
// listing shrinks, disappearing when fully bought. It returns the settled
// payment.
func (c Contract) BuyItem(snap store.Snapshot, buyer access.Address, itemID, buyAmount uint64) (uint64, error) {
	if buyAmount == 0 {
		return 0, xerrors.New("amount must be positive")
	}

	items, err := loadItems(snap)
	if err != nil {
		return 0, err
	}

	slot, item, err := findItem(items, itemID)
	if err != nil {
		return 0, err
	}

	if buyAmount > item.Amount {
		return 0, xerrors.Errorf("insufficient listed amount: have %d, need %d", item.Amount, buyAmount)
	}

	if item.Price > math.MaxUint64/buyAmount {
		return 0, xerrors.New("payment overflow")
	}

	// The price covers the whole listed amount, a partial purchase settles
	// the truncated proportional share.
	payment := item.Price * buyAmount / item.Amount

	if c.config.FeeBps != 0 && payment > math.MaxUint64/c.config.FeeBps {
		return 0, xerrors.New("fee overflow")
	}

	fee := payment * c.config.FeeBps / FeeBasis
	pool := fee / 2
	foundation := fee - pool

	err = c.token.TransferFrom(snap, c.self, buyer, item.Owner, payment-fee)
	if err != nil {
		return 0, xerrors.Errorf("failed to pay seller: %v", err)
	}

	err = c.token.TransferFrom(snap, c.self, buyer, c.config.StakePool, pool)
	if err != nil {
		return 0, xerrors.Errorf("failed to pay stake pool: %v", err)
	}

	err = c.token.TransferFrom(snap, c.self, buyer, c.config.Foundation, foundation)
	if err != nil {
		return 0, xerrors.Errorf("failed to pay foundation: %v", err)
	}

	from := item.Owner
	if item.Escrowed {
		from = c.self
	}

	err = c.nfts.SafeTransferFrom(snap, c.self, from, buyer, item.TokenID, buyAmount)
	if err != nil {
		return 0, xerrors.Errorf("failed to deliver: %v", err)
	}

	items[slot].Amount -= buyAmount

	if items[slot].Amount == 0 {
		items = removeItem(items, slot)
	}

	err = storeItems(snap, items)
	if err != nil {
		return 0, err
	}

	return payment, nil
}

func (c Contract) appendListing(snap store.Snapshot, item Listing) (Listing, error) {
	items, err := loadItems(snap)
	if err != nil {
		return Listing{}, err
	}

	item.ItemID, err = nextItemID(snap)
	if err != nil {
		return Listing{}, err
	}

	items = append(items, item)

	err = storeItems(snap, items)
	if err != nil {
		return Listing{}, err
	}

	return item, nil
}

// marketCommand implements the commands of the marketplace contract.
//
// - implements commands
type marketCommand struct {
	*Contract
}

// mintList implements commands. It performs the MINT_LIST command.
func (c marketCommand) mintList(snap store.Snapshot, step execution.Step) error {
	seller, err := emitter(step)
	if err != nil {
		return err
	}

	amount, err := uintArg(step, AmountArg)
	if err != nil {
		return err
	}

	price, err := uintArg(step, PriceArg)
	if err != nil {
		return err
	}

	uri := string(step.Current.GetArg(URIArg))

	item, err := c.MintAndListItem(snap, seller, amount, price, uri)
	if err != nil {
		return err
	}

	neoki.Logger.Info().Str("contract", ContractName).
		Msgf("listed item %d: %d of token %d at %d", item.ItemID, amount, item.TokenID, price)

	return nil
}

// list implements commands. It performs the LIST command.
func (c marketCommand) list(snap store.Snapshot, step execution.Step) error {
	seller, err := emitter(step)
	if err != nil {
		return err
	}

	collection := step.Current.GetArg(CollectionArg)
	if len(collection) == 0 {
		return xerrors.Errorf("'%s' not found in tx arg", CollectionArg)
	}

	tokenID, err := uintArg(step, TokenArg)
	if err != nil {
		return err
	}

	amount, err := uintArg(step, AmountArg)
	if err != nil {
		return err
	}

	price, err := uintArg(step, PriceArg)
	if err != nil {
		return err
	}

	_, err = c.ListItem(snap, seller, access.Address(collection), tokenID, amount, price)

	return err
}

// addAmount implements commands. It performs the ADD_AMOUNT command.
func (c marketCommand) addAmount(snap store.Snapshot, step execution.Step) error {
	caller, err := emitter(step)
	if err != nil {
		return err
	}

	itemID, err := uintArg(step, ItemArg)
	if err != nil {
		return err
	}

	add, err := uintArg(step, AmountArg)
	if err != nil {
		return err
	}

	tokenID, err := uintArg(step, TokenArg)
	if err != nil {
		return err
	}

	return c.AddMyListingItemAmount(snap, caller, itemID, add, tokenID)
}

// removeAmount implements commands. It performs the REMOVE_AMOUNT command.
func (c marketCommand) removeAmount(snap store.Snapshot, step execution.Step) error {
	caller, err := emitter(step)
	if err != nil {
		return err
	}

	itemID, err := uintArg(step, ItemArg)
	if err != nil {
		return err
	}

	remove, err := uintArg(step, AmountArg)
	if err != nil {
		return err
	}

	return c.RemoveMyListingItemAmount(snap, caller, itemID, remove)
}

// updatePrice implements commands. It performs the UPDATE_PRICE command.
func (c marketCommand) updatePrice(snap store.Snapshot, step execution.Step) error {
	caller, err := emitter(step)
	if err != nil {
		return err
	}

	itemID, err := uintArg(step, ItemArg)
	if err != nil {
		return err
	}

	price, err := uintArg(step, PriceArg)
	if err != nil {
		return err
	}

	return c.UpdateMyListingItemPrice(snap, caller, itemID, price)
}

// buy implements commands. It performs the BUY command.
func (c marketCommand) buy(snap store.Snapshot, step execution.Step) error {
	buyer, err := emitter(step)
	if err != nil {
		return err
	}

	itemID, err := uintArg(step, ItemArg)
	if err != nil {
		return err
	}

	amount, err := uintArg(step, AmountArg)
	if err != nil {
		return err
	}

	payment, err := c.BuyItem(snap, buyer, itemID, amount)
	if err != nil {
		return err
	}

	neoki.Logger.Info().Str("contract", ContractName).
		Msgf("sold %d of item %d to %v for %d", amount, itemID, buyer, payment)

	return nil
}

// display implements commands. It performs the DISPLAY command.
func (c marketCommand) display(snap store.Snapshot) error {
	items, err := loadItems(snap)
	if err != nil {
		return err
	}

	for _, item := range items {
		fmt.Fprintf(c.printer, "%d: token %d x%d at %d by %v\n",
			item.ItemID, item.TokenID, item.Amount, item.Price, item.Owner)
	}

	return nil
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

// infoLog defines an output using zerolog.
//
// - implements io.Writer
type infoLog struct{}

func (h infoLog) Write(p []byte) (int, error) {
	neoki.Logger.Info().Msg(string(p))

	return len(p), nil
}
