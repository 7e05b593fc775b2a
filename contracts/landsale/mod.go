// Package landsale implements the native contract selling the parcels of the
// land registry. An admin defines prices over inclusive identifier ranges; a
// parcel covered by no range is not sellable. Buying pulls the total price in
// NKO from the buyer to the treasury and mints every parcel of the batch to
// the buyer, all of it or none of it.
package landsale

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.neoki.io/neoki"
	"go.neoki.io/neoki/core/access"
	"go.neoki.io/neoki/core/execution"
	"go.neoki.io/neoki/core/execution/native"
	"go.neoki.io/neoki/core/store"
	"golang.org/x/xerrors"
)

// commands defines the commands of the landsale contract. This interface
// helps in testing the contract.
type commands interface {
	define(snap store.Snapshot, step execution.Step) error
	buy(snap store.Snapshot, step execution.Step) error
	read(snap store.Snapshot, step execution.Step) error
}

const (
	// ContractName is the name of the contract.
	ContractName = "go.neoki.io/neoki.LandSale"

	// ContractUID is the unique (4-bytes) identifier of the contract, used as
	// the namespace of its keys.
	ContractUID = "SALE"

	// FromArg is the argument's name in the transaction that contains the
	// low identifier of a range.
	FromArg = "landsale:from"

	// ToArg is the argument's name in the transaction that contains the high
	// identifier of a range.
	ToArg = "landsale:to"

	// PriceArg is the argument's name in the transaction that contains the
	// price applied to every parcel of the range.
	PriceArg = "landsale:price"

	// IDsArg is the argument's name in the transaction that contains the
	// comma-separated parcel identifiers of a BUY.
	IDsArg = "landsale:ids"

	// CmdArg is the argument's name to indicate the kind of command we want
	// to run on the contract. Should be one of the Command type.
	CmdArg = "landsale:command"

	// credentialAdminCommand defines the credential command of the price
	// administration right.
	credentialAdminCommand = "admin"
)

// Command defines a type of command for the landsale contract.
type Command string

const (
	// CmdDefine defines the command to insert a price range. Only the admin
	// credential can run it.
	CmdDefine Command = "DEFINE_RANGE"

	// CmdBuy defines the command to buy a batch of parcels.
	CmdBuy Command = "BUY"

	// CmdRead defines the command to display the resolved prices of a range.
	CmdRead Command = "READ"
)

// Minter is the registry capability required to deliver a bought parcel.
type Minter interface {
	Mint(snap store.Snapshot, to access.Address, id uint64, now time.Time) error
}

// Payer is the token capability required to settle a purchase.
type Payer interface {
	TransferFrom(snap store.Snapshot, spender, from, to access.Address, amount uint64) error
}

// NewCreds creates the admin credentials of the landsale contract.
func NewCreds(id []byte) access.Credential {
	return access.NewContractCreds(id, ContractName, credentialAdminCommand)
}

// RegisterContract registers the landsale contract to the given execution
// service.
func RegisterContract(exec *native.Service, c Contract) {
	exec.Set(ContractName, c)
}

// Contract is the smart contract selling land parcels at range-defined
// prices.
//
// - implements native.Contract
type Contract struct {
	// access is the access control service managing the admin right.
	access access.Service

	// accessKey is the credential allowed to define prices.
	accessKey []byte

	// token settles the payments.
	token Payer

	// land delivers the parcels.
	land Minter

	// self is the ledger address of the contract, the approved spender of
	// the buyers.
	self access.Address

	// treasury receives the full sale price.
	treasury access.Address

	// clock gives the purchase time to the registry lock checks.
	clock func() time.Time

	// cmd provides the commands that can be executed by this smart contract.
	cmd commands

	// printer is the output used by the READ command.
	printer io.Writer
}

// NewContract creates a new landsale contract.
func NewContract(aKey []byte, srvc access.Service, token Payer, land Minter,
	self, treasury access.Address) Contract {

	contract := Contract{
		access:    srvc,
		accessKey: aKey,
		token:     token,
		land:      land,
		self:      self,
		treasury:  treasury,
		clock:     time.Now,
		printer:   infoLog{},
	}

	contract.cmd = saleCommand{Contract: &contract}

	return contract
}

// Execute implements native.Contract. It runs the appropriate command.
func (c Contract) Execute(snap store.Snapshot, step execution.Step) error {
	cmd := step.Current.GetArg(CmdArg)
	if len(cmd) == 0 {
		return xerrors.Errorf("'%s' not found in tx arg", CmdArg)
	}

	switch Command(cmd) {
	case CmdDefine:
		creds := NewCreds(c.accessKey)

		err := c.access.Match(snap, creds, step.Current.GetIdentity())
		if err != nil {
			return xerrors.Errorf("identity not authorized: %v", err)
		}

		err = c.cmd.define(snap, step)
		if err != nil {
			return xerrors.Errorf("failed to DEFINE_RANGE: %v", err)
		}
	case CmdBuy:
		err := c.cmd.buy(snap, step)
		if err != nil {
			return xerrors.Errorf("failed to BUY: %v", err)
		}
	case CmdRead:
		err := c.cmd.read(snap, step)
		if err != nil {
			return xerrors.Errorf("failed to READ: %v", err)
		}
	default:
		return xerrors.Errorf("unknown command: %s", cmd)
	}

	return nil
}

// BuyLand executes the purchase of a batch of parcels by the buyer. Every
// identifier must resolve to a price. The total is paid to the treasury
// before any parcel is minted, and a failed mint aborts the whole purchase.
// It returns the settled total.
func (c Contract) BuyLand(snap store.Snapshot, buyer access.Address, ids []uint64) (uint64, error) {
	if len(ids) == 0 {
		return 0, xerrors.New("no parcel to buy")
	}

	total := uint64(0)

	for _, id := range ids {
		price, err := PriceOf(snap, id)
		if err != nil {
			return 0, xerrors.Errorf("failed to resolve price: %v", err)
		}

		if price == 0 {
			return 0, xerrors.Errorf("LAND %d not sellable", id)
		}

		if total+price < total {
			return 0, xerrors.New("total price overflow")
		}

		total += price
	}

	err := c.token.TransferFrom(snap, c.self, buyer, c.treasury, total)
	if err != nil {
		return 0, xerrors.Errorf("failed to pay treasury: %v", err)
	}

	now := c.clock()

	for _, id := range ids {
		err = c.land.Mint(snap, buyer, id, now)
		if err != nil {
			return 0, xerrors.Errorf("failed to mint: %v", err)
		}
	}

	return total, nil
}

// saleCommand implements the commands of the landsale contract.
//
// - implements commands
type saleCommand struct {
	*Contract
}

// define implements commands. It performs the DEFINE_RANGE command.
func (c saleCommand) define(snap store.Snapshot, step execution.Step) error {
	lo, err := uintArg(step, FromArg)
	if err != nil {
		return err
	}

	hi, err := uintArg(step, ToArg)
	if err != nil {
		return err
	}

	price, err := uintArg(step, PriceArg)
	if err != nil {
		return err
	}

	err = DefinePriceRange(snap, lo, hi, price)
	if err != nil {
		return err
	}

	neoki.Logger.Info().Str("contract", ContractName).
		Msgf("defined price %d for LANDs [%d; %d]", price, lo, hi)

	return nil
}

// buy implements commands. It performs the BUY command.
func (c saleCommand) buy(snap store.Snapshot, step execution.Step) error {
	buyer, ok := access.AddressOf(step.Current.GetIdentity())
	if !ok {
		return xerrors.New("emitter is not an address")
	}

	value := step.Current.GetArg(IDsArg)
	if len(value) == 0 {
		return xerrors.Errorf("'%s' not found in tx arg", IDsArg)
	}

	fields := strings.Split(string(value), ",")

	ids := make([]uint64, len(fields))
	for i, field := range fields {
		id, err := strconv.ParseUint(strings.TrimSpace(field), 10, 64)
		if err != nil {
			return xerrors.Errorf("failed to parse id: %v", err)
		}

		ids[i] = id
	}

	total, err := c.BuyLand(snap, buyer, ids)
	if err != nil {
		return err
	}

	neoki.Logger.Info().Str("contract", ContractName).
		Msgf("sold %d LANDs to %v for %d", len(ids), buyer, total)

	return nil
}

// read implements commands. It performs the READ command.
func (c saleCommand) read(snap store.Snapshot, step execution.Step) error {
	from, err := uintArg(step, FromArg)
	if err != nil {
		return err
	}

	to, err := uintArg(step, ToArg)
	if err != nil {
		return err
	}

	return ScanPrices(snap, from, to, func(id, price uint64) error {
		fmt.Fprintf(c.printer, "%d=%d\n", id, price)

		return nil
	})
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
