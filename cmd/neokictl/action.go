package main

import (
	"fmt"
	"strconv"
	"time"

	urfave "github.com/urfave/cli/v2"
	"go.neoki.io/neoki/contracts/lands"
	"go.neoki.io/neoki/contracts/landsale"
	"go.neoki.io/neoki/contracts/marketplace"
	"go.neoki.io/neoki/contracts/nfts"
	"go.neoki.io/neoki/contracts/nko"
	"go.neoki.io/neoki/core/access"
	"go.neoki.io/neoki/core/access/rbac"
	"go.neoki.io/neoki/core/execution"
	"go.neoki.io/neoki/core/execution/native"
	"go.neoki.io/neoki/core/store"
	"go.neoki.io/neoki/core/store/kv"
	"go.neoki.io/neoki/core/txn"
	"go.neoki.io/neoki/core/txn/signed"
	"golang.org/x/xerrors"
)

const (
	// SaleAddress is the ledger address of the land sale contract. Buyers
	// approve it as a spender of their NKO.
	SaleAddress = access.Address("neoki:landsale")

	// MarketAddress is the ledger address of the marketplace contract. It
	// holds the escrowed inventory, and traders approve it as a spender and
	// operator.
	MarketAddress = access.Address("neoki:marketplace")
)

// accessKey is the credential identifier shared by the contracts.
var accessKey = []byte("neoki:access")

// bucket is the database bucket holding the ledger.
var bucket = []byte("neoki")

// initAction initializes the land registry time lock and grants the minting
// and price administration rights to the admin address.
func initAction(ctx *urfave.Context) error {
	admin := access.Address(ctx.String("admin"))
	asrv := rbac.NewService()

	db, err := kv.New(ctx.String("db"))
	if err != nil {
		return xerrors.Errorf("failed to open db: %v", err)
	}

	defer db.Close()

	return db.Update(bucket, func(b kv.Bucket) error {
		snap := kv.NewSnapshot(b)

		err := lands.NewRegistry().Init(snap, time.Now())
		if err != nil {
			return xerrors.Errorf("failed to initialize registry: %v", err)
		}

		for _, creds := range []access.Credential{
			nko.NewCreds(accessKey),
			lands.NewCreds(accessKey),
			landsale.NewCreds(accessKey),
		} {
			err = asrv.Grant(snap, creds, admin)
			if err != nil {
				return xerrors.Errorf("failed to grant '%s': %v", creds.GetRule(), err)
			}
		}

		return nil
	})
}

func nkoMintAction(ctx *urfave.Context) error {
	return submit(ctx, nko.ContractName,
		txn.Arg{Key: nko.CmdArg, Value: []byte(nko.CmdMint)},
		txn.Arg{Key: nko.ToArg, Value: []byte(ctx.String("to"))},
		txn.Arg{Key: nko.AmountArg, Value: []byte(ctx.String("amount"))},
	)
}

func nkoTransferAction(ctx *urfave.Context) error {
	return submit(ctx, nko.ContractName,
		txn.Arg{Key: nko.CmdArg, Value: []byte(nko.CmdTransfer)},
		txn.Arg{Key: nko.ToArg, Value: []byte(ctx.String("to"))},
		txn.Arg{Key: nko.AmountArg, Value: []byte(ctx.String("amount"))},
	)
}

func nkoApproveAction(ctx *urfave.Context) error {
	return submit(ctx, nko.ContractName,
		txn.Arg{Key: nko.CmdArg, Value: []byte(nko.CmdApprove)},
		txn.Arg{Key: nko.SpenderArg, Value: []byte(ctx.String("spender"))},
		txn.Arg{Key: nko.AmountArg, Value: []byte(ctx.String("amount"))},
	)
}

func nkoBalanceAction(ctx *urfave.Context) error {
	return view(ctx, func(st store.Readable) error {
		balance, err := nko.NewLedger().BalanceOf(st, access.Address(ctx.String("of")))
		if err != nil {
			return err
		}

		fmt.Fprintln(ctx.App.Writer, balance)

		return nil
	})
}

func landsMintAction(ctx *urfave.Context) error {
	return submit(ctx, lands.ContractName,
		txn.Arg{Key: lands.CmdArg, Value: []byte(lands.CmdMint)},
		txn.Arg{Key: lands.ToArg, Value: []byte(ctx.String("to"))},
		txn.Arg{Key: lands.IDArg, Value: []byte(ctx.String("id"))},
	)
}

func landsOwnerAction(ctx *urfave.Context) error {
	id, err := parseUint(ctx, "id")
	if err != nil {
		return err
	}

	return view(ctx, func(st store.Readable) error {
		owner, err := lands.NewRegistry().OwnerOf(st, id)
		if err != nil {
			return err
		}

		fmt.Fprintln(ctx.App.Writer, owner)

		return nil
	})
}

func landsSellingAction(ctx *urfave.Context) error {
	return view(ctx, func(st store.Readable) error {
		selling, err := lands.NewRegistry().SellingLands(st, time.Now())
		if err != nil {
			return err
		}

		fmt.Fprintln(ctx.App.Writer, selling)

		return nil
	})
}

func saleDefineAction(ctx *urfave.Context) error {
	return submit(ctx, landsale.ContractName,
		txn.Arg{Key: landsale.CmdArg, Value: []byte(landsale.CmdDefine)},
		txn.Arg{Key: landsale.FromArg, Value: []byte(ctx.String("from"))},
		txn.Arg{Key: landsale.ToArg, Value: []byte(ctx.String("to"))},
		txn.Arg{Key: landsale.PriceArg, Value: []byte(ctx.String("price"))},
	)
}

func saleBuyAction(ctx *urfave.Context) error {
	return submit(ctx, landsale.ContractName,
		txn.Arg{Key: landsale.CmdArg, Value: []byte(landsale.CmdBuy)},
		txn.Arg{Key: landsale.IDsArg, Value: []byte(ctx.String("ids"))},
	)
}

func salePricesAction(ctx *urfave.Context) error {
	from, err := parseUint(ctx, "from")
	if err != nil {
		return err
	}

	to, err := parseUint(ctx, "to")
	if err != nil {
		return err
	}

	return view(ctx, func(st store.Readable) error {
		prices, err := landsale.Prices(st, from, to)
		if err != nil {
			return err
		}

		for _, p := range prices {
			fmt.Fprintf(ctx.App.Writer, "%d=%d\n", p.ID, p.Price)
		}

		return nil
	})
}

func nftsApproveAction(ctx *urfave.Context) error {
	approved := "false"
	if ctx.Bool("approved") {
		approved = "true"
	}

	return submit(ctx, nfts.ContractName,
		txn.Arg{Key: nfts.CmdArg, Value: []byte(nfts.CmdApproveAll)},
		txn.Arg{Key: nfts.OperatorArg, Value: []byte(ctx.String("operator"))},
		txn.Arg{Key: nfts.ApprovedArg, Value: []byte(approved)},
	)
}

func nftsBalanceAction(ctx *urfave.Context) error {
	token, err := parseUint(ctx, "token")
	if err != nil {
		return err
	}

	return view(ctx, func(st store.Readable) error {
		balance, err := nfts.NewRegistry().BalanceOf(st,
			access.Address(ctx.String("of")), token)
		if err != nil {
			return err
		}

		fmt.Fprintln(ctx.App.Writer, balance)

		return nil
	})
}

func marketMintListAction(ctx *urfave.Context) error {
	return submit(ctx, marketplace.ContractName,
		txn.Arg{Key: marketplace.CmdArg, Value: []byte(marketplace.CmdMintList)},
		txn.Arg{Key: marketplace.AmountArg, Value: []byte(ctx.String("amount"))},
		txn.Arg{Key: marketplace.PriceArg, Value: []byte(ctx.String("price"))},
		txn.Arg{Key: marketplace.URIArg, Value: []byte(ctx.String("uri"))},
	)
}

func marketListAction(ctx *urfave.Context) error {
	return submit(ctx, marketplace.ContractName,
		txn.Arg{Key: marketplace.CmdArg, Value: []byte(marketplace.CmdList)},
		txn.Arg{Key: marketplace.CollectionArg, Value: []byte(nfts.ContractName)},
		txn.Arg{Key: marketplace.TokenArg, Value: []byte(ctx.String("token"))},
		txn.Arg{Key: marketplace.AmountArg, Value: []byte(ctx.String("amount"))},
		txn.Arg{Key: marketplace.PriceArg, Value: []byte(ctx.String("price"))},
	)
}

func marketAddAction(ctx *urfave.Context) error {
	return submit(ctx, marketplace.ContractName,
		txn.Arg{Key: marketplace.CmdArg, Value: []byte(marketplace.CmdAddAmount)},
		txn.Arg{Key: marketplace.ItemArg, Value: []byte(ctx.String("item"))},
		txn.Arg{Key: marketplace.TokenArg, Value: []byte(ctx.String("token"))},
		txn.Arg{Key: marketplace.AmountArg, Value: []byte(ctx.String("amount"))},
	)
}

func marketRemoveAction(ctx *urfave.Context) error {
	return submit(ctx, marketplace.ContractName,
		txn.Arg{Key: marketplace.CmdArg, Value: []byte(marketplace.CmdRemoveAmount)},
		txn.Arg{Key: marketplace.ItemArg, Value: []byte(ctx.String("item"))},
		txn.Arg{Key: marketplace.AmountArg, Value: []byte(ctx.String("amount"))},
	)
}

func marketPriceAction(ctx *urfave.Context) error {
	return submit(ctx, marketplace.ContractName,
		txn.Arg{Key: marketplace.CmdArg, Value: []byte(marketplace.CmdUpdatePrice)},
		txn.Arg{Key: marketplace.ItemArg, Value: []byte(ctx.String("item"))},
		txn.Arg{Key: marketplace.PriceArg, Value: []byte(ctx.String("price"))},
	)
}

func marketBuyAction(ctx *urfave.Context) error {
	return submit(ctx, marketplace.ContractName,
		txn.Arg{Key: marketplace.CmdArg, Value: []byte(marketplace.CmdBuy)},
		txn.Arg{Key: marketplace.ItemArg, Value: []byte(ctx.String("item"))},
		txn.Arg{Key: marketplace.AmountArg, Value: []byte(ctx.String("amount"))},
	)
}

func marketShowAction(ctx *urfave.Context) error {
	return view(ctx, func(st store.Readable) error {
		items, err := newMarketplace(ctx).AllItems(st)
		if err != nil {
			return err
		}

		for _, item := range items {
			fmt.Fprintf(ctx.App.Writer, "%d: token %d x%d at %d by %v\n",
				item.ItemID, item.TokenID, item.Amount, item.Price, item.Owner)
		}

		return nil
	})
}

// newExecution wires the contracts and registers them to a fresh execution
// service.
func newExecution(ctx *urfave.Context) *native.Service {
	asrv := rbac.NewService()
	token := nko.NewLedger()

	exec := native.NewExecution()

	nko.RegisterContract(exec, nko.NewContract(accessKey, asrv))
	lands.RegisterContract(exec, lands.NewContract(accessKey, asrv))
	nfts.RegisterContract(exec, nfts.NewContract())

	landsale.RegisterContract(exec, landsale.NewContract(accessKey, asrv,
		token, lands.NewRegistry(), SaleAddress, access.Address(ctx.String("treasury"))))

	marketplace.RegisterContract(exec, newMarketplace(ctx))

	return exec
}

func newMarketplace(ctx *urfave.Context) marketplace.Contract {
	return marketplace.NewContract(nko.NewLedger(), nfts.NewRegistry(),
		access.Address(nfts.ContractName), MarketAddress, marketplace.Config{
			Foundation: access.Address(ctx.String("foundation")),
			StakePool:  access.Address(ctx.String("pool")),
			MintFee:    marketplace.DefaultMintFee,
			FeeBps:     marketplace.DefaultFeeBps,
		})
}

// submit runs the transaction through the execution service inside a single
// database transaction. A refused execution rolls the writes back.
func submit(ctx *urfave.Context, contract string, args ...txn.Arg) error {
	emitter := ctx.String("as")
	if emitter == "" {
		return xerrors.New("--as is required")
	}

	opts := make([]signed.TransactionOption, 0, len(args)+1)
	opts = append(opts, signed.WithArg(native.ContractArg, []byte(contract)))

	for _, arg := range args {
		opts = append(opts, signed.WithArg(arg.Key, arg.Value))
	}

	tx, err := signed.NewTransaction(0, access.Address(emitter), opts...)
	if err != nil {
		return xerrors.Errorf("failed to create transaction: %v", err)
	}

	exec := newExecution(ctx)

	db, err := kv.New(ctx.String("db"))
	if err != nil {
		return xerrors.Errorf("failed to open db: %v", err)
	}

	defer db.Close()

	return db.Update(bucket, func(b kv.Bucket) error {
		res, err := exec.Execute(kv.NewSnapshot(b), execution.Step{Current: tx})
		if err != nil {
			return xerrors.Errorf("failed to execute: %v", err)
		}

		if !res.Accepted {
			return xerrors.Errorf("transaction refused: %s", res.Message)
		}

		return nil
	})
}

func parseUint(ctx *urfave.Context, name string) (uint64, error) {
	value, err := strconv.ParseUint(ctx.String(name), 10, 64)
	if err != nil {
		return 0, xerrors.Errorf("failed to parse --%s: %v", name, err)
	}

	return value, nil
}

// view opens a read-only session on the ledger.
func view(ctx *urfave.Context, fn func(store.Readable) error) error {
	db, err := kv.New(ctx.String("db"))
	if err != nil {
		return xerrors.Errorf("failed to open db: %v", err)
	}

	defer db.Close()

	return db.View(bucket, func(b kv.Bucket) error {
		return fn(kv.NewSnapshot(b))
	})
}
