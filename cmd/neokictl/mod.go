// Package main implements neokictl, the command line tool operating the
// Neoki economy over a local key/value database. Every mutating command runs
// a transaction through the native execution service inside a single
// database transaction, so a refused or failing contract leaves the ledger
// untouched.
package main

import (
	"fmt"
	"os"

	urfave "github.com/urfave/cli/v2"
)

func main() {
	app := makeApp()

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func makeApp() *urfave.App {
	asFlag := &urfave.StringFlag{
		Name:  "as",
		Usage: "ledger address emitting the transaction",
	}

	app := &urfave.App{
		Name:  "neokictl",
		Usage: "operate the Neoki land sale and collectible marketplace",
		Flags: []urfave.Flag{
			&urfave.StringFlag{
				Name:  "db",
				Usage: "path of the database",
				Value: "neoki.db",
			},
			&urfave.StringFlag{
				Name:  "treasury",
				Usage: "ledger address receiving the land sale proceeds",
				Value: "neoki:treasury",
			},
			&urfave.StringFlag{
				Name:  "foundation",
				Usage: "ledger address receiving the foundation fees",
				Value: "neoki:foundation",
			},
			&urfave.StringFlag{
				Name:  "pool",
				Usage: "ledger address receiving the staking pool fees",
				Value: "neoki:pool",
			},
		},
		Commands: []*urfave.Command{
			{
				Name:   "init",
				Usage:  "initialize the ledger and grant the admin rights",
				Action: initAction,
				Flags: []urfave.Flag{
					&urfave.StringFlag{
						Name:     "admin",
						Usage:    "ledger address granted the admin rights",
						Required: true,
					},
				},
			},
			{
				Name:  "nko",
				Usage: "operate the NKO token",
				Subcommands: []*urfave.Command{
					{
						Name:   "balance",
						Usage:  "display the balance of a holder",
						Action: nkoBalanceAction,
						Flags: []urfave.Flag{
							&urfave.StringFlag{Name: "of", Required: true},
						},
					},
					{
						Name:   "mint",
						Usage:  "mint tokens to a holder",
						Action: nkoMintAction,
						Flags: []urfave.Flag{
							asFlag,
							&urfave.StringFlag{Name: "to", Required: true},
							&urfave.StringFlag{Name: "amount", Required: true},
						},
					},
					{
						Name:   "transfer",
						Usage:  "transfer tokens to a holder",
						Action: nkoTransferAction,
						Flags: []urfave.Flag{
							asFlag,
							&urfave.StringFlag{Name: "to", Required: true},
							&urfave.StringFlag{Name: "amount", Required: true},
						},
					},
					{
						Name:   "approve",
						Usage:  "allow a spender to move tokens of the emitter",
						Action: nkoApproveAction,
						Flags: []urfave.Flag{
							asFlag,
							&urfave.StringFlag{Name: "spender", Required: true},
							&urfave.StringFlag{Name: "amount", Required: true},
						},
					},
				},
			},
			{
				Name:  "lands",
				Usage: "operate the land registry",
				Subcommands: []*urfave.Command{
					{
						Name:   "mint",
						Usage:  "mint a parcel outside of a sale",
						Action: landsMintAction,
						Flags: []urfave.Flag{
							asFlag,
							&urfave.StringFlag{Name: "to", Required: true},
							&urfave.StringFlag{Name: "id", Required: true},
						},
					},
					{
						Name:   "owner",
						Usage:  "display the owner of a parcel",
						Action: landsOwnerAction,
						Flags: []urfave.Flag{
							&urfave.StringFlag{Name: "id", Required: true},
						},
					},
					{
						Name:   "selling",
						Usage:  "display the number of parcels open for sale",
						Action: landsSellingAction,
					},
				},
			},
			{
				Name:  "sale",
				Usage: "operate the land sale",
				Subcommands: []*urfave.Command{
					{
						Name:   "define",
						Usage:  "define the price of a range of parcels",
						Action: saleDefineAction,
						Flags: []urfave.Flag{
							asFlag,
							&urfave.StringFlag{Name: "from", Required: true},
							&urfave.StringFlag{Name: "to", Required: true},
							&urfave.StringFlag{Name: "price", Required: true},
						},
					},
					{
						Name:   "buy",
						Usage:  "buy a batch of parcels",
						Action: saleBuyAction,
						Flags: []urfave.Flag{
							asFlag,
							&urfave.StringFlag{
								Name:     "ids",
								Usage:    "comma-separated parcel identifiers",
								Required: true,
							},
						},
					},
					{
						Name:   "prices",
						Usage:  "display the resolved prices of a range",
						Action: salePricesAction,
						Flags: []urfave.Flag{
							&urfave.StringFlag{Name: "from", Required: true},
							&urfave.StringFlag{Name: "to", Required: true},
						},
					},
				},
			},
			{
				Name:  "nfts",
				Usage: "operate the collectible registry",
				Subcommands: []*urfave.Command{
					{
						Name:   "approve",
						Usage:  "allow an operator to move collectibles of the emitter",
						Action: nftsApproveAction,
						Flags: []urfave.Flag{
							asFlag,
							&urfave.StringFlag{Name: "operator", Required: true},
							&urfave.BoolFlag{Name: "approved", Value: true},
						},
					},
					{
						Name:   "balance",
						Usage:  "display the balance of a holder for a collectible",
						Action: nftsBalanceAction,
						Flags: []urfave.Flag{
							&urfave.StringFlag{Name: "of", Required: true},
							&urfave.StringFlag{Name: "token", Required: true},
						},
					},
				},
			},
			{
				Name:  "market",
				Usage: "operate the collectible marketplace",
				Subcommands: []*urfave.Command{
					{
						Name:   "mintlist",
						Usage:  "mint a new collectible and list it",
						Action: marketMintListAction,
						Flags: []urfave.Flag{
							asFlag,
							&urfave.StringFlag{Name: "amount", Required: true},
							&urfave.StringFlag{Name: "price", Required: true},
							&urfave.StringFlag{Name: "uri"},
						},
					},
					{
						Name:   "list",
						Usage:  "list an already-held collectible",
						Action: marketListAction,
						Flags: []urfave.Flag{
							asFlag,
							&urfave.StringFlag{Name: "token", Required: true},
							&urfave.StringFlag{Name: "amount", Required: true},
							&urfave.StringFlag{Name: "price", Required: true},
						},
					},
					{
						Name:   "add",
						Usage:  "top up a listing",
						Action: marketAddAction,
						Flags: []urfave.Flag{
							asFlag,
							&urfave.StringFlag{Name: "item", Required: true},
							&urfave.StringFlag{Name: "token", Required: true},
							&urfave.StringFlag{Name: "amount", Required: true},
						},
					},
					{
						Name:   "remove",
						Usage:  "shrink a listing",
						Action: marketRemoveAction,
						Flags: []urfave.Flag{
							asFlag,
							&urfave.StringFlag{Name: "item", Required: true},
							&urfave.StringFlag{Name: "amount", Required: true},
						},
					},
					{
						Name:   "price",
						Usage:  "replace the price of a listing",
						Action: marketPriceAction,
						Flags: []urfave.Flag{
							asFlag,
							&urfave.StringFlag{Name: "item", Required: true},
							&urfave.StringFlag{Name: "price", Required: true},
						},
					},
					{
						Name:   "buy",
						Usage:  "buy a quantity of a listing",
						Action: marketBuyAction,
						Flags: []urfave.Flag{
							asFlag,
							&urfave.StringFlag{Name: "item", Required: true},
							&urfave.StringFlag{Name: "amount", Required: true},
						},
					},
					{
						Name:   "show",
						Usage:  "display the visible listings",
						Action: marketShowAction,
					},
				},
			},
		},
	}

	app.Setup()

	return app
}
