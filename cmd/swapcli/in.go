package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli"
	"github.com/voltwallet/swapd"
)

var swapInCommand = cli.Command{
	Name:      "in",
	Usage:     "perform an on-chain to off-chain swap (submarine)",
	ArgsUsage: "invoice",
	Description: `
	Negotiates a submarine swap for the given BOLT11 invoice. The server
	quotes a lockup address and the exact on-chain amount to send there.
	Once the lockup confirms, the server pays the invoice and the swap is
	settled cooperatively.`,
	Action: swapIn,
}

func swapIn(ctx *cli.Context) error {
	// Show command help if no invoice was provided.
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "in")
	}
	invoice := ctx.Args().First()

	client, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	swap, err := client.CreateSubmarineSwap(
		context.Background(), &swapd.SubmarineSwapRequest{
			Invoice: invoice,
		},
	)
	if err != nil {
		return err
	}

	fmt.Printf("Swap initiated\n")
	fmt.Printf("ID:             %v\n", swap.Id)
	fmt.Printf("Lockup address: %v\n", swap.LockupAddress)
	fmt.Printf("Send exactly:   %v\n", swap.ExpectedAmount)
	fmt.Println()
	fmt.Printf("Run `swapcli monitor` to monitor progress.\n")

	return nil
}
