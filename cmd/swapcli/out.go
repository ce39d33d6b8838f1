package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli"
	"github.com/voltwallet/swapd"
)

var swapOutCommand = cli.Command{
	Name:      "out",
	Usage:     "perform an off-chain to on-chain swap (reverse)",
	ArgsUsage: "amt addr",
	Description: `
	Negotiates a reverse swap over the amount in satoshis given by the amt
	argument, paying out on-chain to addr. The returned hold invoice must
	be paid by your Lightning wallet; the on-chain claim happens
	automatically while monitoring.`,
	Flags: []cli.Flag{
		cli.Uint64Flag{
			Name: "sat_per_vbyte",
			Usage: "the fee rate for the claim transaction in " +
				"sat/vbyte",
			Value: 2,
		},
	},
	Action: swapOut,
}

func swapOut(ctx *cli.Context) error {
	// Show command help if amount or address are missing.
	if ctx.NArg() != 2 {
		return cli.ShowCommandHelp(ctx, "out")
	}
	args := ctx.Args()

	amt, err := parseAmt(args[0])
	if err != nil {
		return err
	}

	destAddr, err := parseAddr(ctx, args.Get(1))
	if err != nil {
		return fmt.Errorf("invalid destination address: %v", err)
	}

	client, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	swap, err := client.CreateReverseSwap(
		context.Background(), &swapd.ReverseSwapRequest{
			Amount:       amt,
			DestAddr:     destAddr,
			SweepFeeRate: ctx.Uint64("sat_per_vbyte"),
		},
	)
	if err != nil {
		return err
	}

	fmt.Printf("Swap initiated\n")
	fmt.Printf("ID:             %v\n", swap.Id)
	fmt.Printf("On-chain amount: %v\n", swap.OnchainAmount)
	fmt.Printf("Pay invoice:\n%v\n", swap.Invoice)
	fmt.Println()
	fmt.Printf("Run `swapcli monitor` to monitor progress.\n")

	return nil
}
