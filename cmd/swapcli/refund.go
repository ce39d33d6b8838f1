package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli"
	"github.com/voltwallet/swapd"
)

var refundCommand = cli.Command{
	Name:      "refund",
	Usage:     "refund a failed or expired submarine swap",
	ArgsUsage: "id addr",
	Description: `
	Builds and broadcasts the refund transaction of a failed submarine
	swap, paying the locked funds back to addr. The swap must have
	reached a refundable state first.`,
	Flags: []cli.Flag{
		cli.Uint64Flag{
			Name: "sat_per_vbyte",
			Usage: "the fee rate for the refund transaction in " +
				"sat/vbyte",
			Value: 2,
		},
	},
	Action: refund,
}

func refund(ctx *cli.Context) error {
	// Show command help if id or address are missing.
	if ctx.NArg() != 2 {
		return cli.ShowCommandHelp(ctx, "refund")
	}
	args := ctx.Args()

	destAddr, err := parseAddr(ctx, args.Get(1))
	if err != nil {
		return fmt.Errorf("invalid destination address: %v", err)
	}

	client, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	err = client.RefundSwap(context.Background(), &swapd.RefundSwapRequest{
		SwapId:   args.First(),
		DestAddr: destAddr,
		FeeRate:  ctx.Uint64("sat_per_vbyte"),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Refund broadcast for swap %v.\n", args.First())

	return nil
}
