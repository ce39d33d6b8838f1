package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli"
	"github.com/voltwallet/swapd/swapdb"
)

var listSwapsCommand = cli.Command{
	Name:  "listswaps",
	Usage: "show the swaps in the local database, newest first",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name: "kind",
			Usage: "only show swaps of this kind: submarine or " +
				"reverse",
		},
	},
	Action: listSwaps,
}

func listSwaps(ctx *cli.Context) error {
	kinds := []swapdb.SwapKind{
		swapdb.KindSubmarine, swapdb.KindReverse,
	}
	if ctx.IsSet("kind") {
		kind, err := parseKind(ctx.String("kind"))
		if err != nil {
			return err
		}
		kinds = []swapdb.SwapKind{kind}
	}

	client, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	for _, kind := range kinds {
		swaps, err := client.ListSwaps(context.Background(), kind)
		if err != nil {
			return err
		}

		for _, swap := range swaps {
			logSwap(swap)
		}
	}

	return nil
}

func logSwap(swap *swapdb.Swap) {
	amt := swap.ExpectedAmount
	if swap.Kind == swapdb.KindReverse {
		amt = swap.OnchainAmount
	}

	fmt.Printf("%v %v %v %v %v", swap.CreatedAt.Format("2006-01-02 15:04"),
		swap.Id, swap.Kind, swap.State, amt)

	if swap.FailureReason != "" {
		fmt.Printf(" (%v)", swap.FailureReason)
	}

	fmt.Println()
}
