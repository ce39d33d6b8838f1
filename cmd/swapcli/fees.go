package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli"
	"github.com/voltwallet/swapd"
)

var feesCommand = cli.Command{
	Name:   "fees",
	Usage:  "show the current server fee schedules",
	Action: fees,
}

func fees(ctx *cli.Context) error {
	client, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	schedule := client.GetFees(context.Background())

	printPairFees := func(fees *swapd.PairFees) {
		if fees == nil {
			fmt.Println("unavailable")
			return
		}

		fmt.Printf("Amount: %d - %d\n", fees.MinimalAmount,
			fees.MaximalAmount)
		fmt.Printf("Fee:    %.2f %% + %d miner fee\n", fees.Percentage,
			fees.MinerFee)
	}

	fmt.Println("Submarine (on-chain -> off-chain)")
	fmt.Println("---------------------------------")
	printPairFees(schedule.Submarine)
	fmt.Println()

	fmt.Println("Reverse (off-chain -> on-chain)")
	fmt.Println("-------------------------------")
	printPairFees(schedule.Reverse)

	return nil
}
