package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"
)

var monitorCommand = cli.Command{
	Name:      "monitor",
	Usage:     "track pending swaps until they settle",
	ArgsUsage: "[id]",
	Description: `
	Subscribes to the server updates of all pending swaps and performs the
	required settlement actions: cooperative claims for submarine swaps,
	claim broadcasts for reverse swaps, refund preparation for failed
	swaps. With an id argument only that swap is tracked.`,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name: "kind",
			Usage: "the kind of the swap given by id: submarine " +
				"or reverse",
			Value: "submarine",
		},
	},
	Action: monitor,
}

func monitor(cliCtx *cli.Context) error {
	client, cleanup, err := getClient(cliCtx)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stop tracking on interrupt, persisted state survives for the next
	// run.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if cliCtx.NArg() > 0 {
		kind, err := parseKind(cliCtx.String("kind"))
		if err != nil {
			return err
		}

		return client.TrackSwap(ctx, cliCtx.Args().First(), kind)
	}

	fmt.Println("Monitoring pending swaps, interrupt to stop.")

	return client.ResumeSwaps(ctx)
}
