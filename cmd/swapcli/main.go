package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/urfave/cli"
	"github.com/voltwallet/swapd"
	"github.com/voltwallet/swapd/swapdb"
	"github.com/voltwallet/swapd/txsigner"
)

const (
	defaultServerURL = "https://api.boltz.exchange/v2"
	defaultSignerURL = "http://localhost:9050"
)

var swapDirBase = btcutil.AppDataDir("swapd", false)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[swapcli] %v\n", err)
	os.Exit(1)
}

func main() {
	app := cli.NewApp()

	app.Version = swapd.Version()
	app.Name = "swapcli"
	app.Usage = "initiate and settle atomic swaps"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "server",
			Value: defaultServerURL,
			Usage: "swap server REST api base url",
		},
		cli.StringFlag{
			Name:  "signer",
			Value: defaultSignerURL,
			Usage: "transaction signer service base url",
		},
		cli.StringFlag{
			Name:  "network",
			Value: "mainnet",
			Usage: "network to run on: mainnet, testnet, " +
				"regtest or signet",
		},
		cli.StringFlag{
			Name:  "swapdir",
			Value: swapDirBase,
			Usage: "directory holding the swap database",
		},
	}
	app.Commands = []cli.Command{
		swapInCommand, swapOutCommand, feesCommand,
		listSwapsCommand, monitorCommand, refundCommand,
	}

	err := app.Run(os.Args)
	if err != nil {
		fatal(err)
	}
}

// getClient assembles a swap client from the global flags. The returned
// cleanup closes the underlying swap database.
func getClient(ctx *cli.Context) (*swapd.Client, func(), error) {
	chainParams, err := networkParams(ctx.GlobalString("network"))
	if err != nil {
		return nil, nil, err
	}

	builder, err := txsigner.New(&txsigner.Config{
		BaseURL: ctx.GlobalString("signer"),
	})
	if err != nil {
		return nil, nil, err
	}

	dbDir := filepath.Join(ctx.GlobalString("swapdir"), chainParams.Name)
	store, err := swapdb.NewBoltSwapStore(dbDir)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = store.Close()
	}

	client, err := swapd.NewClient(store, &swapd.ClientConfig{
		ServerURL:   ctx.GlobalString("server"),
		ChainParams: chainParams,
		TxBuilder:   builder,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return client, cleanup, nil
}

func networkParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil

	case "testnet":
		return &chaincfg.TestNet3Params, nil

	case "regtest":
		return &chaincfg.RegressionNetParams, nil

	case "signet":
		return &chaincfg.SigNetParams, nil

	default:
		return nil, fmt.Errorf("unknown network %q", network)
	}
}

func parseAmt(text string) (btcutil.Amount, error) {
	amtInt64, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amt value: %v", err)
	}

	return btcutil.Amount(amtInt64), nil
}

func parseKind(text string) (swapdb.SwapKind, error) {
	switch text {
	case "submarine", "in":
		return swapdb.KindSubmarine, nil

	case "reverse", "out":
		return swapdb.KindReverse, nil

	default:
		return 0, fmt.Errorf("unknown swap kind %q", text)
	}
}

func parseAddr(ctx *cli.Context, addr string) (btcutil.Address, error) {
	chainParams, err := networkParams(ctx.GlobalString("network"))
	if err != nil {
		return nil, err
	}

	return btcutil.DecodeAddress(addr, chainParams)
}
