package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/voltwallet/swapd"
	"github.com/voltwallet/swapd/swapdb"
	"github.com/voltwallet/swapd/txsigner"
	"golang.org/x/sync/errgroup"
)

// run parses the configuration, opens the swap database and resumes all
// pending swaps. It blocks until every pending swap has settled or a shutdown
// signal is received.
func run() error {
	cfg := defaultConfig()

	// Parse command line flags.
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if e, ok := err.(*flags.Error); ok &&
			e.Type == flags.ErrHelp {

			return nil
		}

		return err
	}

	// Parse ini file.
	if err := flags.IniParse(configFilePath(&cfg), &cfg); err != nil {
		// If it's a parsing related error, then we'll return
		// immediately, otherwise we can proceed as possibly the config
		// file doesn't exist which is OK.
		if _, ok := err.(*flags.IniError); ok {
			return err
		}
	}

	// Parse command line flags again to restore flags overwritten by ini
	// parse.
	if _, err := parser.Parse(); err != nil {
		return err
	}

	if cfg.ShowVersion {
		fmt.Println("swapd version", swapd.Version())
		return nil
	}

	chainParams, err := validate(&cfg)
	if err != nil {
		return err
	}

	if err := setupLoggers(cfg.DebugLevel); err != nil {
		return err
	}

	log.Infof("Version: %v", swapd.Version())
	log.Infof("Network: %v", chainParams.Name)

	builder, err := txsigner.New(&txsigner.Config{
		BaseURL: cfg.Signer.URL,
		Timeout: cfg.Signer.Timeout,
	})
	if err != nil {
		return err
	}

	store, err := swapdb.NewBoltSwapStore(
		filepath.Join(cfg.SwapDir, chainParams.Name),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Errorf("Closing swap database: %v", err)
		}
	}()

	client, err := swapd.NewClient(store, &swapd.ClientConfig{
		ServerURL:   cfg.Server.URL,
		ChainParams: chainParams,
		TxBuilder:   builder,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stop all trackers on interrupt. Persisted swap state survives and a
	// later run resumes from it.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var group errgroup.Group
	group.Go(func() error {
		defer cancel()
		return client.ResumeSwaps(ctx)
	})

	group.Go(func() error {
		select {
		case sig := <-sigChan:
			log.Infof("Received %v, shutting down", sig)
			cancel()

		case <-ctx.Done():
		}

		return nil
	})

	err = group.Wait()
	if err != nil && err != context.Canceled {
		return err
	}

	log.Infof("Shutdown complete")

	return nil
}
