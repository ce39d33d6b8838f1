package main

import (
	"fmt"
	"os"

	"github.com/btcsuite/btclog"
	"github.com/voltwallet/swapd"
	"github.com/voltwallet/swapd/swapdb"
	"github.com/voltwallet/swapd/txsigner"
)

var log btclog.Logger

// setupLoggers wires all library subsystems to a stdout backend at the given
// level.
func setupLoggers(debugLevel string) error {
	level, ok := btclog.LevelFromString(debugLevel)
	if !ok {
		return fmt.Errorf("unknown log level %q", debugLevel)
	}

	backend := btclog.NewBackend(os.Stdout)

	newLogger := func(subsystem string) btclog.Logger {
		logger := backend.Logger(subsystem)
		logger.SetLevel(level)
		return logger
	}

	log = newLogger("SWPD")
	swapd.UseLogger(newLogger("SWAP"))
	swapdb.UseLogger(newLogger(swapdb.Subsystem))
	txsigner.UseLogger(newLogger(txsigner.Subsystem))

	return nil
}
