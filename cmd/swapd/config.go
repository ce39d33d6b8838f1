package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/lncfg"
)

const (
	defaultConfigFilename = "swapd.conf"

	defaultNetwork    = "mainnet"
	defaultLogLevel   = "info"
	defaultServerURL  = "https://api.boltz.exchange/v2"
	defaultSignerURL  = "http://localhost:9050"
	defaultSignerTime = time.Minute
)

var (
	swapDirBase = btcutil.AppDataDir("swapd", false)

	defaultConfigFile = filepath.Join(
		swapDirBase, defaultNetwork, defaultConfigFilename,
	)
)

type serverConfig struct {
	URL string `long:"url" description:"Swap server REST api base url"`
}

type signerConfig struct {
	URL     string        `long:"url" description:"Transaction signer service base url"`
	Timeout time.Duration `long:"timeout" description:"Maximum duration of a single signer request"`
}

type config struct {
	ShowVersion bool   `long:"version" description:"Display version information and exit"`
	Network     string `long:"network" description:"network to run on" choice:"regtest" choice:"testnet" choice:"mainnet" choice:"signet"`

	SwapDir    string `long:"swapdir" description:"The directory for all of swapd's data."`
	ConfigFile string `long:"configfile" description:"Path to configuration file."`

	DebugLevel string `long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`

	Server *serverConfig `group:"server" namespace:"server"`

	Signer *signerConfig `group:"signer" namespace:"signer"`
}

// defaultConfig returns all default values for the config struct.
func defaultConfig() config {
	return config{
		Network:    defaultNetwork,
		SwapDir:    swapDirBase,
		ConfigFile: defaultConfigFile,
		DebugLevel: defaultLogLevel,
		Server: &serverConfig{
			URL: defaultServerURL,
		},
		Signer: &signerConfig{
			URL:     defaultSignerURL,
			Timeout: defaultSignerTime,
		},
	}
}

// validate cleans up paths in the config provided and resolves the chain
// parameters of the configured network.
func validate(cfg *config) (*chaincfg.Params, error) {
	cfg.SwapDir = lncfg.CleanAndExpandPath(cfg.SwapDir)
	cfg.ConfigFile = lncfg.CleanAndExpandPath(cfg.ConfigFile)

	switch cfg.Network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil

	case "testnet":
		return &chaincfg.TestNet3Params, nil

	case "regtest":
		return &chaincfg.RegressionNetParams, nil

	case "signet":
		return &chaincfg.SigNetParams, nil

	default:
		return nil, fmt.Errorf("unknown network %q", cfg.Network)
	}
}

// configFilePath returns the config file location, namespaced by network
// unless the user overrode it.
func configFilePath(cfg *config) string {
	if cfg.ConfigFile != defaultConfigFile {
		return cfg.ConfigFile
	}

	if cfg.SwapDir != swapDirBase {
		return filepath.Join(cfg.SwapDir, defaultConfigFilename)
	}

	return filepath.Join(
		cfg.SwapDir, cfg.Network, defaultConfigFilename,
	)
}
