// Command lnkeysignerd runs the channel key management and signing
// subsystem as a standalone daemon: it derives a node's entire key
// hierarchy from a single seed file and serves signing requests against it,
// without ever needing to hold channel or routing state itself.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/go-errors/errors"
	"github.com/lightningnetwork/lnd/ticker"

	"github.com/lightninglabs/lnkeysigner/keychain"
	"github.com/lightninglabs/lnkeysigner/sigpool"
	"github.com/lightninglabs/lnkeysigner/watchdog"
)

const appName = "lnkeysignerd"

// buildVersion is overridden at build time via -ldflags; "unknown" is a
// deliberately conspicuous default so a stale binary never claims a real
// version number.
var buildVersion = "unknown"

func version() string {
	return buildVersion
}

func networkParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", network)
	}
}

// daemonMain is the true entry point, kept separate from main so that
// deferred cleanups run even when a fatal condition exits early (os.Exit
// from within main would skip them).
func daemonMain() error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(fmt.Errorf("loading configuration: %w", err), 1)
	}

	logFile := cfg.LogDir + string(os.PathSeparator) + defaultLogFilename
	initLogRotator(logFile, cfg.MaxLogFileSize, cfg.MaxLogFiles)
	defer backendLog.Flush()
	setLogLevels(cfg.DebugLevel)

	ksgnLog.Infof("%s version %s starting", appName, version())

	network, err := networkParams(cfg.Network)
	if err != nil {
		return errors.Wrap(err, 1)
	}

	seed, err := readSeed(cfg.SeedFile)
	if err != nil {
		return errors.Wrap(fmt.Errorf("loading seed: %w", err), 1)
	}

	if cfg.StartingTimeSecs == 0 {
		return errors.Wrap(fmt.Errorf("--startingtime must be set to a "+
			"value that has never been used before with this seed"), 1)
	}

	root := keychain.NewKeyRoot(seed, network, cfg.StartingTimeSecs, cfg.StartingTimeNanos)
	ksgnLog.Infof("Key root initialized for network %s", cfg.Network)

	pool := sigpool.New(cfg.NumSignWorkers)
	if err := pool.Start(); err != nil {
		return errors.Wrap(fmt.Errorf("starting signing pool: %w", err), 1)
	}
	defer pool.Stop()

	var wd *watchdog.Watchdog
	if cfg.WatchdogInterval > 0 {
		t := ticker.New(time.Duration(cfg.WatchdogInterval) * time.Second)
		wd = watchdog.New(root, t)
		wd.Start()
		defer wd.Stop()
		wtchLog.Infof("Watchdog sampling every %ds", cfg.WatchdogInterval)
	}

	ksgnLog.Infof("%s ready, listening on %s", appName, cfg.RPCListen)

	// A real deployment would now block serving RPC requests against root
	// and pool until a shutdown signal arrives; the RPC transport itself
	// is outside this module's scope (see DESIGN.md, cmd/lnkeysignerd).
	select {}
}

func main() {
	if err := daemonMain(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}
