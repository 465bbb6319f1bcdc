package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultLogFilename    = "lnkeysignerd.log"
	defaultMaxLogFileSize = 10
	defaultMaxLogFiles    = 3
	defaultRPCPort        = 10019
)

// config holds every lnkeysignerd startup parameter, parsed from the
// command line by go-flags, mirroring the chantools/Conduit convention of
// one flat struct with `long`/`description` tags per field.
type config struct {
	SeedFile string `long:"seedfile" description:"Path to the 32-byte raw seed file this daemon derives all key material from"`

	Network string `long:"network" description:"The Bitcoin network to operate on" choice:"mainnet" choice:"testnet" choice:"signet" choice:"regtest" choice:"simnet"`

	StartingTimeSecs  uint64 `long:"startingtime" description:"Unix seconds component of this process's uniqueness nonce; must never repeat for the same seed"`
	StartingTimeNanos uint32 `long:"startingtimenanos" description:"Nanosecond component of this process's uniqueness nonce"`

	RPCListen string `long:"rpclisten" description:"host:port to listen for signing RPC requests on"`

	NumSignWorkers int `long:"signworkers" description:"Number of sigpool worker goroutines; 0 uses runtime.NumCPU()"`

	WatchdogInterval int `long:"watchdoginterval" description:"Seconds between watchdog counter-exhaustion samples; 0 disables the watchdog"`

	LogDir         string `long:"logdir" description:"Directory to write lnkeysignerd.log to"`
	MaxLogFileSize int    `long:"maxlogfilesize" description:"Maximum logfile size in MB"`
	MaxLogFiles    int    `long:"maxlogfiles" description:"Maximum logfiles to keep"`
	DebugLevel     string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical}"`

	ShowVersion bool `short:"v" long:"version" description:"Display version information and exit"`
}

// defaultConfig returns a config pre-filled with the same defaults the
// teacher's loadConfig gives its own Config before flags.Parse overrides
// them.
func defaultConfig() *config {
	return &config{
		Network:        "mainnet",
		RPCListen:      fmt.Sprintf("localhost:%d", defaultRPCPort),
		LogDir:         "./lnkeysignerd-logs",
		MaxLogFileSize: defaultMaxLogFileSize,
		MaxLogFiles:    defaultMaxLogFiles,
		DebugLevel:     "info",
	}
}

// loadConfig parses command-line flags on top of defaultConfig, matching
// the teacher's loadConfig two-step (defaults, then flags.Parse) shape.
func loadConfig() (*config, error) {
	cfg := defaultConfig()

	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, err
	}

	if cfg.ShowVersion {
		fmt.Println(appName, "version", version())
		os.Exit(0)
	}

	if cfg.SeedFile == "" {
		return nil, fmt.Errorf("--seedfile is required")
	}

	return cfg, nil
}

// readSeed reads and validates the 32-byte hex- or raw-encoded seed file
// cfg.SeedFile points at.
func readSeed(path string) ([32]byte, error) {
	var seed [32]byte

	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return seed, fmt.Errorf("reading seed file: %w", err)
	}

	switch len(raw) {
	case 32:
		copy(seed[:], raw)
		return seed, nil

	case 64:
		decoded, err := hex.DecodeString(string(raw))
		if err != nil {
			return seed, fmt.Errorf("seed file is neither 32 raw bytes nor "+
				"64 hex characters: %w", err)
		}
		copy(seed[:], decoded)
		return seed, nil

	default:
		return seed, fmt.Errorf("seed file must contain 32 raw bytes or "+
			"64 hex characters, got %d bytes", len(raw))
	}
}
