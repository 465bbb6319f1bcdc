package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"

	"github.com/lightninglabs/lnkeysigner/internal/build"
	"github.com/lightninglabs/lnkeysigner/keychain"
	"github.com/lightninglabs/lnkeysigner/sigpool"
	"github.com/lightninglabs/lnkeysigner/walletspend"
	"github.com/lightninglabs/lnkeysigner/watchdog"
)

// Loggers per subsystem, following the same single-backend,
// many-sub-loggers layout the rest of the lnd family of daemons uses.
var (
	logWriter = &build.LogWriter{}

	backendLog = btclog.NewBackend(logWriter)

	logRotator *rotator.Rotator

	ksgnLog = build.NewSubLogger("KSGN", backendLog.Logger)
	sgplLog = build.NewSubLogger("SGPL", backendLog.Logger)
	wlspLog = build.NewSubLogger("WLSP", backendLog.Logger)
	wtchLog = build.NewSubLogger("WTCH", backendLog.Logger)
)

func init() {
	keychain.UseLogger(ksgnLog)
	sigpool.UseLogger(sgplLog)
	walletspend.UseLogger(wlspLog)
	watchdog.UseLogger(wtchLog)
}

var subsystemLoggers = map[string]btclog.Logger{
	"KSGN": ksgnLog,
	"SGPL": sgplLog,
	"WLSP": wlspLog,
	"WTCH": wtchLog,
}

// initLogRotator initializes the logging rotator to write logs to logFile
// and create roll files in the same directory.
func initLogRotator(logFile string, maxLogFileSize, maxLogFiles int) {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
		os.Exit(1)
	}
	r, err := rotator.New(logFile, int64(maxLogFileSize*1024), false, maxLogFiles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %v\n", err)
		os.Exit(1)
	}

	pr, pw := io.Pipe()
	go r.Run(pr)

	logWriter.RotatorPipe = pw
	logRotator = r
}

// setLogLevels sets every subsystem logger to logLevel.
func setLogLevels(logLevel string) {
	level, _ := btclog.LevelFromString(logLevel)
	for _, logger := range subsystemLoggers {
		logger.SetLevel(level)
	}
}
