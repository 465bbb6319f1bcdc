// Package build provides small logging helpers shared by lnkeysignerd and
// its subpackages, adapted from the per-subsystem logger wiring the rest of
// the lnd-family daemons use (see daemon/log.go in the pack).
package build

import (
	"io"
	"sync"

	"github.com/btcsuite/btclog"
)

// LogWriter is an io.Writer that forwards every Write call to whatever
// rotator pipe has most recently been installed, and silently discards
// writes before one has been. This lets package-level loggers be
// constructed at init() time, before the log file location is known from
// parsed configuration.
type LogWriter struct {
	mu          sync.Mutex
	RotatorPipe io.Writer
}

func (w *LogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	pipe := w.RotatorPipe
	w.mu.Unlock()

	if pipe == nil {
		return len(p), nil
	}
	return pipe.Write(p)
}

// NewSubLogger creates a tagged btclog.Logger from a backend's Logger
// constructor, defaulting its level to Info until setLogLevels overrides it
// from configuration.
func NewSubLogger(tag string, root func(string) btclog.Logger) btclog.Logger {
	logger := root(tag)
	logger.SetLevel(btclog.LevelInfo)
	return logger
}
