// Package watchdog periodically samples a keychain.KeyRoot's three
// allocation counters and warns once one of them approaches exhaustion of
// its 32-bit hardened-index space — the one piece of operational policy
// this module carries beyond structural signing correctness (observability,
// not a new signing behavior).
package watchdog

import (
	"github.com/btcsuite/btclog"
	"github.com/lightningnetwork/lnd/ticker"

	"github.com/lightninglabs/lnkeysigner/keychain"
)

// log is the package-wide logger, matching the teacher's per-package
// UseLogger convention.
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by the watchdog package.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// counterSpace is the size of a single hardened-child index space (32
// bits), matching keychain's counterSpaceBits.
const counterSpace = 1 << 32

// warnThresholdFraction is the fraction of counterSpace at which watchdog
// starts logging warnings for a given counter.
const warnThresholdFraction = 0.9

var warnThreshold = uint32(float64(counterSpace) * warnThresholdFraction)

// Watchdog periodically polls a KeyRoot's counters on a ticker and logs a
// warning once any of them cross warnThreshold.
type Watchdog struct {
	root   *keychain.KeyRoot
	ticker ticker.Ticker
	quit   chan struct{}
}

// New constructs a Watchdog over root, sampling at the given ticker's
// interval once Start is called.
func New(root *keychain.KeyRoot, t ticker.Ticker) *Watchdog {
	return &Watchdog{
		root:   root,
		ticker: t,
		quit:   make(chan struct{}),
	}
}

// Start begins the watchdog's sampling loop in a new goroutine.
func (w *Watchdog) Start() {
	w.ticker.Resume()
	go w.sampleLoop()
}

// Stop halts the sampling loop.
func (w *Watchdog) Stop() {
	close(w.quit)
	w.ticker.Stop()
}

func (w *Watchdog) sampleLoop() {
	for {
		select {
		case <-w.ticker.Ticks():
			w.sampleOnce()

		case <-w.quit:
			return
		}
	}
}

func (w *Watchdog) sampleOnce() {
	warnIfNear("channel", w.root.ChannelCounter())
	warnIfNear("session", w.root.SessionCounter())
	warnIfNear("channel-id", w.root.ChannelIDCounter())
}

func warnIfNear(name string, value uint32) {
	if value >= warnThreshold {
		log.Warnf("%s counter at %d/%d (%.1f%% of hardened-index space); "+
			"approaching exhaustion, rotate the seed's starting time and "+
			"plan a reseed", name, value, uint32(counterSpace-1),
			100*float64(value)/float64(counterSpace))
	}
}
