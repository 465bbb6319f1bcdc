package keychain

import "github.com/btcsuite/btclog"

// log is the package-wide logger, matching the teacher's per-package
// UseLogger convention (channeldb, lnwallet, etc. all declare one of these).
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by the keychain package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
