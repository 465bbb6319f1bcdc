package sigpool

import "github.com/btcsuite/btclog"

// log is the package-wide logger, matching the teacher's per-package
// UseLogger convention.
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by the sigpool package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
