package sigtemplates

import "github.com/btcsuite/btclog"

// log is the package-level logger, disabled until UseLogger is called by
// a daemon's startup wiring. Mirrors lnd's per-package log.go convention.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-wide logger used by sigtemplates.
func UseLogger(logger btclog.Logger) {
	log = logger
}
