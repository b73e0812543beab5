package ledger

import "github.com/btcsuite/btclog"

var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-wide logger used by ledger.
func UseLogger(logger btclog.Logger) {
	log = logger
}
