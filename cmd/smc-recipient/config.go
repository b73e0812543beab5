package main

import (
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"
)

// config holds every command-line/ini-file option smc-recipient
// accepts, mirroring smc-sender's config in the same flat tagged-struct
// style lnd.go expects of its own config type.
type config struct {
	AlgodAddr    string `long:"algod_addr" description:"algod node address" default:"http://localhost:4001"`
	AlgodToken   string `long:"algod_token" description:"algod API token"`
	IndexerAddr  string `long:"indexer_addr" description:"indexer address" default:"http://localhost:8980"`
	IndexerToken string `long:"indexer_token" description:"indexer API token"`

	Mnemonic   string `long:"mnemonic" description:"recipient's 25-word account mnemonic" required:"true"`
	ListenAddr string `long:"listen_addr" description:"host:port to accept sender connections on" default:"localhost:9735"`

	ChanDBPath string `long:"chandb_path" description:"directory for the known-channels database; empty keeps it in memory only"`

	MinRefundBlock uint64 `long:"min_refund_block" description:"earliest round a sender may submit a refund" required:"true"`
	MaxRefundBlock uint64 `long:"max_refund_block" description:"last round at which a sender may still submit a refund" required:"true"`

	Debug string `long:"debug" description:"log level: trace, debug, info, warn, error, critical" default:"info"`
}

func loadConfig() (*config, error) {
	cfg := &config{}

	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	return cfg, nil
}
