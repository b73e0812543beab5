package main

import (
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"
)

// config holds every command-line/ini-file option smc-sender accepts,
// in the same flat, tagged-struct style lnd.go's loadConfig expects of
// its config type.
type config struct {
	AlgodAddr    string `long:"algod_addr" description:"algod node address" default:"http://localhost:4001"`
	AlgodToken   string `long:"algod_token" description:"algod API token"`
	IndexerAddr  string `long:"indexer_addr" description:"indexer address" default:"http://localhost:8980"`
	IndexerToken string `long:"indexer_token" description:"indexer API token"`

	Mnemonic string `long:"mnemonic" description:"sender's 25-word account mnemonic" required:"true"`
	Invite   string `long:"invite" description:"bech32 invite string from the recipient" required:"true"`
	ConnAddr string `long:"conn_addr" description:"host:port the recipient is listening on" required:"true"`

	Nonce      uint64   `long:"nonce" description:"channel nonce, must not collide with a prior channel to this recipient" required:"true"`
	FundAmount uint64   `long:"fund_amount" description:"microAlgos to deposit into the channel"`
	Payments   []uint64 `long:"payment" description:"a cumulative amount to pay; repeat for multiple sequential payments"`

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
