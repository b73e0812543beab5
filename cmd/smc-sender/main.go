// Command smc-sender drives one sender-side channel end to end:
// connect to a recipient, fund a channel, push a sequence of
// payments, then watch for the refund deadline. Grounded on lnd.go's
// lndMain()/main() split and cmd/lncli's flag-driven entry point,
// generalized from an RPC client to a direct protocol participant
// since this protocol has no daemon/CLI split.
package main

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net"
	"os"
	"os/signal"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/indexer"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/btcsuite/btclog"

	smc "github.com/algorand-smc/smc"
	"github.com/algorand-smc/smc/invite"
	"github.com/algorand-smc/smc/ledger"
	"github.com/algorand-smc/smc/sender"
	"github.com/algorand-smc/smc/sigtemplates"
)

var backendLog = btclog.NewBackend(os.Stdout)

func senderMain() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := backendLog.Logger("SMCS")
	logger.SetLevel(btclog.LevelFromString(cfg.Debug))
	sender.UseLogger(logger)
	ledger.UseLogger(backendLog.Logger("LGDR"))
	sigtemplates.UseLogger(backendLog.Logger("SIGT"))

	senderSK, err := mnemonic.ToPrivateKey(cfg.Mnemonic)
	if err != nil {
		return fmt.Errorf("decoding mnemonic: %w", err)
	}
	var senderAddr types.Address
	copy(senderAddr[:], senderSK.Public().(ed25519.PublicKey))

	inv, err := invite.Decode(cfg.Invite)
	if err != nil {
		return fmt.Errorf("decoding invite: %w", err)
	}

	algodClient, err := algod.MakeClient(cfg.AlgodAddr, cfg.AlgodToken)
	if err != nil {
		return fmt.Errorf("constructing algod client: %w", err)
	}
	indexerClient, err := indexer.MakeClient(cfg.IndexerAddr, cfg.IndexerToken)
	if err != nil {
		return fmt.Errorf("constructing indexer client: %w", err)
	}
	chainLedger := ledger.NewAlgodLedger(algodClient, indexerClient)

	conn, err := net.Dial("tcp", cfg.ConnAddr)
	if err != nil {
		return fmt.Errorf("dialing recipient at %s: %w", cfg.ConnAddr, err)
	}
	defer conn.Close()

	params := smc.ChannelParameters{
		SenderAddr:     senderAddr,
		RecipientAddr:  inv.RecipientAddr,
		Nonce:          cfg.Nonce,
		MinRefundBlock: inv.MinRefundBlock,
		MaxRefundBlock: inv.MaxRefundBlock,
	}

	ch := sender.NewChannel(chainLedger, conn, senderSK, params)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt)
		<-sigCh
		cancel()
	}()

	if err := ch.Setup(ctx); err != nil {
		return fmt.Errorf("setting up channel: %w", err)
	}

	if cfg.FundAmount > 0 {
		if err := ch.Fund(ctx, cfg.FundAmount); err != nil {
			return fmt.Errorf("funding channel: %w", err)
		}
	}

	for _, amount := range cfg.Payments {
		if err := ch.Pay(ctx, amount); err != nil {
			return fmt.Errorf("paying %d: %w", amount, err)
		}
	}

	if err := ch.RefundWatch(ctx); err != nil && err != smc.ErrCannotBeRefunded {
		return fmt.Errorf("watching for refund: %w", err)
	}

	return nil
}

func main() {
	if err := senderMain(); err != nil {
		fmt.Fprintf(os.Stderr, "smc-sender: %v\n", err)
		os.Exit(1)
	}
}
