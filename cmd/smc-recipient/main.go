// Command smc-recipient listens for inbound channel proposals, accepts
// each one against a shared known-channels store, and settles or lets
// the sender refund as the protocol dictates. Grounded on lnd.go's
// lndMain() wiring of rpcserver.go/server.go, generalized to this
// protocol's direct-connection model.
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

	"github.com/algorand-smc/smc/chandb"
	"github.com/algorand-smc/smc/invite"
	"github.com/algorand-smc/smc/ledger"
	"github.com/algorand-smc/smc/recipient"
	"github.com/algorand-smc/smc/sigtemplates"
)

var backendLog = btclog.NewBackend(os.Stdout)

func recipientMain() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := backendLog.Logger("SMCR")
	logger.SetLevel(btclog.LevelFromString(cfg.Debug))
	recipient.UseLogger(logger)
	ledger.UseLogger(backendLog.Logger("LGDR"))
	sigtemplates.UseLogger(backendLog.Logger("SIGT"))
	chandb.UseLogger(backendLog.Logger("CHDB"))

	recipientSK, err := mnemonic.ToPrivateKey(cfg.Mnemonic)
	if err != nil {
		return fmt.Errorf("decoding mnemonic: %w", err)
	}
	var recipientAddr types.Address
	copy(recipientAddr[:], recipientSK.Public().(ed25519.PublicKey))

	inv := invite.Invite{
		RecipientAddr:  recipientAddr,
		MinRefundBlock: cfg.MinRefundBlock,
		MaxRefundBlock: cfg.MaxRefundBlock,
	}
	encodedInvite, err := invite.Encode(inv)
	if err != nil {
		return fmt.Errorf("encoding invite: %w", err)
	}
	fmt.Printf("invite: %s\n", encodedInvite)

	algodClient, err := algod.MakeClient(cfg.AlgodAddr, cfg.AlgodToken)
	if err != nil {
		return fmt.Errorf("constructing algod client: %w", err)
	}
	indexerClient, err := indexer.MakeClient(cfg.IndexerAddr, cfg.IndexerToken)
	if err != nil {
		return fmt.Errorf("constructing indexer client: %w", err)
	}
	chainLedger := ledger.NewAlgodLedger(algodClient, indexerClient)

	var known chandb.KnownChannels
	if cfg.ChanDBPath != "" {
		db, err := chandb.Open(cfg.ChanDBPath)
		if err != nil {
			return fmt.Errorf("opening channel database: %w", err)
		}
		defer db.Close()
		known = chandb.NewBoltKnownChannels(db)
	} else {
		known = chandb.NewMemKnownChannels()
	}

	mgr := recipient.NewManager(chainLedger, recipientSK, recipientAddr, known)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.ListenAddr, err)
	}
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt)
		<-sigCh
		cancel()
	}()

	if err := mgr.Serve(ctx, ln); err != nil && err != context.Canceled {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

func main() {
	if err := recipientMain(); err != nil {
		fmt.Fprintf(os.Stderr, "smc-recipient: %v\n", err)
		os.Exit(1)
	}
}
