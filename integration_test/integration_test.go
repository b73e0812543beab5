// Package integration_test exercises a full sender/recipient channel
// over an in-memory connection and a FakeLedger, covering the seeded
// scenarios and testable properties of spec.md §8.
package integration_test

import (
	"context"
	"crypto/ed25519"
	"net"
	"testing"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/require"

	smc "github.com/algorand-smc/smc"
	"github.com/algorand-smc/smc/chandb"
	"github.com/algorand-smc/smc/ledger"
	"github.com/algorand-smc/smc/recipient"
	"github.com/algorand-smc/smc/sender"
	"github.com/algorand-smc/smc/sigtemplates"
	"github.com/algorand-smc/smc/wire"
)

// settleLookaheadBlocks mirrors recipient.settleLookaheadBlocks (an
// unexported constant this package cannot reach directly): the number
// of rounds before MinRefundBlock at which the recipient moves to
// settle instead of accepting further payments.
const settleLookaheadBlocks = 5

func genAddr(t *testing.T) (types.Address, ed25519.PrivateKey) {
	t.Helper()
	pub, sk, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var addr types.Address
	copy(addr[:], pub)
	return addr, sk
}

// TestHonestPaymentSettles covers the first seeded scenario: a sender
// funds a channel, pays once, and the recipient settles on-chain for
// exactly that amount before the refund window opens (P6).
func TestHonestPaymentSettles(t *testing.T) {
	ld := ledger.NewFakeLedger(1000)

	senderAddr, senderSK := genAddr(t)
	recipientAddr, recipientSK := genAddr(t)
	ld.Fund(senderAddr, 50_000)

	params := smc.ChannelParameters{
		SenderAddr:     senderAddr,
		RecipientAddr:  recipientAddr,
		Nonce:          1,
		MinRefundBlock: smc.MinAcceptedLifetime + 10,
		MaxRefundBlock: smc.MinAcceptedLifetime + 20,
	}

	senderConn, recipientConn := net.Pipe()
	defer senderConn.Close()
	defer recipientConn.Close()

	senderCh := sender.NewChannel(ld, senderConn, senderSK, params)
	recipientCh := recipient.NewChannel(ld, recipientConn, recipientSK, recipientAddr, chandb.NewMemKnownChannels())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- recipientCh.Run(ctx) }()

	require.NoError(t, senderCh.Setup(ctx))
	require.NoError(t, senderCh.Fund(ctx, 10_000))
	require.NoError(t, senderCh.Pay(ctx, 4_000))

	// FakeLedger starts at round 1; advance to exactly
	// MinRefundBlock-settleLookaheadBlocks so the recipient's next
	// status poll crosses the settle threshold.
	ld.AdvanceRound(params.MinRefundBlock - settleLookaheadBlocks - 1)

	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for recipient to settle")
	}

	require.Equal(t, smc.StateTerminal, recipientCh.State())

	recipientBal, err := ld.AccountBalance(ctx, recipientAddr)
	require.NoError(t, err)
	require.EqualValues(t, 4_000, recipientBal)
}

// TestMultiplePaymentsSettleHighestCumulative covers a sender sending
// several increasing payments; the recipient must settle for the last
// (highest) one, never an earlier amount (P1, P6).
func TestMultiplePaymentsSettleHighestCumulative(t *testing.T) {
	ld := ledger.NewFakeLedger(1000)

	senderAddr, senderSK := genAddr(t)
	recipientAddr, recipientSK := genAddr(t)
	ld.Fund(senderAddr, 50_000)

	params := smc.ChannelParameters{
		SenderAddr:     senderAddr,
		RecipientAddr:  recipientAddr,
		Nonce:          2,
		MinRefundBlock: smc.MinAcceptedLifetime + 10,
		MaxRefundBlock: smc.MinAcceptedLifetime + 20,
	}

	senderConn, recipientConn := net.Pipe()
	defer senderConn.Close()
	defer recipientConn.Close()

	senderCh := sender.NewChannel(ld, senderConn, senderSK, params)
	recipientCh := recipient.NewChannel(ld, recipientConn, recipientSK, recipientAddr, chandb.NewMemKnownChannels())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- recipientCh.Run(ctx) }()

	require.NoError(t, senderCh.Setup(ctx))
	require.NoError(t, senderCh.Fund(ctx, 10_000))
	require.NoError(t, senderCh.Pay(ctx, 1_000))
	require.NoError(t, senderCh.Pay(ctx, 2_500))

	// Give the recipient's processing loop a moment to finish handling
	// the second payment and its round check before the round advances,
	// so the early-settle condition below can only fire starting with
	// the third payment.
	time.Sleep(100 * time.Millisecond)

	ld.AdvanceRound(params.MinRefundBlock - settleLookaheadBlocks - 1)

	require.NoError(t, senderCh.Pay(ctx, 5_000))

	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for recipient to settle")
	}

	recipientBal, err := ld.AccountBalance(ctx, recipientAddr)
	require.NoError(t, err)
	require.EqualValues(t, 5_000, recipientBal, "recipient must settle for the highest cumulative payment")
}

// TestNonIncreasingPaymentRejected covers P1: a recipient must refuse a
// payment that does not strictly exceed the last accepted one, tearing
// down the channel rather than settling for it.
func TestNonIncreasingPaymentRejected(t *testing.T) {
	ld := ledger.NewFakeLedger(1000)
	senderAddr, senderSK := genAddr(t)
	recipientAddr, recipientSK := genAddr(t)
	ld.Fund(senderAddr, 50_000)

	params := smc.ChannelParameters{
		SenderAddr:     senderAddr,
		RecipientAddr:  recipientAddr,
		Nonce:          3,
		MinRefundBlock: smc.MinAcceptedLifetime + 1000,
		MaxRefundBlock: smc.MinAcceptedLifetime + 2000,
	}

	senderConn, recipientConn := net.Pipe()
	defer senderConn.Close()
	defer recipientConn.Close()

	senderCh := sender.NewChannel(ld, senderConn, senderSK, params)
	recipientCh := recipient.NewChannel(ld, recipientConn, recipientSK, recipientAddr, chandb.NewMemKnownChannels())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- recipientCh.Run(ctx) }()

	require.NoError(t, senderCh.Setup(ctx))
	require.NoError(t, senderCh.Fund(ctx, 10_000))
	require.NoError(t, senderCh.Pay(ctx, 5_000))

	// Bypass the sender's own monotonicity guard and send a stale
	// payment directly on the wire, simulating a misbehaving or
	// confused counterparty replaying an old cumulative amount.
	tmpl, err := sigtemplates.BuildMultisig(ctx, ld, sigtemplates.MultisigParams{
		SenderAddr: senderAddr, RecipientAddr: recipientAddr,
		Nonce: params.Nonce, MinRefundBlock: params.MinRefundBlock, MaxRefundBlock: params.MaxRefundBlock,
	})
	require.NoError(t, err)
	artifact, err := sigtemplates.CompileSettlementLsig(ctx, ld, senderAddr, recipientAddr, 2_000, params.MinRefundBlock)
	require.NoError(t, err)
	staleSig, err := sigtemplates.SignProgramSubsig(tmpl, artifact.Program, senderAddr, senderSK)
	require.NoError(t, err)
	require.NoError(t, wire.WriteMessage(senderConn, &wire.MethodSelector{Method: wire.MethodPay}))
	stalePayment := &wire.Payment{CumulativeAmount: 2_000, SettlementLsigSubsigBytes: staleSig.Sig[:]}
	require.NoError(t, wire.WriteMessage(senderConn, stalePayment))

	select {
	case err := <-runDone:
		require.ErrorIs(t, err, smc.ErrBadSequence)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for recipient to reject the stale payment")
	}

	require.Equal(t, smc.StatePaying, recipientCh.State(), "recipient must never reach settlement")
}

// TestRefundAfterRecipientGoesDark covers the second seeded scenario:
// the recipient accepts a channel and is funded, but disappears before
// settling, so the sender recovers its funds through the refund path
// once the chain reaches MinRefundBlock (P5).
func TestRefundAfterRecipientGoesDark(t *testing.T) {
	ld := ledger.NewFakeLedger(1000)

	senderAddr, senderSK := genAddr(t)
	recipientAddr, recipientSK := genAddr(t)
	ld.Fund(senderAddr, 50_000)

	params := smc.ChannelParameters{
		SenderAddr:     senderAddr,
		RecipientAddr:  recipientAddr,
		Nonce:          4,
		MinRefundBlock: smc.MinAcceptedLifetime + 5,
		MaxRefundBlock: smc.MinAcceptedLifetime + 50,
	}

	senderConn, recipientConn := net.Pipe()
	defer senderConn.Close()

	senderCh := sender.NewChannel(ld, senderConn, senderSK, params)
	recipientCh := recipient.NewChannel(ld, recipientConn, recipientSK, recipientAddr, chandb.NewMemKnownChannels())

	recipientCtx, recipientCancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- recipientCh.Run(recipientCtx) }()

	ctx := context.Background()
	require.NoError(t, senderCh.Setup(ctx))
	require.NoError(t, senderCh.Fund(ctx, 20_000))

	// The recipient disappears: its connection is torn down and its
	// context cancelled before it ever sees a payment or settles.
	recipientCancel()
	recipientConn.Close()
	<-runDone

	ld.AdvanceRound(params.MinRefundBlock + 10 - 1) // past MinRefundBlock

	require.NoError(t, senderCh.RefundWatch(ctx))
	require.Equal(t, smc.StateTerminal, senderCh.State())

	senderBal, err := ld.AccountBalance(ctx, senderAddr)
	require.NoError(t, err)
	// The funded amount round-trips back to the sender via the refund's
	// close-remainder-to; only the two transactions' fees are lost.
	require.EqualValues(t, 50_000-1_000-1_000, senderBal)
}

// TestRefundWatchCannotBeRefundedAfterSettlement covers replay safety
// after settlement (P4): once the recipient has settled, the sender's
// refund attempt must fail with ErrCannotBeRefunded rather than double
// spend an already-closed multisig.
func TestRefundWatchCannotBeRefundedAfterSettlement(t *testing.T) {
	ld := ledger.NewFakeLedger(1000)

	senderAddr, senderSK := genAddr(t)
	recipientAddr, recipientSK := genAddr(t)
	ld.Fund(senderAddr, 50_000)

	params := smc.ChannelParameters{
		SenderAddr:     senderAddr,
		RecipientAddr:  recipientAddr,
		Nonce:          5,
		MinRefundBlock: smc.MinAcceptedLifetime + 10,
		MaxRefundBlock: smc.MinAcceptedLifetime + 20,
	}

	senderConn, recipientConn := net.Pipe()
	defer senderConn.Close()
	defer recipientConn.Close()

	senderCh := sender.NewChannel(ld, senderConn, senderSK, params)
	recipientCh := recipient.NewChannel(ld, recipientConn, recipientSK, recipientAddr, chandb.NewMemKnownChannels())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- recipientCh.Run(ctx) }()

	require.NoError(t, senderCh.Setup(ctx))
	require.NoError(t, senderCh.Fund(ctx, 10_000))
	require.NoError(t, senderCh.Pay(ctx, 3_000))

	ld.AdvanceRound(params.MinRefundBlock - settleLookaheadBlocks - 1)

	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for recipient to settle")
	}

	ld.AdvanceRound(10)
	err := senderCh.RefundWatch(ctx)
	require.ErrorIs(t, err, smc.ErrCannotBeRefunded)
}
