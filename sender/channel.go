// Package sender implements Alice's half of the channel: propose and
// fund a channel, push off-chain payments, and reclaim the balance on
// refund if the recipient never settles. Grounded on
// original_source/algorandsmc/sender.py and the demo flows in
// demos/honest_sender.py and demos/undercollateralized_sender.py.
package sender

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/davecgh/go-spew/spew"
	goerrors "github.com/go-errors/errors"
	"github.com/lightningnetwork/lnd/ticker"

	smc "github.com/algorand-smc/smc"
	"github.com/algorand-smc/smc/ledger"
	"github.com/algorand-smc/smc/sigtemplates"
	"github.com/algorand-smc/smc/txbuilder"
	"github.com/algorand-smc/smc/wire"
)

// refundPollInterval is how often RefundWatch re-checks the chain
// height while waiting for the refund window to open, and how often
// Fund re-polls the indexer for the multisig account. Grounded on demos/honest_recipient.py's
// wait_for(..., 2.0) cadence, reused symmetrically on the sender side.
const refundPollInterval = 2 * time.Second

// Channel drives one sender-side channel from proposal through either
// a voluntary close or a refund. A Channel is used by a single
// goroutine at a time except for Close, which may be called
// concurrently to unblock RefundWatch.
type Channel struct {
	ledger ledger.Ledger
	conn   io.ReadWriter

	senderSK ed25519.PrivateKey
	params   smc.ChannelParameters

	tmpl           sigtemplates.MultisigTemplate
	refundProgram  []byte
	recipientRSig  types.MultisigSubsig
	settleProgram  []byte
	lastCumulative uint64

	mu    sync.Mutex
	state smc.ChannelState

	quit chan struct{}
}

// NewChannel constructs a sender-side channel that will speak the wire
// protocol over conn (typically a net.Conn) and settle/refund against
// ledger.
func NewChannel(ld ledger.Ledger, conn io.ReadWriter, senderSK ed25519.PrivateKey, params smc.ChannelParameters) *Channel {
	return &Channel{
		ledger:   ld,
		conn:     conn,
		senderSK: senderSK,
		params:   params,
		state:    smc.StateProposed,
		quit:     make(chan struct{}),
	}
}

// State returns the channel's current lifecycle state.
func (c *Channel) State() smc.ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) setState(s smc.ChannelState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Close unblocks any in-progress RefundWatch call.
func (c *Channel) Close() {
	select {
	case <-c.quit:
	default:
		close(c.quit)
	}
}

// Setup runs the proposal/acceptance handshake described in spec.md
// §4.4: send the proposal, receive the recipient's address and its
// refund subsignature, and verify that subsignature before accepting.
func (c *Channel) Setup(ctx context.Context) error {
	if err := c.params.Validate(); err != nil {
		return err
	}

	if err := wire.WriteMessage(c.conn, &wire.MethodSelector{Method: wire.MethodSetupChannel}); err != nil {
		return goerrors.WrapPrefix(err, "sending method selector", 1)
	}

	proposal := &wire.SetupProposal{
		SenderAddr:     c.params.SenderAddr.String(),
		Nonce:          c.params.Nonce,
		MinRefundBlock: c.params.MinRefundBlock,
		MaxRefundBlock: c.params.MaxRefundBlock,
	}
	if err := wire.WriteMessage(c.conn, proposal); err != nil {
		return goerrors.WrapPrefix(err, "sending setup proposal", 1)
	}

	msg, err := wire.ReadMessage(c.conn)
	if err != nil {
		return goerrors.WrapPrefix(err, "reading setup response", 1)
	}
	resp, ok := msg.(*wire.SetupResponse)
	if !ok {
		return fmt.Errorf("%w: expected SetupResponse, got %s", smc.ErrBadSetup, msg.MsgType())
	}

	recipientAddr, err := types.DecodeAddress(resp.RecipientAddr)
	if err != nil {
		return fmt.Errorf("%w: decoding recipient address: %v", smc.ErrBadSetup, err)
	}
	if c.params.RecipientAddr != (types.Address{}) && recipientAddr != c.params.RecipientAddr {
		return fmt.Errorf("%w: recipient address mismatch", smc.ErrBadSetup)
	}
	c.params.RecipientAddr = recipientAddr

	tmpl, err := sigtemplates.BuildMultisig(ctx, c.ledger, sigtemplates.MultisigParams{
		SenderAddr:     c.params.SenderAddr,
		RecipientAddr:  c.params.RecipientAddr,
		Nonce:          c.params.Nonce,
		MinRefundBlock: c.params.MinRefundBlock,
		MaxRefundBlock: c.params.MaxRefundBlock,
	})
	if err != nil {
		return goerrors.WrapPrefix(err, "building multisig", 1)
	}
	c.tmpl = tmpl

	refundArtifact, err := sigtemplates.CompileRefundLsig(ctx, c.ledger, c.params.SenderAddr, c.params.MinRefundBlock, c.params.MaxRefundBlock)
	if err != nil {
		return goerrors.WrapPrefix(err, "compiling refund program", 1)
	}
	c.refundProgram = refundArtifact.Program

	var recipientSig types.Signature
	if len(resp.RefundLsigSubsigBytes) != len(recipientSig) {
		return fmt.Errorf("%w: malformed refund subsignature", smc.ErrBadSignature)
	}
	copy(recipientSig[:], resp.RefundLsigSubsigBytes)
	c.recipientRSig = types.MultisigSubsig{Key: c.params.RecipientAddr, Sig: recipientSig}

	if !sigtemplates.VerifyProgramSubsig(c.refundProgram, c.params.RecipientAddr, c.recipientRSig) {
		return fmt.Errorf("%w: recipient's refund subsignature does not verify", smc.ErrBadSignature)
	}

	c.setState(smc.StateAccepted)
	return nil
}

// Fund submits the on-chain payment that moves amount microAlgos from
// the sender into the shared multisig, waits for confirmation, and
// waits for the indexer to observe the multisig account before
// returning -- see the indexer-lag resolution in spec.md §9 (SPEC_FULL
// §11).
func (c *Channel) Fund(ctx context.Context, amount uint64) error {
	sp, err := c.ledger.SuggestedParams(ctx)
	if err != nil {
		return goerrors.WrapPrefix(err, "fetching suggested params", 1)
	}

	tx, err := transaction.MakePaymentTxn(
		c.params.SenderAddr.String(), c.tmpl.Address.String(), amount, nil, "", sp,
	)
	if err != nil {
		return goerrors.WrapPrefix(err, "building funding transaction", 1)
	}

	_, stxBytes, err := crypto.SignTransaction(c.senderSK, tx)
	if err != nil {
		return goerrors.WrapPrefix(err, "signing funding transaction", 1)
	}

	log.Debugf("submitting funding txn: %v", spew.Sdump(tx))
	txid, err := c.ledger.Submit(ctx, stxBytes)
	if err != nil {
		return goerrors.WrapPrefix(err, "submitting funding transaction", 1)
	}

	if err := c.ledger.AwaitConfirmation(ctx, txid); err != nil {
		return goerrors.WrapPrefix(err, "awaiting funding confirmation", 1)
	}

	poll := ticker.New(refundPollInterval)
	poll.Resume()
	defer poll.Stop()
	for {
		has, err := c.ledger.IndexerHasAccount(ctx, c.tmpl.Address)
		if err != nil {
			return goerrors.WrapPrefix(err, "polling indexer for multisig account", 1)
		}
		if has {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-poll.Ticks():
		}
	}

	c.setState(smc.StateFunded)
	return nil
}

// Pay sends an off-chain payment update for the new cumulativeAmount,
// which must strictly exceed every amount previously sent on this
// channel (P1, spec.md §8).
func (c *Channel) Pay(ctx context.Context, cumulativeAmount uint64) error {
	if cumulativeAmount <= c.lastCumulative && c.lastCumulative != 0 {
		return fmt.Errorf("%w: %d does not exceed last sent amount %d", smc.ErrBadSequence, cumulativeAmount, c.lastCumulative)
	}

	artifact, err := sigtemplates.CompileSettlementLsig(ctx, c.ledger, c.params.SenderAddr, c.params.RecipientAddr, cumulativeAmount, c.params.MinRefundBlock)
	if err != nil {
		return goerrors.WrapPrefix(err, "compiling settlement program", 1)
	}

	subsig, err := sigtemplates.SignProgramSubsig(c.tmpl, artifact.Program, c.params.SenderAddr, c.senderSK)
	if err != nil {
		return goerrors.WrapPrefix(err, "signing settlement subsignature", 1)
	}

	if err := wire.WriteMessage(c.conn, &wire.MethodSelector{Method: wire.MethodPay}); err != nil {
		return goerrors.WrapPrefix(err, "sending method selector", 1)
	}
	payment := &wire.Payment{
		CumulativeAmount:          cumulativeAmount,
		SettlementLsigSubsigBytes: subsig.Sig[:],
	}
	log.Debugf("sending payment: %v", spew.Sdump(payment))
	if err := wire.WriteMessage(c.conn, payment); err != nil {
		return goerrors.WrapPrefix(err, "sending payment", 1)
	}

	c.settleProgram = artifact.Program
	c.lastCumulative = cumulativeAmount
	c.setState(smc.StatePaying)
	return nil
}

// RefundWatch blocks until the chain reaches MinRefundBlock, then
// submits the refund transaction, unless the multisig is already empty
// or unknown (ErrCannotBeRefunded: the recipient settled first) or
// Close is called (context-style cancellation via c.quit).
//
// Grounded on demos/honest_sender.py's rationale for always attempting
// a refund regardless of whether the recipient behaved honestly.
func (c *Channel) RefundWatch(ctx context.Context) error {
	poll := ticker.New(refundPollInterval)
	poll.Resume()
	defer poll.Stop()

	for {
		status, err := c.ledger.Status(ctx)
		if err != nil {
			return goerrors.WrapPrefix(err, "polling chain status", 1)
		}
		if status.LastRound >= c.params.MinRefundBlock {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.quit:
			return nil
		case <-poll.Ticks():
		}
	}

	bal, err := c.ledger.AccountBalance(ctx, c.tmpl.Address)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			c.setState(smc.StateTerminal)
			return smc.ErrCannotBeRefunded
		}
		return goerrors.WrapPrefix(err, "checking multisig balance", 1)
	}
	if bal == 0 {
		c.setState(smc.StateTerminal)
		return smc.ErrCannotBeRefunded
	}

	c.setState(smc.StateRefunding)

	sp, err := c.ledger.SuggestedParams(ctx)
	if err != nil {
		return goerrors.WrapPrefix(err, "fetching suggested params", 1)
	}

	tx, err := txbuilder.BuildRefundTxn(c.tmpl.Address, c.params.SenderAddr, c.params.MinRefundBlock, c.params.MaxRefundBlock, sp)
	if err != nil {
		return goerrors.WrapPrefix(err, "building refund transaction", 1)
	}

	senderSig, err := sigtemplates.SignProgramSubsig(c.tmpl, c.refundProgram, c.params.SenderAddr, c.senderSK)
	if err != nil {
		return goerrors.WrapPrefix(err, "signing refund subsignature", 1)
	}

	lsig := sigtemplates.AssembleLogicSig(c.tmpl, c.refundProgram, senderSig, c.recipientRSig)
	if !sigtemplates.IsFullySigned(lsig) {
		return fmt.Errorf("refund logic-sig is not fully signed")
	}

	log.Debugf("submitting refund txn: %v", spew.Sdump(tx))
	stxBytes := txbuilder.EncodeSignedLogicSigTxn(tx, lsig)
	txid, err := c.ledger.Submit(ctx, stxBytes)
	if err != nil {
		if errors.Is(err, ledger.ErrOverspendRejected) {
			c.setState(smc.StateTerminal)
			return smc.ErrCannotBeRefunded
		}
		return goerrors.WrapPrefix(err, "submitting refund transaction", 1)
	}

	if err := c.ledger.AwaitConfirmation(ctx, txid); err != nil {
		return goerrors.WrapPrefix(err, "awaiting refund confirmation", 1)
	}

	c.setState(smc.StateTerminal)
	return nil
}
