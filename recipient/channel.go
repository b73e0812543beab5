// Package recipient implements Bob's half of the channel: accept a
// setup proposal, validate incoming payments, and settle on-chain
// before the refund window opens. Grounded on
// original_source/algorandsmc/recipient.py and the time-dependent
// state machine in demos/honest_recipient.py.
package recipient

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/davecgh/go-spew/spew"
	goerrors "github.com/go-errors/errors"
	"golang.org/x/sync/errgroup"

	"github.com/lightningnetwork/lnd/queue"

	smc "github.com/algorand-smc/smc"
	"github.com/algorand-smc/smc/chandb"
	"github.com/algorand-smc/smc/ledger"
	"github.com/algorand-smc/smc/sigtemplates"
	"github.com/algorand-smc/smc/txbuilder"
	"github.com/algorand-smc/smc/wire"
)

// settleLookaheadBlocks is how many blocks before MinRefundBlock the
// recipient stops accepting new payments and moves to settle, matching
// honest_recipient.py's "we want to have at least 5 blocks before
// sending the highest paying transaction".
const settleLookaheadBlocks = 5

// inboxWait is how long the processing loop waits for the next message
// before re-checking the chain height, matching
// honest_recipient.py's wait_for(websocket.recv(), 2.0).
const inboxWait = 2 * time.Second

// inboxBufferSize bounds the number of not-yet-processed messages the
// reader goroutine may queue up before blocking.
const inboxBufferSize = 16

// Channel drives one recipient-side channel from an inbound setup
// proposal through settlement (or abandonment, if the sender never
// pays and never needs a settlement).
type Channel struct {
	ledger ledger.Ledger
	conn   io.ReadWriter

	recipientSK   ed25519.PrivateKey
	recipientAddr types.Address
	known         chandb.KnownChannels

	params        smc.ChannelParameters
	tmpl          sigtemplates.MultisigTemplate
	refundProgram []byte

	settleProgram []byte
	senderSubsig  types.MultisigSubsig
	lastPayment   *smc.Payment

	mu    sync.Mutex
	state smc.ChannelState
}

func (c *Channel) setState(s smc.ChannelState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// NewChannel constructs a recipient-side channel that will speak the
// wire protocol over conn and validate/settle against ledger, using
// known to detect replayed setup proposals.
func NewChannel(ld ledger.Ledger, conn io.ReadWriter, recipientSK ed25519.PrivateKey, recipientAddr types.Address, known chandb.KnownChannels) *Channel {
	return &Channel{
		ledger:        ld,
		conn:          conn,
		recipientSK:   recipientSK,
		recipientAddr: recipientAddr,
		known:         known,
		state:         smc.StateProposed,
	}
}

// State returns the channel's current lifecycle state.
func (c *Channel) State() smc.ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run decodes the inbound setup proposal, accepts it, then processes
// payments until the channel approaches its refund window, at which
// point it settles and returns. A read goroutine feeds a
// queue.ConcurrentQueue so the processing loop's 2-second wait never
// blocks the socket reader, mirroring lnd's historical use of
// queue.ConcurrentQueue to decouple a peer's reader from its message
// dispatcher.
func (c *Channel) Run(ctx context.Context) error {
	inbox := queue.NewConcurrentQueue(inboxBufferSize)
	inbox.Start()
	defer inbox.Stop()

	g, gctx := errgroup.WithContext(ctx)

	// done is closed once processing has ended, just before c.conn is
	// closed to unblock the reader's pending read.
	done := make(chan struct{})

	// The reader goroutine owns c.conn exclusively: it always reads a
	// method selector and its paired payload together, so nothing else
	// ever issues a competing read against the same connection.
	g.Go(func() (err error) {
		defer func() {
			select {
			case <-done:
				err = nil
			default:
			}
		}()
		for {
			sel, err := readMethodSelector(c.conn)
			if err != nil {
				return err
			}
			payload, err := wire.ReadMessage(c.conn)
			if err != nil {
				return err
			}
			msg := inboundMsg{method: sel.Method, payload: payload}
			select {
			case inbox.ChanIn() <- msg:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	g.Go(func() error {
		err := c.processLoop(gctx, inbox.ChanOut())
		close(done)
		if closer, ok := c.conn.(io.Closer); ok {
			closer.Close()
		}
		return err
	})

	err := g.Wait()
	if err != nil && err != io.EOF {
		return err
	}
	return nil
}

// inboundMsg pairs a method selector with the payload message that
// always follows it on the wire, per spec.md §4.3.
type inboundMsg struct {
	method  wire.Method
	payload wire.Message
}

func readMethodSelector(r io.Reader) (*wire.MethodSelector, error) {
	msg, err := wire.ReadMessage(r)
	if err != nil {
		return nil, err
	}
	sel, ok := msg.(*wire.MethodSelector)
	if !ok {
		return nil, fmt.Errorf("expected method selector, got %s", msg.MsgType())
	}
	return sel, nil
}

func (c *Channel) processLoop(ctx context.Context, in <-chan interface{}) error {
	if err := c.acceptSetup(ctx, in); err != nil {
		return fmt.Errorf("accepting setup: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw := <-in:
			if err := c.dispatch(ctx, raw.(inboundMsg)); err != nil {
				return err
			}
		case <-time.After(inboxWait):
		}

		status, err := c.ledger.Status(ctx)
		if err != nil {
			return goerrors.WrapPrefix(err, "polling chain status", 1)
		}
		if c.params.MinRefundBlock > settleLookaheadBlocks &&
			status.LastRound+settleLookaheadBlocks >= c.params.MinRefundBlock {
			break
		}
	}

	return c.SettleEndgame(ctx)
}

func (c *Channel) dispatch(ctx context.Context, msg inboundMsg) error {
	if msg.method != wire.MethodPay {
		return fmt.Errorf("expected PAY method, got %s", msg.method)
	}

	payment, ok := msg.payload.(*wire.Payment)
	if !ok {
		return fmt.Errorf("expected Payment, got %s", msg.payload.MsgType())
	}

	return c.HandlePayment(ctx, payment)
}

// acceptSetup implements spec.md §4.4's setup handshake from the
// recipient's side, grounded on
// original_source/algorandsmc/recipient.py's setup_channel.
func (c *Channel) acceptSetup(ctx context.Context, in <-chan interface{}) error {
	var raw interface{}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case r, ok := <-in:
		if !ok {
			return io.ErrUnexpectedEOF
		}
		raw = r
	}
	msg := raw.(inboundMsg)
	if msg.method != wire.MethodSetupChannel {
		return fmt.Errorf("%w: expected SETUP_CHANNEL method", smc.ErrBadSetup)
	}

	proposal, ok := msg.payload.(*wire.SetupProposal)
	if !ok {
		return fmt.Errorf("%w: expected SetupProposal, got %s", smc.ErrBadSetup, msg.payload.MsgType())
	}

	senderAddr, err := types.DecodeAddress(proposal.SenderAddr)
	if err != nil {
		return fmt.Errorf("%w: invalid sender address: %v", smc.ErrBadSetup, err)
	}

	params := smc.ChannelParameters{
		SenderAddr:     senderAddr,
		RecipientAddr:  c.recipientAddr,
		Nonce:          proposal.Nonce,
		MinRefundBlock: proposal.MinRefundBlock,
		MaxRefundBlock: proposal.MaxRefundBlock,
	}
	if err := params.Validate(); err != nil {
		return err
	}

	status, err := c.ledger.Status(ctx)
	if err != nil {
		return goerrors.WrapPrefix(err, "polling chain status", 1)
	}
	if params.MinRefundBlock < status.LastRound+smc.MinAcceptedLifetime {
		return fmt.Errorf("%w: min_refund_block %d gives less than the required %d round lifetime past current round %d",
			smc.ErrBadSetup, params.MinRefundBlock, smc.MinAcceptedLifetime, status.LastRound)
	}
	c.params = params

	tmpl, err := sigtemplates.BuildMultisig(ctx, c.ledger, sigtemplates.MultisigParams{
		SenderAddr:     params.SenderAddr,
		RecipientAddr:  params.RecipientAddr,
		Nonce:          params.Nonce,
		MinRefundBlock: params.MinRefundBlock,
		MaxRefundBlock: params.MaxRefundBlock,
	})
	if err != nil {
		return goerrors.WrapPrefix(err, "building multisig", 1)
	}
	c.tmpl = tmpl

	if err := c.known.Insert(tmpl.Address, params); err != nil {
		return fmt.Errorf("%w: %v", smc.ErrBadSetup, err)
	}

	refundArtifact, err := sigtemplates.CompileRefundLsig(ctx, c.ledger, params.SenderAddr, params.MinRefundBlock, params.MaxRefundBlock)
	if err != nil {
		return goerrors.WrapPrefix(err, "compiling refund program", 1)
	}
	c.refundProgram = refundArtifact.Program

	mySig, err := sigtemplates.SignProgramSubsig(tmpl, refundArtifact.Program, c.recipientAddr, c.recipientSK)
	if err != nil {
		return goerrors.WrapPrefix(err, "signing refund subsignature", 1)
	}

	resp := &wire.SetupResponse{
		RecipientAddr:         c.recipientAddr.String(),
		RefundLsigSubsigBytes: mySig.Sig[:],
	}
	if err := wire.WriteMessage(c.conn, resp); err != nil {
		return goerrors.WrapPrefix(err, "sending setup response", 1)
	}

	c.setState(smc.StateAccepted)
	return nil
}

// HandlePayment verifies and records one incoming off-chain payment
// update, grounded on original_source/algorandsmc/recipient.py's
// (unimplemented) receive_payment and the monotonicity check inlined
// in demos/honest_recipient.py's honest_recipient loop.
func (c *Channel) HandlePayment(ctx context.Context, payment *wire.Payment) error {
	p := smc.Payment{
		CumulativeAmount: payment.CumulativeAmount,
		SenderSubSig:     payment.SettlementLsigSubsigBytes,
	}
	if !p.Exceeds(c.lastPayment) {
		return fmt.Errorf("%w: cumulative amount %d does not exceed last accepted %d",
			smc.ErrBadSequence, p.CumulativeAmount, c.lastPayment.CumulativeAmount)
	}

	artifact, err := sigtemplates.CompileSettlementLsig(ctx, c.ledger, c.params.SenderAddr, c.params.RecipientAddr, p.CumulativeAmount, c.params.MinRefundBlock)
	if err != nil {
		return goerrors.WrapPrefix(err, "compiling settlement program", 1)
	}

	var senderSig types.Signature
	if len(p.SenderSubSig) != len(senderSig) {
		return fmt.Errorf("%w: malformed settlement subsignature", smc.ErrBadSignature)
	}
	copy(senderSig[:], p.SenderSubSig)
	subsig := types.MultisigSubsig{Key: c.params.SenderAddr, Sig: senderSig}

	if !sigtemplates.VerifyProgramSubsig(artifact.Program, c.params.SenderAddr, subsig) {
		return fmt.Errorf("%w: settlement subsignature does not verify", smc.ErrBadSignature)
	}

	bal, err := c.ledger.AccountBalance(ctx, c.tmpl.Address)
	if err != nil {
		return goerrors.WrapPrefix(err, "checking multisig balance", 1)
	}

	sp, err := c.ledger.SuggestedParams(ctx)
	if err != nil {
		return goerrors.WrapPrefix(err, "fetching suggested params", 1)
	}
	expectedFee := sp.MinFee
	if p.CumulativeAmount+expectedFee > bal {
		return fmt.Errorf("%w: cumulative amount %d plus fee %d exceeds multisig balance %d",
			smc.ErrBadFunding, p.CumulativeAmount, expectedFee, bal)
	}

	c.settleProgram = artifact.Program
	c.senderSubsig = subsig
	c.lastPayment = &p
	c.setState(smc.StatePaying)

	log.Infof("accepted payment cumulative_amount=%d for multisig %s", p.CumulativeAmount, c.tmpl.Address)
	log.Debugf("accepted subsignature: %v", spew.Sdump(subsig))
	return nil
}

// SettleEndgame submits the highest-paying settlement transaction
// accepted so far, if any. It is the recipient's only avenue to the
// funds once the refund window opens, per spec.md §4.5 and property
// P6.
func (c *Channel) SettleEndgame(ctx context.Context) error {
	if c.lastPayment == nil {
		c.setState(smc.StateTerminal)
		return nil
	}

	c.setState(smc.StateSettling)

	mySig, err := sigtemplates.SignProgramSubsig(c.tmpl, c.settleProgram, c.recipientAddr, c.recipientSK)
	if err != nil {
		return goerrors.WrapPrefix(err, "signing settlement subsignature", 1)
	}

	lsig := sigtemplates.AssembleLogicSig(c.tmpl, c.settleProgram, c.senderSubsig, mySig)
	if !sigtemplates.IsFullySigned(lsig) {
		return fmt.Errorf("settlement logic-sig is not fully signed")
	}

	sp, err := c.ledger.SuggestedParams(ctx)
	if err != nil {
		return goerrors.WrapPrefix(err, "fetching suggested params", 1)
	}

	tx, err := txbuilder.BuildSettlementTxn(c.tmpl.Address, c.params.SenderAddr, c.params.RecipientAddr, c.lastPayment.CumulativeAmount, c.params.MinRefundBlock, sp)
	if err != nil {
		return goerrors.WrapPrefix(err, "building settlement transaction", 1)
	}

	log.Debugf("submitting settlement txn: %v", spew.Sdump(tx))
	stxBytes := txbuilder.EncodeSignedLogicSigTxn(tx, lsig)
	txid, err := c.ledger.Submit(ctx, stxBytes)
	if err != nil {
		return goerrors.WrapPrefix(err, "submitting settlement transaction", 1)
	}

	if err := c.ledger.AwaitConfirmation(ctx, txid); err != nil {
		return goerrors.WrapPrefix(err, "awaiting settlement confirmation", 1)
	}

	c.setState(smc.StateTerminal)
	log.Infof("settled channel %s at cumulative_amount=%d", c.tmpl.Address, c.lastPayment.CumulativeAmount)
	return nil
}
