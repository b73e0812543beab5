// Package smc implements the core protocol of an Algorand Simple
// Micropayment Channel: the shared data model used by the sigtemplates,
// txbuilder, wire, sender and recipient packages.
package smc

import (
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// MinAcceptedLifetime is the recommended minimum number of rounds
// between the current round and MinRefundBlock that a recipient should
// require before accepting a setup proposal, so there is enough
// wall-clock margin to settle before the refund window opens.
const MinAcceptedLifetime = 2000

// ChannelParameters is the tuple that uniquely identifies a channel. Two
// tuples that differ in any field derive distinct multisig addresses
// (sigtemplates.BuildMultisig), so this struct doubles as the channel's
// identity once a party has accepted it.
type ChannelParameters struct {
	// SenderAddr is Alice's Algorand address.
	SenderAddr types.Address

	// RecipientAddr is Bob's Algorand address.
	RecipientAddr types.Address

	// Nonce disambiguates channels that would otherwise share the same
	// addresses and refund window.
	Nonce uint64

	// MinRefundBlock is the first round at which the refund artifact
	// becomes valid, and the round at (and after) which the settlement
	// artifact is no longer valid.
	MinRefundBlock uint64

	// MaxRefundBlock is the last round at which the refund artifact is
	// valid.
	MaxRefundBlock uint64
}

// Validate checks the invariants that must hold before a party accepts
// this tuple: MinRefundBlock <= MaxRefundBlock.
func (p ChannelParameters) Validate() error {
	if p.MinRefundBlock > p.MaxRefundBlock {
		return fmt.Errorf("%w: min_refund_block %d > max_refund_block %d",
			ErrBadSetup, p.MinRefundBlock, p.MaxRefundBlock)
	}
	return nil
}

// String renders the tuple for logging.
func (p ChannelParameters) String() string {
	return fmt.Sprintf("sender=%s recipient=%s nonce=%d window=[%d,%d]",
		p.SenderAddr, p.RecipientAddr, p.Nonce, p.MinRefundBlock,
		p.MaxRefundBlock)
}
