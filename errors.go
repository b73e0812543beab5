package smc

import "errors"

// Sentinel errors for the channel protocol. A party checks these with
// errors.Is rather than matching on error text, mirroring channeldb's
// exported Err* vars.
//
// Grounded on original_source/algorandsmc/errors.py, which declares one
// exception class per failure kind (SMCBadSetup, SMCBadSignature,
// SMCBadFunding, SMCCannotBeRefunded). BAD_SEQUENCE is split out of what
// the Python code folded into a generic log-and-break in
// demos/honest_recipient.py, because spec.md promotes it to its own
// propagation rule (§7).
var (
	// ErrBadSetup is raised when a setup proposal has an invalid
	// address, a reversed refund window, too short a lifetime, or
	// derives a multisig address already present in KnownChannels.
	ErrBadSetup = errors.New("smc: bad channel setup")

	// ErrBadSignature is raised when a peer's subsignature fails to
	// verify against a logic-signature template.
	ErrBadSignature = errors.New("smc: bad signature")

	// ErrBadFunding is raised when the multisig balance is insufficient
	// to cover a claimed cumulative amount.
	ErrBadFunding = errors.New("smc: insufficient multisig funding")

	// ErrBadSequence is raised when a payment's cumulative amount does
	// not strictly increase over the last accepted payment.
	ErrBadSequence = errors.New("smc: non-increasing payment sequence")

	// ErrCannotBeRefunded is raised by the sender's refund watchdog when
	// the multisig is already empty or unknown to the ledger, meaning
	// the recipient has settled.
	ErrCannotBeRefunded = errors.New("smc: channel already settled, cannot be refunded")
)
