// Package ledger abstracts the underlying Algorand node: current
// round, account balance, submission, confirmation and TEAL
// compilation. See spec.md §4.6 and §6.
package ledger

import (
	"context"
	"errors"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// ErrAccountNotFound is returned by AccountBalance when the queried
// address has never received funds (algod/indexer report it absent).
// It must be distinguishable from a transient transport error so the
// sender's refund watchdog can tell "already settled" from "ledger
// unreachable" -- spec.md §4.6 and the indexer-lag open question in §9.
var ErrAccountNotFound = errors.New("ledger: account not found")

// ErrOverspendRejected is returned by Submit/AwaitConfirmation when the
// node rejects a transaction as spending more than the account holds.
// For a refund submission this almost always means the recipient beat
// the sender to settlement between the watchdog's last balance poll and
// the submission; see the indexer-lag open question in spec.md §9.
var ErrOverspendRejected = errors.New("ledger: transaction rejected as overspend")

// Status is the subset of node status the protocol needs.
type Status struct {
	LastRound uint64
}

// Ledger is the narrow capability surface the sender and recipient
// state machines depend on, grounded on lnwallet.BlockChainIO's role as
// a thin interface wrapping a chain backend in lnd.
type Ledger interface {
	// Status returns the current chain height.
	Status(ctx context.Context) (Status, error)

	// AccountBalance returns addr's confirmed balance in microAlgos, or
	// ErrAccountNotFound if the account has never been funded.
	AccountBalance(ctx context.Context, addr types.Address) (uint64, error)

	// IndexerHasAccount reports whether the (typically lagging) indexer
	// has caught up to addr's existence. sender.Channel.Fund polls this
	// after algod confirms the funding transaction, so that a
	// subsequent Pay or RefundWatch never race an indexer that hasn't
	// observed the account yet; see spec.md §4.4 and the indexer-lag
	// open question in §9.
	IndexerHasAccount(ctx context.Context, addr types.Address) (bool, error)

	// SuggestedParams returns the node's current suggested transaction
	// parameters (first/last valid round, fees).
	SuggestedParams(ctx context.Context) (types.SuggestedParams, error)

	// Submit broadcasts a signed transaction and returns its txid.
	Submit(ctx context.Context, signedTxn []byte) (string, error)

	// AwaitConfirmation blocks until txid is confirmed in a block, or
	// ctx is cancelled, or the node reports the submission was
	// rejected (e.g. as an overspend).
	AwaitConfirmation(ctx context.Context, txid string) error

	// CompileProgram compiles TEAL source to bytecode and returns the
	// program's escrow address.
	CompileProgram(ctx context.Context, source []byte) (bytecode []byte, address string, err error)
}
