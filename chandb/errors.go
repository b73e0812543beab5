package chandb

import "fmt"

var (
	// ErrNoChanDBExists mirrors channeldb's sentinel for a database
	// whose known-channels bucket is missing (Open always creates it).
	ErrNoChanDBExists = fmt.Errorf("channel db has not yet been created")

	// ErrChannelNotFound is returned by Get when no channel is known for
	// the queried multisig address.
	ErrChannelNotFound = fmt.Errorf("no channel known for this address")

	// ErrChannelAlreadyExists is returned by Insert when a channel with
	// the same multisig address has already been recorded. The
	// recipient relies on this to reject the "duplicate channel" replay
	// scenario in spec.md §8, where a sender proposes the same
	// (sender, recipient, nonce, refund window) setup a second time.
	ErrChannelAlreadyExists = fmt.Errorf("channel already recorded")
)
