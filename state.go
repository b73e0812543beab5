package smc

// ChannelState enumerates the lifecycle of a channel, as tracked
// independently by each party. The recipient additionally tracks its
// last accepted payment; the sender tracks the last cumulative amount
// it sent. See spec.md §3.
type ChannelState uint8

const (
	// StateProposed is the initial state: a setup proposal has been
	// sent (sender) or received (recipient) but not yet accepted.
	StateProposed ChannelState = iota

	// StateAccepted means both sides agree on ChannelParameters and the
	// recipient's refund subsignature has been sent (recipient) or
	// verified (sender).
	StateAccepted

	// StateFunded means the sender has submitted and confirmed the
	// funding payment into the multisig. Sender-only state; the
	// recipient has no direct signal for it beyond balance checks.
	StateFunded

	// StatePaying means at least one payment has been accepted.
	StatePaying

	// StateSettling means the recipient has begun (or completed)
	// submitting the settlement transaction.
	StateSettling

	// StateRefunding means the sender has begun (or completed)
	// submitting the refund transaction.
	StateRefunding

	// StateTerminal means the channel will see no further activity from
	// this party, whether due to a protocol error or a successful
	// settlement/refund.
	StateTerminal
)

// String implements fmt.Stringer for log lines.
func (s ChannelState) String() string {
	switch s {
	case StateProposed:
		return "Proposed"
	case StateAccepted:
		return "Accepted"
	case StateFunded:
		return "Funded"
	case StatePaying:
		return "Paying"
	case StateSettling:
		return "Settling"
	case StateRefunding:
		return "Refunding"
	case StateTerminal:
		return "Terminal"
	default:
		return "Unknown"
	}
}
