package smc

// Payment is one off-chain update: the sender's claim that the
// cumulative amount paid so far is CumulativeAmount, authorized by
// SenderSubSig, the sender's subsignature over the settlement
// logic-signature template parameterised by that amount.
//
// Within one channel, CumulativeAmount must be strictly increasing
// across accepted payments (P1, spec.md §8).
type Payment struct {
	CumulativeAmount uint64
	SenderSubSig     []byte
}

// Exceeds reports whether p is a valid successor to prev under the
// monotonicity invariant. A nil prev always succeeds.
func (p Payment) Exceeds(prev *Payment) bool {
	if prev == nil {
		return true
	}
	return p.CumulativeAmount > prev.CumulativeAmount
}
