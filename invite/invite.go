// Package invite bech32-encodes an out-of-band channel invitation: the
// recipient's address and its proposed refund window, shared with a
// prospective sender before any connection is opened. Grounded on
// zpay32's role as lnd's out-of-band, bech32-encoded payment
// parameters, generalized from a BOLT11 invoice to this protocol's
// much smaller parameter set; this is a supplemental feature per
// SPEC_FULL.md §5, absent from original_source (which hardcodes
// RECIPIENT_ADDR and the window as constants).
package invite

import (
	"encoding/binary"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/btcsuite/btcd/btcutil/bech32"
)

// hrp is the human-readable prefix, chosen the way zpay32 chooses
// "lnbc"/"lntb": short, and specific to this protocol.
const hrp = "smcinv"

// Invite is the recipient's proposed terms: its address and the refund
// window it is willing to accept. The sender fills in its own address
// and a nonce to arrive at a full smc.ChannelParameters.
type Invite struct {
	RecipientAddr  types.Address
	MinRefundBlock uint64
	MaxRefundBlock uint64
}

// Encode renders inv as a bech32 string suitable for sharing over a
// QR code, a link, or plain text.
func Encode(inv Invite) (string, error) {
	var raw []byte
	raw = append(raw, inv.RecipientAddr[:]...)
	raw = binary.BigEndian.AppendUint64(raw, inv.MinRefundBlock)
	raw = binary.BigEndian.AppendUint64(raw, inv.MaxRefundBlock)

	converted, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("invite: converting to base32: %w", err)
	}

	encoded, err := bech32.Encode(hrp, converted)
	if err != nil {
		return "", fmt.Errorf("invite: bech32 encoding: %w", err)
	}
	return encoded, nil
}

// Decode parses a string produced by Encode.
func Decode(s string) (Invite, error) {
	decodedHRP, data, err := bech32.Decode(s)
	if err != nil {
		return Invite{}, fmt.Errorf("invite: bech32 decoding: %w", err)
	}
	if decodedHRP != hrp {
		return Invite{}, fmt.Errorf("invite: unexpected human-readable prefix %q", decodedHRP)
	}

	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return Invite{}, fmt.Errorf("invite: converting from base32: %w", err)
	}

	const wantLen = 32 + 8 + 8
	if len(raw) != wantLen {
		return Invite{}, fmt.Errorf("invite: decoded payload is %d bytes, want %d", len(raw), wantLen)
	}

	var inv Invite
	copy(inv.RecipientAddr[:], raw[:32])
	inv.MinRefundBlock = binary.BigEndian.Uint64(raw[32:40])
	inv.MaxRefundBlock = binary.BigEndian.Uint64(raw[40:48])
	return inv, nil
}
