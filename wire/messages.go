// Package wire implements the four message shapes exchanged between
// sender and recipient over a framed, bidirectional byte stream; see
// spec.md §4.3. It replaces the protobuf definitions referenced (but
// not carried by original_source) in the Python reference's
// algorandsmc.smc_pb2 module with a small hand-rolled codec in the
// style of lnwire.Message.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MsgType identifies which of the four message shapes a frame carries.
type MsgType uint8

const (
	// MsgMethodSelector carries a MethodSelector.
	MsgMethodSelector MsgType = iota

	// MsgSetupProposal carries a SetupProposal.
	MsgSetupProposal

	// MsgSetupResponse carries a SetupResponse.
	MsgSetupResponse

	// MsgPayment carries a Payment.
	MsgPayment
)

func (t MsgType) String() string {
	switch t {
	case MsgMethodSelector:
		return "MethodSelector"
	case MsgSetupProposal:
		return "SetupProposal"
	case MsgSetupResponse:
		return "SetupResponse"
	case MsgPayment:
		return "Payment"
	default:
		return fmt.Sprintf("UnknownMsgType(%d)", uint8(t))
	}
}

// Method enumerates the logical operation a sender is about to perform,
// sent ahead of each operation so the recipient knows how to dispatch
// the frames that follow. See spec.md §4.3 item 1.
type Method uint8

const (
	// MethodSetupChannel precedes a SetupProposal.
	MethodSetupChannel Method = iota

	// MethodPay precedes a Payment.
	MethodPay
)

func (m Method) String() string {
	switch m {
	case MethodSetupChannel:
		return "SETUP_CHANNEL"
	case MethodPay:
		return "PAY"
	default:
		return fmt.Sprintf("UnknownMethod(%d)", uint8(m))
	}
}

// Message is implemented by all four wire message shapes, following
// lnwire.Message's split between identifying a payload's type and
// (de)serializing it.
type Message interface {
	MsgType() MsgType
	Encode(w io.Writer) error
	Decode(r io.Reader) error
}

// MethodSelector is sent by the sender before each logical operation so
// the recipient can dispatch to the right handler.
type MethodSelector struct {
	Method Method
}

// MsgType implements Message.
func (*MethodSelector) MsgType() MsgType { return MsgMethodSelector }

// Encode implements Message.
func (m *MethodSelector) Encode(w io.Writer) error {
	return binary.Write(w, binary.BigEndian, uint8(m.Method))
}

// Decode implements Message.
func (m *MethodSelector) Decode(r io.Reader) error {
	var b uint8
	if err := binary.Read(r, binary.BigEndian, &b); err != nil {
		return err
	}
	method := Method(b)
	if method != MethodSetupChannel && method != MethodPay {
		return fmt.Errorf("%w: unknown method selector %d", ErrUnknownField, b)
	}
	m.Method = method
	return nil
}

// SetupProposal is the sender's proposed channel parameters. The
// recipient derives the rest of ChannelParameters (its own address)
// locally; only the sender's half travels here.
type SetupProposal struct {
	SenderAddr     string
	Nonce          uint64
	MinRefundBlock uint64
	MaxRefundBlock uint64
}

// MsgType implements Message.
func (*SetupProposal) MsgType() MsgType { return MsgSetupProposal }

// Encode implements Message.
func (p *SetupProposal) Encode(w io.Writer) error {
	if err := writeString(w, p.SenderAddr); err != nil {
		return err
	}
	for _, v := range []uint64{p.Nonce, p.MinRefundBlock, p.MaxRefundBlock} {
		if err := binary.Write(w, binary.BigEndian, v); err != nil {
			return err
		}
	}
	return nil
}

// Decode implements Message.
func (p *SetupProposal) Decode(r io.Reader) error {
	addr, err := readString(r)
	if err != nil {
		return err
	}
	p.SenderAddr = addr

	for _, dst := range []*uint64{&p.Nonce, &p.MinRefundBlock, &p.MaxRefundBlock} {
		if err := binary.Read(r, binary.BigEndian, dst); err != nil {
			return err
		}
	}
	return nil
}

// SetupResponse is the recipient's reply to a SetupProposal: its
// address, plus its subsignature over the refund logic-signature
// template derived from the proposal.
type SetupResponse struct {
	RecipientAddr         string
	RefundLsigSubsigBytes []byte
}

// MsgType implements Message.
func (*SetupResponse) MsgType() MsgType { return MsgSetupResponse }

// Encode implements Message.
func (r *SetupResponse) Encode(w io.Writer) error {
	if err := writeString(w, r.RecipientAddr); err != nil {
		return err
	}
	return writeBytes(w, r.RefundLsigSubsigBytes)
}

// Decode implements Message.
func (resp *SetupResponse) Decode(r io.Reader) error {
	addr, err := readString(r)
	if err != nil {
		return err
	}
	resp.RecipientAddr = addr

	b, err := readBytes(r)
	if err != nil {
		return err
	}
	resp.RefundLsigSubsigBytes = b
	return nil
}

// Payment is one off-chain payment update: the sender's claim to a new
// cumulative amount, authorized by its subsignature over the
// settlement logic-signature template for that amount.
type Payment struct {
	CumulativeAmount          uint64
	SettlementLsigSubsigBytes []byte
}

// MsgType implements Message.
func (*Payment) MsgType() MsgType { return MsgPayment }

// Encode implements Message.
func (p *Payment) Encode(w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, p.CumulativeAmount); err != nil {
		return err
	}
	return writeBytes(w, p.SettlementLsigSubsigBytes)
}

// Decode implements Message.
func (p *Payment) Decode(r io.Reader) error {
	if err := binary.Read(r, binary.BigEndian, &p.CumulativeAmount); err != nil {
		return err
	}
	b, err := readBytes(r)
	if err != nil {
		return err
	}
	p.SettlementLsigSubsigBytes = b
	return nil
}
