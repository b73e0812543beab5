package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadMessageRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"MethodSelector", &MethodSelector{Method: MethodPay}},
		{"SetupProposal", &SetupProposal{
			SenderAddr:     "SENDERADDR",
			Nonce:          7,
			MinRefundBlock: 100,
			MaxRefundBlock: 200,
		}},
		{"SetupResponse", &SetupResponse{
			RecipientAddr:         "RECIPIENTADDR",
			RefundLsigSubsigBytes: []byte{1, 2, 3, 4},
		}},
		{"Payment", &Payment{
			CumulativeAmount:          12345,
			SettlementLsigSubsigBytes: []byte{9, 8, 7},
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteMessage(&buf, tc.msg))

			got, err := ReadMessage(&buf)
			require.NoError(t, err)

			require.Equal(t, tc.msg.MsgType(), got.MsgType())

			var roundTripped bytes.Buffer
			require.NoError(t, got.Encode(&roundTripped))
			var original bytes.Buffer
			require.NoError(t, tc.msg.Encode(&original))
			require.Equal(t, original.Bytes(), roundTripped.Bytes(), "round-tripped encoding must match the original")
		})
	}
}

func TestReadMessageRejectsUnknownType(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(0xFF)
	buf.Write([]byte{0, 0, 0, 0})

	_, err := ReadMessage(&buf)
	require.ErrorIs(t, err, ErrUnknownField)
}

func TestMethodSelectorDecodeRejectsUnknownMethod(t *testing.T) {
	var payload bytes.Buffer
	payload.WriteByte(0xFF)

	var sel MethodSelector
	err := sel.Decode(&payload)
	require.ErrorIs(t, err, ErrUnknownField)
}

func TestReadMessageRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(uint8(MsgPayment))
	length := uint32(maxFrameSize + 1)
	buf.Write([]byte{byte(length >> 24), byte(length >> 16), byte(length >> 8), byte(length)})

	_, err := ReadMessage(&buf)
	require.Error(t, err, "expected an error reading an oversized frame length")
}

func TestWriteMessageRejectsOversizedField(t *testing.T) {
	huge := make([]byte, maxFrameSize+1)
	msg := &Payment{CumulativeAmount: 1, SettlementLsigSubsigBytes: huge}

	var buf bytes.Buffer
	err := WriteMessage(&buf, msg)
	require.Error(t, err, "expected an error writing a message whose payload exceeds the max frame size")
}
