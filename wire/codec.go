package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrUnknownField is returned when a frame contains a value the codec
// does not recognize (an unknown MsgType or Method, or bytes left over
// after the message's known fields). The codec must be
// deterministic and unknown fields are rejected rather than ignored,
// per spec.md §4.3.
var ErrUnknownField = errors.New("wire: unknown field")

// maxFrameSize bounds a single frame's payload, guarding against a
// corrupt or hostile peer claiming an enormous length prefix. No
// message defined in this package is remotely close to this size; an
// Algorand address string is 58 bytes and a subsignature 64.
const maxFrameSize = 1 << 16

// WriteMessage frames msg as: 1 type byte, 4-byte big-endian length
// prefix, payload. Framing and transport-level backpressure below this
// are delegated to the caller's net.Conn, per spec.md §6.
func WriteMessage(w io.Writer, msg Message) error {
	var payload bytes.Buffer
	if err := msg.Encode(&payload); err != nil {
		return fmt.Errorf("encoding %s: %w", msg.MsgType(), err)
	}

	if payload.Len() > maxFrameSize {
		return fmt.Errorf("encoded %s exceeds max frame size: %d bytes", msg.MsgType(), payload.Len())
	}

	if err := binary.Write(w, binary.BigEndian, uint8(msg.MsgType())); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(payload.Len())); err != nil {
		return err
	}
	_, err := w.Write(payload.Bytes())
	return err
}

// ReadMessage reads one framed message and decodes it into the
// concrete type matching its MsgType. An unrecognized type byte is
// ErrUnknownField, not silently skipped.
func ReadMessage(r io.Reader) (Message, error) {
	var typeByte uint8
	if err := binary.Read(r, binary.BigEndian, &typeByte); err != nil {
		return nil, err
	}

	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if length > maxFrameSize {
		return nil, fmt.Errorf("frame length %d exceeds max frame size", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	msg, err := newMessage(MsgType(typeByte))
	if err != nil {
		return nil, err
	}

	rd := bytes.NewReader(payload)
	if err := msg.Decode(rd); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", msg.MsgType(), err)
	}
	if rd.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes in %s", ErrUnknownField, rd.Len(), msg.MsgType())
	}
	return msg, nil
}

func newMessage(t MsgType) (Message, error) {
	switch t {
	case MsgMethodSelector:
		return &MethodSelector{}, nil
	case MsgSetupProposal:
		return &SetupProposal{}, nil
	case MsgSetupResponse:
		return &SetupResponse{}, nil
	case MsgPayment:
		return &Payment{}, nil
	default:
		return nil, fmt.Errorf("%w: message type %d", ErrUnknownField, uint8(t))
	}
}

// writeString/readString and writeBytes/readBytes implement
// length-prefixed variable-size fields shared by SetupProposal,
// SetupResponse and Payment.

func writeString(w io.Writer, s string) error {
	return writeBytes(w, []byte(s))
}

func readString(r io.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeBytes(w io.Writer, b []byte) error {
	if len(b) > maxFrameSize {
		return fmt.Errorf("field of length %d exceeds max frame size", len(b))
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if length > maxFrameSize {
		return nil, fmt.Errorf("field length %d exceeds max frame size", length)
	}
	b := make([]byte, length)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
