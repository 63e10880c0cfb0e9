package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Header framing constants
const (
	// Magic is the fixed marker opening every frame header.
	Magic uint32 = 0x55aa55aa

	// HeaderSize is the fixed header length in bytes.
	HeaderSize = 16
)

// Header errors
var (
	// ErrShortHeader indicates fewer than HeaderSize bytes were supplied.
	ErrShortHeader = errors.New("protocol: short header")
	// ErrInvalidMagic indicates the magic field did not match.
	ErrInvalidMagic = errors.New("protocol: invalid magic number")
	// ErrInvalidTypeCheck indicates the redundant type-check field did not
	// match the complement of the type field.
	ErrInvalidTypeCheck = errors.New("protocol: invalid type check")
)

// UnknownTypeError reports a structurally valid header whose type code this
// package does not recognize. The returned Header still carries the declared
// payload length so callers can skip the payload and continue reading.
type UnknownTypeError struct {
	Type uint32
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("protocol: unknown message type 0x%02x", e.Type)
}

// Header is the decoded 16-byte frame header.
type Header struct {
	Length uint32      // payload byte count
	Type   MessageType // message type code
}

// DecodeHeader parses and validates a 16-byte frame header.
//
// A valid header with an unrecognized type code returns both the header and
// an *UnknownTypeError: the length field is trustworthy (magic and type
// check passed), so the caller can skip exactly Length payload bytes rather
// than abort the stream.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: expecting %d bytes, got %d", ErrShortHeader, HeaderSize, len(buf))
	}

	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != Magic {
		return Header{}, fmt.Errorf("%w: received 0x%08x", ErrInvalidMagic, magic)
	}

	length := binary.LittleEndian.Uint32(buf[4:8])
	msgType := binary.LittleEndian.Uint32(buf[8:12])
	typeCheck := binary.LittleEndian.Uint32(buf[12:16])

	if expected := msgType ^ 0xffffffff; typeCheck != expected {
		return Header{}, fmt.Errorf("%w: received 0x%08x, expected 0x%08x", ErrInvalidTypeCheck, typeCheck, expected)
	}

	hdr := Header{Length: length, Type: MessageType(msgType)}
	if !hdr.Type.known() {
		return hdr, &UnknownTypeError{Type: msgType}
	}
	return hdr, nil
}

// EncodeHeader builds a 16-byte frame header for the given type and payload
// length.
func EncodeHeader(msgType MessageType, payloadLen int) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(payloadLen))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(msgType))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(msgType)^0xffffffff)
	return buf
}
