// Package protocol implements the CarLink dongle binary protocol.
//
// This package handles parsing, validation, and construction of the binary
// messages exchanged with CarPlay/Android Auto mirroring dongles over USB
// bulk transfers. It performs no I/O of its own; the transport layer reads
// and writes the byte slices this package produces and consumes.
//
// # Wire Format
//
// Every message starts with a fixed 16-byte header, little-endian:
//
//	offset 0  uint32 magic       = 0x55aa55aa
//	offset 4  uint32 length      (payload byte count)
//	offset 8  uint32 type        (message type code)
//	offset 12 uint32 type check  = type XOR 0xffffffff
//
// The payload, when present, immediately follows the header. All integers
// and floats in payloads are little-endian unless noted otherwise.
//
// # Incoming Messages
//
// DecodeHeader validates the header; DecodeBody dispatches on the type code
// to one of the per-variant parsers and returns a Message value. Type codes
// this package does not recognize decode to an Unrecognized message so the
// stream can continue past firmware-specific extensions.
//
// # Outgoing Messages
//
// Outbound messages implement the Sendable interface and are serialized
// with Encode, which prepends the header to the variant payload:
//
//	frame, err := protocol.Encode(&protocol.Touch{X: 0.5, Y: 0.5, Action: protocol.TouchDown})
//
// # Error Handling
//
// The package distinguishes between:
//   - Header errors: bad magic or type-check field (corrupt framing)
//   - Payload errors: truncated or malformed payload content
//
// Payload errors are recoverable; callers drop the message and keep
// reading. All errors are wrapped with context for debugging.
//
// # Thread Safety
//
// All parsing and construction functions are stateless and safe for
// concurrent use.
package protocol
