// Package wire implements the framed binary protocol spoken by bridge
// devices: outer framing, the 0x7E-bounded inner struct, the packet
// taxonomy, and control-packet encoding.
package wire

import "errors"

var (
	// ErrNeedMoreData signals the framer does not yet have a complete frame.
	ErrNeedMoreData = errors.New("wire: need more data")
	// ErrUnknownHeader is returned when a frame's type byte is not recognised.
	ErrUnknownHeader = errors.New("wire: unknown header byte")
	// ErrTruncatedInner is returned when an inner struct is missing its
	// leading or trailing 0x7E sentinel.
	ErrTruncatedInner = errors.New("wire: truncated inner struct")
	// ErrBadChecksum names an inner-struct checksum mismatch.
	// DecodeInnerStruct does not return it; it reports a mismatch
	// through its checksumOK result instead.
	ErrBadChecksum = errors.New("wire: inner struct checksum mismatch")
	// ErrPayloadTooLarge is returned when an encoded frame would declare a
	// length that does not fit the 16-bit length field.
	ErrPayloadTooLarge = errors.New("wire: payload exceeds 65535 bytes")
)
