package proto

import (
	"encoding/binary"
	"errors"

	"github.com/ecugw/gateway/crc"
)

// Errors returned by ValidateFrame, plus ErrTooShort and
// ErrPayloadTooLong, which BuildFrame also returns. All are non-fatal:
// the caller logs and drops the offending bytes.
var (
	ErrTooShort       = errors.New("proto: frame shorter than header+crc")
	ErrInvalidHeader  = errors.New("proto: invalid header")
	ErrLengthMismatch = errors.New("proto: frame length does not match header payload_len")
	ErrCRCMismatch    = errors.New("proto: CRC check failed")
	ErrPayloadTooLong = errors.New("proto: payload exceeds maximum length")
)

// ValidateFrame parses and validates a complete wire-format frame:
// header, payload, and CRC trailer. On success it returns a Header
// view and the payload slice, both aliasing b. Any validation failure
// returns a zero Header, a nil payload, and a sentinel error; the
// frame must be dropped, not partially trusted.
func ValidateFrame(b []byte) (Header, []byte, error) {
	if len(b) < HeaderSize+CRCSize {
		return Header{}, nil, ErrTooShort
	}
	h, ok := NewHeader(b)
	if !ok || !h.Valid() {
		return Header{}, nil, ErrInvalidHeader
	}
	payloadLen := int(h.PayloadLen())
	want := HeaderSize + payloadLen + CRCSize
	if len(b) != want {
		return Header{}, nil, ErrLengthMismatch
	}
	payload := b[HeaderSize : HeaderSize+payloadLen]
	trailer := b[HeaderSize+payloadLen : want]
	gotCRC := binary.LittleEndian.Uint16(trailer)
	wantCRC := crc.FrameChecksum(h.RawData(), payload)
	if gotCRC != wantCRC {
		return Header{}, nil, ErrCRCMismatch
	}
	return h, payload, nil
}

// BuildFrame serializes a header and payload into dst, appending the
// computed CRC trailer, and returns the total frame length. dst must
// be at least HeaderSize+len(payload)+CRCSize bytes. BuildFrame writes
// every header field itself: magic and version, the kind, src, dst,
// seq and flags arguments, the payload length, and zeroed reserved
// fields; it then copies the payload and appends the CRC.
func BuildFrame(dst []byte, kind MessageKind, src, dstAddr uint8, seq uint16, flags Flags, payload []byte) (int, error) {
	if len(payload) > MaxPayloadLen {
		return 0, ErrPayloadTooLong
	}
	total := HeaderSize + len(payload) + CRCSize
	if len(dst) < total {
		return 0, ErrTooShort
	}
	h, _ := NewHeader(dst)
	h.setMagic(Magic)
	h.setVersion(Version)
	h.SetKind(kind)
	h.SetSource(src)
	h.SetDestination(dstAddr)
	h.SetSequence(seq)
	h.SetFlagWord(flags)
	h.setPayloadLen(uint16(len(payload)))
	binary.LittleEndian.PutUint16(dst[12:14], 0)
	binary.LittleEndian.PutUint16(dst[14:16], 0)

	copy(dst[HeaderSize:], payload)

	c := crc.FrameChecksum(h.RawData(), payload)
	binary.LittleEndian.PutUint16(dst[HeaderSize+len(payload):total], c)
	return total, nil
}
