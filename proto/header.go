// Package proto implements the ECU frame wire format: a fixed 16-byte
// header, an opaque payload of up to 1024 bytes, and a 2-byte CRC
// trailer. Field-level payload semantics are deliberately out of
// scope; this package only validates and assembles the envelope.
package proto

import "encoding/binary"

// Magic and version are fixed constants of the wire format.
const (
	Magic   uint16 = 0xEC10
	Version uint8  = 1
)

// Size constants.
const (
	HeaderSize    = 16
	CRCSize       = 2
	MaxPayloadLen = 1024
	MaxFrameSize  = HeaderSize + MaxPayloadLen + CRCSize
)

// Well-known node addresses.
const (
	NodeBroadcast uint8 = 0
	NodeGateway   uint8 = 255
)

// MessageKind labels the kind byte in the header. The core never
// branches on these values — they exist for logging, tests, and
// synthetic frame construction; unrecognised values are accepted
// (forward compatibility) and simply passed through.
type MessageKind uint8

// Kind values, matching the source firmware's ecu_msg_type_t layout.
const (
	KindHello     MessageKind = 1
	KindTelemetry MessageKind = 2
	KindCommand   MessageKind = 3
	KindAck       MessageKind = 4
	KindTimeSync  MessageKind = 5
	KindEvent     MessageKind = 6
	KindConfig    MessageKind = 7
	KindHeartbeat MessageKind = 8
)

func (k MessageKind) String() string {
	switch k {
	case KindHello:
		return "Hello"
	case KindTelemetry:
		return "Telemetry"
	case KindCommand:
		return "Command"
	case KindAck:
		return "Ack"
	case KindTimeSync:
		return "TimeSync"
	case KindEvent:
		return "Event"
	case KindConfig:
		return "Config"
	case KindHeartbeat:
		return "Heartbeat"
	default:
		return "Unknown"
	}
}

// Flags is the header's bitfield word.
type Flags uint16

const (
	FlagAckRequired Flags = 1 << 0
	FlagIsAck       Flags = 1 << 1
	FlagIsNack      Flags = 1 << 2
	FlagError       Flags = 1 << 3
	FlagUrgent      Flags = 1 << 4
)

// Header wraps a 16-byte slice and provides typed accessors onto its
// little-endian fields, in place, without copying.
type Header struct {
	buf []byte
}

// NewHeader wraps buf as a Header view. buf must be at least
// HeaderSize bytes; the returned Header aliases buf.
func NewHeader(buf []byte) (Header, bool) {
	if len(buf) < HeaderSize {
		return Header{}, false
	}
	return Header{buf: buf[:HeaderSize]}, true
}

// RawData returns the underlying 16-byte slice.
func (h Header) RawData() []byte { return h.buf }

func (h Header) MagicField() uint16           { return binary.LittleEndian.Uint16(h.buf[0:2]) }
func (h Header) setMagic(v uint16)            { binary.LittleEndian.PutUint16(h.buf[0:2], v) }
func (h Header) VersionField() uint8          { return h.buf[2] }
func (h Header) setVersion(v uint8)           { h.buf[2] = v }
func (h Header) Kind() MessageKind            { return MessageKind(h.buf[3]) }
func (h Header) SetKind(k MessageKind)        { h.buf[3] = byte(k) }
func (h Header) Source() uint8                { return h.buf[4] }
func (h Header) SetSource(v uint8)             { h.buf[4] = v }
func (h Header) Destination() uint8           { return h.buf[5] }
func (h Header) SetDestination(v uint8)        { h.buf[5] = v }
func (h Header) Sequence() uint16             { return binary.LittleEndian.Uint16(h.buf[6:8]) }
func (h Header) SetSequence(v uint16)         { binary.LittleEndian.PutUint16(h.buf[6:8], v) }
func (h Header) FlagWord() Flags              { return Flags(binary.LittleEndian.Uint16(h.buf[8:10])) }
func (h Header) SetFlagWord(f Flags)          { binary.LittleEndian.PutUint16(h.buf[8:10], uint16(f)) }
func (h Header) PayloadLen() uint16           { return binary.LittleEndian.Uint16(h.buf[10:12]) }
func (h Header) setPayloadLen(v uint16)       { binary.LittleEndian.PutUint16(h.buf[10:12], v) }
func (h Header) reserved0() uint16            { return binary.LittleEndian.Uint16(h.buf[12:14]) }
func (h Header) reserved1() uint16            { return binary.LittleEndian.Uint16(h.buf[14:16]) }

// Valid reports whether the header satisfies its fixed contract: the
// magic, version, and both reserved fields match exactly, and the
// payload length is within bounds. The kind byte is never rejected
// here (forward compatibility with unrecognised message kinds).
func (h Header) Valid() bool {
	return h.MagicField() == Magic &&
		h.VersionField() == Version &&
		h.reserved0() == 0 &&
		h.reserved1() == 0 &&
		h.PayloadLen() <= MaxPayloadLen
}
