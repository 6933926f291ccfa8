// Package slip implements RFC 1055 byte stuffing (SLIP): the transport
// layer that carves whole ECU frames out of a continuous, and
// potentially hostile, serial byte stream.
package slip

import "errors"

// Reserved octets.
const (
	END     = 0xC0
	ESC     = 0xDB
	EscEnd  = 0xDC
	EscEsc  = 0xDD
)

// ErrOutputTooSmall describes a destination buffer that cannot hold the
// SLIP encoding of its input. Encode itself does not return it: Encode
// reports that case as (0, false).
var ErrOutputTooSmall = errors.New("slip: output buffer too small")

// EncodedLen returns the worst-case length of the SLIP encoding of an
// n-byte input: a leading END, every byte possibly escaped to two
// bytes, and a trailing END.
func EncodedLen(n int) int { return 2 + 2*n }

// Encode wraps src in SLIP framing, writing into dst. It fails as a
// whole (returns 0, false) if dst is too small; the caller must not
// act on a partial dst in that case.
func Encode(src []byte, dst []byte) (int, bool) {
	if len(dst) < 2 {
		return 0, false
	}
	n := 0
	dst[n] = END
	n++
	for _, b := range src {
		switch b {
		case END:
			if n+2 > len(dst) {
				return 0, false
			}
			dst[n] = ESC
			dst[n+1] = EscEnd
			n += 2
		case ESC:
			if n+2 > len(dst) {
				return 0, false
			}
			dst[n] = ESC
			dst[n+1] = EscEsc
			n += 2
		default:
			if n+1 > len(dst) {
				return 0, false
			}
			dst[n] = b
			n++
		}
	}
	if n+1 > len(dst) {
		return 0, false
	}
	dst[n] = END
	n++
	return n, true
}

// state is the decoder's tagged state, replacing the flag-soup
// (in_frame bool, esc bool) shape of the source protocol with an
// explicit three-way enum, per the recommended redesign.
type state int

const (
	stateIdle state = iota
	stateInFrame
	stateInFrameEscape
)

// Decoder incrementally reassembles SLIP-encoded frames from arbitrary
// byte runs. Its output buffer is reused across frames: a frame
// returned by Decode is only valid until the next call to Decode on
// the same Decoder.
type Decoder struct {
	out   []byte
	fill  int
	state state

	Frames uint64 // frames yielded so far
	Drops  uint64 // frames dropped (overflow or bad escape) so far
}

// NewDecoder allocates a Decoder whose output buffer can hold frames
// up to capacity bytes.
func NewDecoder(capacity int) *Decoder {
	return &Decoder{out: make([]byte, capacity)}
}

// Decode consumes a prefix of data, advancing the decoder's state
// machine one byte at a time. It returns as soon as a complete frame
// is assembled (consumed is the number of input bytes examined,
// including the terminating END; ok is true and frame aliases the
// decoder's internal buffer) or once all of data has been examined
// with no frame completed (consumed == len(data), ok is false).
//
// The caller re-invokes Decode on the remaining input to drain
// multiple frames buffered in one read.
func (d *Decoder) Decode(data []byte) (consumed int, frame []byte, ok bool) {
	for i, b := range data {
		switch d.state {
		case stateIdle:
			if b == END {
				d.fill = 0
				d.state = stateInFrame
			}
			// else: discard garbage before synchronization.

		case stateInFrame:
			switch {
			case b == END:
				if d.fill == 0 {
					// Re-synchronization delimiter; stay put.
					continue
				}
				frame = d.out[:d.fill]
				d.fill = 0
				d.Frames++
				return i + 1, frame, true
			case b == ESC:
				d.state = stateInFrameEscape
			default:
				if !d.appendByte(b) {
					d.Drops++
					d.state = stateIdle
				}
			}

		case stateInFrameEscape:
			switch b {
			case EscEnd:
				if !d.appendByte(END) {
					d.Drops++
					d.state = stateIdle
				} else {
					d.state = stateInFrame
				}
			case EscEsc:
				if !d.appendByte(ESC) {
					d.Drops++
					d.state = stateIdle
				} else {
					d.state = stateInFrame
				}
			default:
				d.Drops++
				d.state = stateIdle
			}
		}
	}
	return len(data), nil, false
}

// appendByte appends b to the output buffer, returning false (and
// leaving the decoder's fill unchanged beyond capacity) on overflow.
func (d *Decoder) appendByte(b byte) bool {
	if d.fill >= len(d.out) {
		return false
	}
	d.out[d.fill] = b
	d.fill++
	return true
}

// Reset clears accumulated state, forcing resynchronization on the
// next END byte seen.
func (d *Decoder) Reset() {
	d.fill = 0
	d.state = stateIdle
}
