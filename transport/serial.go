// Package transport owns the two wire-facing endpoint types: the
// serial link endpoint (raw bytes, SLIP-framed) and the TCP client
// endpoint (length-prefixed frames), plus the listener that accepts
// new TCP clients into a fixed slot table. Every endpoint here is
// mutated only by the event loop that owns it; there is no
// cross-endpoint sharing of mutable state.
package transport

import (
	"fmt"
	"log/slog"

	"github.com/ecugw/gateway/internal"
	"github.com/ecugw/gateway/internal/ring"
	"github.com/ecugw/gateway/proto"
	"github.com/ecugw/gateway/slip"
)

// Buffer sizing, per the data model: the raw RX accumulator is at
// least 4KiB, the TX ring at least 8KiB (capacity-1 usable), and the
// SLIP decoder's output buffer holds one max-size frame plus slack.
const (
	RawRXCapacity  = 4096
	TXRingCapacity = 8192
	slipOutSlack   = 64
)

// SerialEndpoint owns one UART's nonblocking file descriptor, its raw
// RX accumulator, an embedded SLIP decoder, and a TX ring. It is
// opened in non-blocking raw 8-N-1 mode by the platform-specific
// openSerialFD; reads and writes on it never block the event loop.
type SerialEndpoint struct {
	fd   int
	Path string
	log  *slog.Logger

	rx     [RawRXCapacity]byte
	rxFill int

	dec     *slip.Decoder
	tx      *ring.Ring
	scratch []byte // reused SLIP-encode scratch buffer
}

// OpenSerial opens and configures the serial device at path for the
// given baud rate, returning a ready-to-poll SerialEndpoint.
func OpenSerial(path string, baud int, log *slog.Logger) (*SerialEndpoint, error) {
	fd, err := openSerialFD(path, baud)
	if err != nil {
		return nil, err
	}
	return NewSerialEndpointFD(fd, path, log), nil
}

// NewSerialEndpointFD wraps an already-open, already-configured
// nonblocking file descriptor as a SerialEndpoint. OpenSerial is the
// production entry point; this constructor exists so integration tests
// can drive a SerialEndpoint over a socketpair or pipe fd instead of a
// real UART.
func NewSerialEndpointFD(fd int, path string, log *slog.Logger) *SerialEndpoint {
	return &SerialEndpoint{
		fd:      fd,
		Path:    path,
		log:     log,
		dec:     slip.NewDecoder(proto.MaxFrameSize + slipOutSlack),
		tx:      ring.New(TXRingCapacity),
		scratch: make([]byte, slip.EncodedLen(proto.MaxFrameSize)),
	}
}

// Fd returns the file descriptor for epoll registration.
func (s *SerialEndpoint) Fd() int { return s.fd }

// Close releases the underlying file descriptor.
func (s *SerialEndpoint) Close() error { return closeFD(s.fd) }

// WantsWritable reports whether writable-readiness interest should be
// armed for this endpoint: true iff its TX ring is nonempty.
func (s *SerialEndpoint) WantsWritable() bool { return s.tx.Used() > 0 }

// HandleReadable services one readable event: it tops up the raw RX
// accumulator, then repeatedly drives the SLIP decoder over the
// accumulated bytes, validating and forwarding every frame it yields
// via onFrame. Every byte read is handed to the decoder in the same
// call, so a partial frame still being accumulated is carried across
// calls in the decoder's own state rather than in the raw buffer. If
// the raw buffer is found full on entry it is cleared and SLIP
// resynchronizes.
func (s *SerialEndpoint) HandleReadable(onFrame func(frame []byte, h proto.Header, payload []byte)) error {
	if s.rxFill >= len(s.rx) {
		s.log.Warn("serial RX buffer full, discarding to recover", "path", s.Path)
		s.rxFill = 0
	}
	n, err := readFD(s.fd, s.rx[s.rxFill:])
	if err != nil {
		return fmt.Errorf("serial read %s: %w", s.Path, err)
	}
	s.rxFill += n
	s.drainDecoder(onFrame)
	return nil
}

// drainDecoder runs the SLIP decoder to completion over whatever is
// currently buffered in rx, validating and forwarding every yielded
// frame. The decoder examines every buffered byte (a partial frame is
// kept in its state), so rx is left empty on return. Split out from
// HandleReadable so it can be exercised without a real file
// descriptor.
func (s *SerialEndpoint) drainDecoder(onFrame func(frame []byte, h proto.Header, payload []byte)) {
	raw := s.rx[:s.rxFill]
	offset := 0
	for offset < len(raw) {
		consumed, frame, ok := s.dec.Decode(raw[offset:])
		offset += consumed
		if !ok {
			continue
		}
		h, payload, verr := proto.ValidateFrame(frame)
		if verr != nil {
			s.log.Warn("dropping invalid frame from serial", "path", s.Path, "error", verr, internal.SlogHexN("frame", frame, 32))
			continue
		}
		onFrame(frame, h, payload)
	}
	s.rxFill = copy(s.rx[:], raw[offset:])
}

// HandleWritable flushes the largest contiguous run available from
// the TX ring toward either the ring's head or its physical end,
// whichever comes first. A short or zero-byte write is normal.
func (s *SerialEndpoint) HandleWritable() error {
	chunk := s.tx.Peek()
	if len(chunk) == 0 {
		return nil
	}
	n, err := writeFD(s.fd, chunk)
	if err != nil {
		return fmt.Errorf("serial write %s: %w", s.Path, err)
	}
	s.tx.Advance(n)
	return nil
}

// EnqueueFrame SLIP-encodes an already CRC-sealed frame into a scratch
// buffer and appends the result to the TX ring. The enqueue fails
// atomically — the ring is left untouched — if there is insufficient
// free space or the frame is too large to SLIP-encode at all.
func (s *SerialEndpoint) EnqueueFrame(frame []byte) error {
	need := slip.EncodedLen(len(frame))
	if need > len(s.scratch) {
		return fmt.Errorf("serial %s: frame of %d bytes exceeds SLIP scratch capacity", s.Path, len(frame))
	}
	n, ok := slip.Encode(frame, s.scratch)
	if !ok {
		return fmt.Errorf("serial %s: SLIP encode failed", s.Path)
	}
	if _, err := s.tx.Write(s.scratch[:n]); err != nil {
		return fmt.Errorf("serial %s: %w", s.Path, err)
	}
	return nil
}
