package transport

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ecugw/gateway/proto"
)

// TCP framing: a 4-byte little-endian length prefix precedes exactly
// that many bytes of one complete ECU frame, in both directions.
const (
	LengthPrefixSize = 4
	ClientRXCapacity = 8192

	// MaxClients is the listener's fixed slot-table capacity.
	MaxClients = 8
)

// ErrProtocolError marks a TCP client stream as desynchronized (a zero
// or oversize length prefix). The event loop must evict the client;
// the RX buffer has already been cleared.
var ErrProtocolError = errors.New("transport: tcp length-prefix protocol error")

// TCPClient is one accepted PC-client connection: a nonblocking stream
// socket and its RX accumulator.
type TCPClient struct {
	fd   int
	Addr string

	rx     [ClientRXCapacity]byte
	rxFill int
}

// NewTCPClientFD wraps an already-open, nonblocking socket fd as a
// TCPClient. Accept and AcceptAll are the production entry points;
// this constructor exists so integration tests can drive a TCPClient
// over a socketpair fd instead of a real accepted connection.
func NewTCPClientFD(fd int, addr string) *TCPClient {
	return &TCPClient{fd: fd, Addr: addr}
}

// Fd returns the file descriptor for epoll registration.
func (c *TCPClient) Fd() int { return c.fd }

// Close releases the client's socket.
func (c *TCPClient) Close() error { return closeFD(c.fd) }

// HandleReadable reads whatever is currently available and extracts
// every complete length-prefixed frame already buffered, invoking
// onFrame for each in receive order. onFrame's argument aliases the
// client's RX buffer and is only valid until HandleReadable shifts it
// for the next frame, so callers must not retain it past the call.
func (c *TCPClient) HandleReadable(onFrame func(frame []byte)) error {
	if c.rxFill >= len(c.rx) {
		c.rxFill = 0
		return ErrProtocolError
	}
	n, err := readFD(c.fd, c.rx[c.rxFill:])
	if err != nil {
		return fmt.Errorf("client %s read: %w", c.Addr, err)
	}
	c.rxFill += n
	return c.drainFrames(onFrame)
}

// drainFrames extracts every complete length-prefixed frame currently
// buffered in rx. Split out from HandleReadable so the framing state
// machine can be exercised without a real file descriptor.
func (c *TCPClient) drainFrames(onFrame func(frame []byte)) error {
	for c.rxFill >= LengthPrefixSize {
		length := binary.LittleEndian.Uint32(c.rx[:LengthPrefixSize])
		if length == 0 || length > proto.MaxFrameSize {
			c.rxFill = 0
			return ErrProtocolError
		}
		total := LengthPrefixSize + int(length)
		if c.rxFill < total {
			break
		}
		onFrame(c.rx[LengthPrefixSize:total])
		c.rxFill = copy(c.rx[:], c.rx[total:c.rxFill])
	}
	return nil
}

// WriteFramed writes a single length-prefixed frame to the client in
// one best-effort attempt: a partial write is not retried (see
// DESIGN.md for the accepted slow-consumer tradeoff).
func (c *TCPClient) WriteFramed(frame []byte) error {
	var hdr [LengthPrefixSize]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(frame)))
	if _, err := writeFD(c.fd, hdr[:]); err != nil {
		return err
	}
	_, err := writeFD(c.fd, frame)
	return err
}

// Listener accepts new TCP clients into a fixed-capacity slot table.
type Listener struct {
	fd    int
	Port  int
	slots [MaxClients]*TCPClient
}

// NewListenerFD wraps an already-bound, already-listening (or, for
// tests, merely valid) nonblocking socket fd as a Listener. Listen is
// the production entry point; this constructor lets integration tests
// stand in any fd for the listening socket, since it is only ever
// read from via AcceptAll.
func NewListenerFD(fd int, port int) *Listener {
	return &Listener{fd: fd, Port: port}
}

// Fd returns the listening socket's file descriptor for epoll
// registration.
func (l *Listener) Fd() int { return l.fd }

// Close releases the listening socket and every connected client.
func (l *Listener) Close() error {
	for i, c := range l.slots {
		if c != nil {
			c.Close()
			l.slots[i] = nil
		}
	}
	return closeFD(l.fd)
}

// AcceptAll drains the accept queue into free slots. Once all
// MaxClients slots are occupied, excess pending connections are
// accepted and immediately closed.
func (l *Listener) AcceptAll() []*TCPClient {
	var accepted []*TCPClient
	for {
		fd, addr, ok, err := acceptFD(l.fd)
		if err != nil || !ok {
			break
		}
		if c, ok := l.Accept(fd, addr); ok {
			accepted = append(accepted, c)
		} else {
			closeFD(fd)
		}
	}
	return accepted
}

// Accept places an already-connected client fd into the first free
// slot, returning the new TCPClient and true, or false if the slot
// table is full (the caller must close fd itself in that case). Split
// out from AcceptAll so integration tests can seat a socketpair fd as
// a client without a real listening socket.
func (l *Listener) Accept(fd int, addr string) (*TCPClient, bool) {
	slot := l.firstFreeSlot()
	if slot < 0 {
		return nil, false
	}
	c := NewTCPClientFD(fd, addr)
	l.slots[slot] = c
	return c, true
}

func (l *Listener) firstFreeSlot() int {
	for i, s := range l.slots {
		if s == nil {
			return i
		}
	}
	return -1
}

// Remove evicts the client owning fd, closing its socket and
// resetting its slot. It is a no-op if fd is not a known client.
func (l *Listener) Remove(fd int) {
	for i, s := range l.slots {
		if s != nil && s.fd == fd {
			s.Close()
			l.slots[i] = nil
			return
		}
	}
}

// Find returns the client owning fd, or nil.
func (l *Listener) Find(fd int) *TCPClient {
	for _, s := range l.slots {
		if s != nil && s.fd == fd {
			return s
		}
	}
	return nil
}

// Clients returns every currently-connected client.
func (l *Listener) Clients() []*TCPClient {
	out := make([]*TCPClient, 0, MaxClients)
	for _, s := range l.slots {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Broadcast distributes frame to every connected client with
// best-effort semantics (see WriteFramed). A write error on one client
// does not affect delivery to the others; write errors are discarded,
// not reported to the caller, and no client is evicted here.
func (l *Listener) Broadcast(frame []byte) {
	for _, c := range l.slots {
		if c == nil {
			continue
		}
		c.WriteFramed(frame)
	}
}
