package transport

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func lengthPrefix(frame []byte) []byte {
	var hdr [LengthPrefixSize]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(frame)))
	return append(hdr[:], frame...)
}

func feed(c *TCPClient, b []byte) {
	n := copy(c.rx[c.rxFill:], b)
	c.rxFill += n
}

func TestDrainFramesProgressiveFeed(t *testing.T) {
	frames := [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")}
	var stream []byte
	for _, f := range frames {
		stream = append(stream, lengthPrefix(f)...)
	}

	c := &TCPClient{}
	var got [][]byte
	for _, b := range stream {
		feed(c, []byte{b})
		if err := c.drainFrames(func(frame []byte) {
			got = append(got, bytes.Clone(frame))
		}); err != nil {
			t.Fatalf("drainFrames: %v", err)
		}
	}

	if len(got) != len(frames) {
		t.Fatalf("got %d frames, want %d", len(got), len(frames))
	}
	for i := range frames {
		if !bytes.Equal(got[i], frames[i]) {
			t.Fatalf("frame %d = %x, want %x", i, got[i], frames[i])
		}
	}
}

func TestDrainFramesZeroLengthIsProtocolError(t *testing.T) {
	c := &TCPClient{}
	feed(c, []byte{0, 0, 0, 0})
	if err := c.drainFrames(func([]byte) {}); err != ErrProtocolError {
		t.Fatalf("expected ErrProtocolError, got %v", err)
	}
	if c.rxFill != 0 {
		t.Fatalf("expected rx buffer cleared after protocol error, rxFill=%d", c.rxFill)
	}
}

func TestDrainFramesOversizeLengthIsProtocolError(t *testing.T) {
	c := &TCPClient{}
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], 1<<20)
	feed(c, hdr[:])
	if err := c.drainFrames(func([]byte) {}); err != ErrProtocolError {
		t.Fatalf("expected ErrProtocolError, got %v", err)
	}
}

func TestDrainFramesWaitsForCompleteFrame(t *testing.T) {
	c := &TCPClient{}
	frame := []byte("hello")
	stream := lengthPrefix(frame)
	feed(c, stream[:len(stream)-1]) // withhold the last byte

	called := false
	if err := c.drainFrames(func([]byte) { called = true }); err != nil {
		t.Fatalf("drainFrames: %v", err)
	}
	if called {
		t.Fatal("onFrame should not fire before the frame is complete")
	}

	feed(c, stream[len(stream)-1:])
	if err := c.drainFrames(func(f []byte) {
		called = true
		if !bytes.Equal(f, frame) {
			t.Fatalf("frame = %x, want %x", f, frame)
		}
	}); err != nil {
		t.Fatalf("drainFrames: %v", err)
	}
	if !called {
		t.Fatal("onFrame should fire once the frame completes")
	}
}

func TestListenerSlotTable(t *testing.T) {
	l := &Listener{}
	for i := 0; i < MaxClients; i++ {
		if slot := l.firstFreeSlot(); slot != i {
			t.Fatalf("firstFreeSlot() = %d, want %d", slot, i)
		}
		l.slots[i] = &TCPClient{fd: 100 + i}
	}
	if slot := l.firstFreeSlot(); slot != -1 {
		t.Fatalf("firstFreeSlot() with full table = %d, want -1", slot)
	}
	if n := len(l.Clients()); n != MaxClients {
		t.Fatalf("Clients() len = %d, want %d", n, MaxClients)
	}
}

func TestListenerRemoveClearsSlot(t *testing.T) {
	l := &Listener{}
	l.slots[2] = &TCPClient{fd: 999999} // bogus fd; Close() failing is irrelevant here
	if c := l.Find(999999); c == nil {
		t.Fatal("expected to find the client before removal")
	}
	l.Remove(999999)
	if c := l.Find(999999); c != nil {
		t.Fatal("expected slot cleared after Remove")
	}
}
