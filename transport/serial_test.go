package transport

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/ecugw/gateway/internal/ring"
	"github.com/ecugw/gateway/proto"
	"github.com/ecugw/gateway/slip"
)

func newTestSerial(t *testing.T) *SerialEndpoint {
	t.Helper()
	return &SerialEndpoint{
		Path: "test",
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		dec:  slip.NewDecoder(proto.MaxFrameSize + slipOutSlack),
	}
}

func buildFrame(t *testing.T, payload []byte) []byte {
	t.Helper()
	buf := make([]byte, proto.HeaderSize+len(payload)+proto.CRCSize)
	n, err := proto.BuildFrame(buf, proto.KindTelemetry, 2, 255, 7, 0, payload)
	if err != nil {
		t.Fatalf("BuildFrame: %v", err)
	}
	return buf[:n]
}

func TestDrainDecoderDeliversValidFrame(t *testing.T) {
	s := newTestSerial(t)
	frame := buildFrame(t, []byte("telemetry-payload"))
	enc := make([]byte, slip.EncodedLen(len(frame)))
	n, ok := slip.Encode(frame, enc)
	if !ok {
		t.Fatal("encode failed")
	}
	copy(s.rx[:], enc[:n])
	s.rxFill = n

	var got []byte
	var gotFrame []byte
	s.drainDecoder(func(f []byte, h proto.Header, payload []byte) {
		got = bytes.Clone(payload)
		gotFrame = bytes.Clone(f)
		if h.Kind() != proto.KindTelemetry {
			t.Fatalf("unexpected kind %v", h.Kind())
		}
	})
	if string(got) != "telemetry-payload" {
		t.Fatalf("payload = %q", got)
	}
	if !bytes.Equal(gotFrame, frame) {
		t.Fatalf("frame = %x, want %x", gotFrame, frame)
	}
	if s.rxFill != 0 {
		t.Fatalf("expected rx drained, rxFill=%d", s.rxFill)
	}
}

func TestDrainDecoderDropsBadCRCWithoutCallback(t *testing.T) {
	s := newTestSerial(t)
	frame := buildFrame(t, []byte{1, 2, 3})
	frame[len(frame)-1] ^= 0xFF // corrupt CRC

	enc := make([]byte, slip.EncodedLen(len(frame)))
	n, _ := slip.Encode(frame, enc)
	copy(s.rx[:], enc[:n])
	s.rxFill = n

	called := false
	s.drainDecoder(func([]byte, proto.Header, []byte) { called = true })
	if called {
		t.Fatal("onFrame must not fire for a frame with a bad CRC")
	}
}

func TestDrainDecoderPreservesPartialFrameAcrossCalls(t *testing.T) {
	s := newTestSerial(t)
	frame := buildFrame(t, []byte("split-across-reads"))
	enc := make([]byte, slip.EncodedLen(len(frame)))
	n, _ := slip.Encode(frame, enc)

	half := n / 2
	copy(s.rx[:], enc[:half])
	s.rxFill = half

	called := false
	s.drainDecoder(func([]byte, proto.Header, []byte) { called = true })
	if called {
		t.Fatal("onFrame should not fire on a partial frame")
	}

	copy(s.rx[s.rxFill:], enc[half:n])
	s.rxFill += n - half
	s.drainDecoder(func(_ []byte, h proto.Header, payload []byte) {
		called = true
		if string(payload) != "split-across-reads" {
			t.Fatalf("payload = %q", payload)
		}
	})
	if !called {
		t.Fatal("expected the completed frame to be delivered")
	}
}

func TestEnqueueFrameThenFlushRoundTrips(t *testing.T) {
	s := newTestSerial(t)
	s.tx = ring.New(TXRingCapacity)
	s.scratch = make([]byte, slip.EncodedLen(proto.MaxFrameSize))

	frame := buildFrame(t, []byte("command-payload"))
	if err := s.EnqueueFrame(frame); err != nil {
		t.Fatalf("EnqueueFrame: %v", err)
	}
	if !s.WantsWritable() {
		t.Fatal("expected WantsWritable after enqueue")
	}

	queued := make([]byte, s.tx.Used())
	s.tx.Read(queued)

	dec := slip.NewDecoder(proto.MaxFrameSize + slipOutSlack)
	consumed, decoded, ok := dec.Decode(queued)
	if !ok || consumed != len(queued) {
		t.Fatalf("expected exactly the queued bytes to decode to one frame, ok=%v consumed=%d len=%d", ok, consumed, len(queued))
	}
	if !bytes.Equal(decoded, frame) {
		t.Fatalf("round trip mismatch: got %x want %x", decoded, frame)
	}
}
