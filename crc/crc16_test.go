package crc

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestKnownAnswers(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{"empty", nil, 0xFFFF},
		{"check-string", []byte("123456789"), 0x29B1},
		{"zero16", make([]byte, 16), 0x6A0A},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Checksum(tt.data)
			if got != tt.want {
				t.Fatalf("Checksum(%q) = %#04x, want %#04x", tt.data, got, tt.want)
			}
		})
	}
}

func TestDeterminism(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		a := make([]byte, rng.Intn(64))
		b := make([]byte, rng.Intn(64))
		rng.Read(a)
		rng.Read(b)

		whole := Checksum(append(bytes.Clone(a), b...))
		streamed := FrameChecksum(a, b)
		if whole != streamed {
			t.Fatalf("split checksum diverges from whole-buffer checksum: whole=%#04x streamed=%#04x (a=%x b=%x)", whole, streamed, a, b)
		}
	}
}

func TestWriteIsIncremental(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	want := Checksum(data)

	c := New()
	for _, chunk := range bytes.SplitAfter(data, []byte(" ")) {
		c.Write(chunk)
	}
	if got := c.Sum16(); got != want {
		t.Fatalf("incremental Write = %#04x, want %#04x", got, want)
	}
}
