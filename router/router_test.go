package router

import "testing"

func TestKnownNodes(t *testing.T) {
	cases := []struct {
		node uint8
		link int
	}{
		{1, Link0},
		{2, Link1},
		{3, Link2},
	}
	for _, c := range cases {
		link, ok := NodeToLink(c.node)
		if !ok || link != c.link {
			t.Fatalf("NodeToLink(%d) = (%d, %v), want (%d, true)", c.node, link, ok, c.link)
		}
	}
}

func TestUnroutableAddresses(t *testing.T) {
	for _, node := range []uint8{0, 255, 4, 200} {
		if _, ok := NodeToLink(node); ok {
			t.Fatalf("NodeToLink(%d) should be unroutable", node)
		}
	}
}

func TestTotalFunction(t *testing.T) {
	// Every possible node value must return without panicking.
	for n := 0; n < 256; n++ {
		NodeToLink(uint8(n))
	}
}
