package internal

import (
	"encoding/hex"
	"log/slog"
)

// SlogHex returns a slog.Attr rendering b as a lowercase hex string,
// for logging dropped or malformed wire bytes without committing to a
// particular hex-dump layout at the call site.
func SlogHex(key string, b []byte) slog.Attr {
	return slog.String(key, hex.EncodeToString(b))
}

// SlogHexN is SlogHex truncated to at most n leading bytes of b, with
// the original length recorded alongside so a truncated dump is never
// mistaken for a complete one.
func SlogHexN(key string, b []byte, n int) slog.Attr {
	if len(b) <= n {
		return SlogHex(key, b)
	}
	return slog.Group(key,
		"prefix", hex.EncodeToString(b[:n]),
		"len", len(b),
	)
}
