//go:build !linux

package transport

import "errors"

// The gateway targets Linux (the source firmware runs on an embedded
// Linux board, T113); on other GOOS values serial and raw-socket
// configuration is unimplemented rather than silently wrong.

func openSerialFD(path string, baud int) (int, error) {
	return -1, errors.ErrUnsupported
}

func readFD(fd int, p []byte) (int, error) {
	return 0, errors.ErrUnsupported
}

func writeFD(fd int, p []byte) (int, error) {
	return 0, errors.ErrUnsupported
}

func closeFD(fd int) error {
	return errors.ErrUnsupported
}
