//go:build !linux

package transport

import "errors"

func Listen(port int) (*Listener, error) {
	return nil, errors.ErrUnsupported
}

func acceptFD(listenFd int) (fd int, addr string, ok bool, err error) {
	return -1, "", false, errors.ErrUnsupported
}
