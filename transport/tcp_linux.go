//go:build linux

package transport

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// listenBacklog is the modest backlog spec.md calls for; it bounds how
// many pending connections the kernel will queue before refusing new
// SYNs outright.
const listenBacklog = 16

// Listen binds to port on all IPv4 interfaces, non-blocking, with
// address reuse set, and starts listening.
func Listen(port int) (*Listener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set nonblocking: %w", err)
	}
	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind :%d: %w", port, err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen :%d: %w", port, err)
	}
	return &Listener{fd: fd, Port: port}, nil
}

// acceptFD pops one pending connection off the accept queue. ok=false
// with a nil error means the queue is currently empty (EAGAIN); a
// non-nil error is a genuine accept failure the caller should log.
func acceptFD(listenFd int) (fd int, addr string, ok bool, err error) {
	connFd, sa, aerr := unix.Accept(listenFd)
	if aerr != nil {
		if aerr == unix.EAGAIN || aerr == unix.EWOULDBLOCK {
			return -1, "", false, nil
		}
		return -1, "", false, fmt.Errorf("accept: %w", aerr)
	}
	if err := unix.SetNonblock(connFd, true); err != nil {
		unix.Close(connFd)
		return -1, "", false, fmt.Errorf("set nonblocking accepted socket: %w", err)
	}
	return connFd, peerString(sa), true, nil
}

func peerString(sa unix.Sockaddr) string {
	if in4, ok := sa.(*unix.SockaddrInet4); ok {
		return fmt.Sprintf("%d.%d.%d.%d:%d", in4.Addr[0], in4.Addr[1], in4.Addr[2], in4.Addr[3], in4.Port)
	}
	return "unknown"
}
