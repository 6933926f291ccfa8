//go:build linux

package gateway

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// errInterrupted marks a wait call that returned early on a signal; the
// event loop retries transparently, per spec.
var errInterrupted = errors.New("gateway: wait interrupted")

// event is one readiness notification, translated from the raw epoll
// event bitmask into the three conditions the event loop cares about.
type event struct {
	fd                 int
	readable, writable bool
	hangup             bool
}

// poller wraps a single epoll instance: the one OS-level readiness
// primitive the whole gateway waits on.
type poller struct {
	epfd int
	buf  [64]unix.EpollEvent
}

func newPoller() (*poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &poller{epfd: epfd}, nil
}

func interestMask(writable bool) uint32 {
	mask := uint32(unix.EPOLLIN | unix.EPOLLRDHUP)
	if writable {
		mask |= unix.EPOLLOUT
	}
	return mask
}

func (p *poller) add(fd int, writable bool) error {
	ev := unix.EpollEvent{Events: interestMask(writable), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *poller) modify(fd int, writable bool) error {
	ev := unix.EpollEvent{Events: interestMask(writable), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (p *poller) remove(fd int) error {
	// The event argument is ignored by EPOLL_CTL_DEL on modern kernels
	// but older ones require a non-nil pointer.
	ev := unix.EpollEvent{}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, &ev)
}

func (p *poller) close() error { return unix.Close(p.epfd) }

// wait blocks for at most timeout for readiness on any registered fd.
// A signal interruption is reported as errInterrupted so the caller can
// retry without treating it as a fatal wait-primitive error.
func (p *poller) wait(timeout time.Duration) ([]event, error) {
	n, err := unix.EpollWait(p.epfd, p.buf[:], int(timeout/time.Millisecond))
	if err != nil {
		if err == unix.EINTR {
			return nil, errInterrupted
		}
		return nil, err
	}
	events := make([]event, 0, n)
	for i := 0; i < n; i++ {
		e := p.buf[i]
		events = append(events, event{
			fd:       int(e.Fd),
			readable: e.Events&(unix.EPOLLIN|unix.EPOLLERR) != 0,
			writable: e.Events&unix.EPOLLOUT != 0,
			hangup:   e.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP|unix.EPOLLERR) != 0,
		})
	}
	return events, nil
}
