//go:build !linux

package gateway

import (
	"errors"
	"time"
)

var errInterrupted = errors.New("gateway: wait interrupted")

type event struct {
	fd                 int
	readable, writable bool
	hangup             bool
}

// poller is unimplemented outside Linux: the gateway's readiness
// multiplexer is built directly on epoll, matching the single
// platform the original firmware's host tooling targets.
type poller struct{}

func newPoller() (*poller, error) {
	return nil, errors.ErrUnsupported
}

func (p *poller) add(fd int, writable bool) error    { return errors.ErrUnsupported }
func (p *poller) modify(fd int, writable bool) error { return errors.ErrUnsupported }
func (p *poller) remove(fd int) error                { return errors.ErrUnsupported }
func (p *poller) close() error                       { return errors.ErrUnsupported }
func (p *poller) wait(timeout time.Duration) ([]event, error) {
	return nil, errors.ErrUnsupported
}
