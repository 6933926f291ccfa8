// Package gateway implements the single-threaded, readiness-driven
// event loop that owns every wire-facing endpoint: the TCP listener,
// the three serial links, and the accepted client slot table. It pumps
// I/O in reaction to readiness events, drives frames through
// validation and routing, and keeps each serial endpoint's
// writable-interest registration in sync with its TX ring occupancy.
package gateway

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ecugw/gateway/internal"
	"github.com/ecugw/gateway/proto"
	"github.com/ecugw/gateway/router"
	"github.com/ecugw/gateway/transport"
)

// PollTimeout bounds every wait-primitive call. A purely idle system
// still wakes periodically; this is a soft housekeeping tick, not a
// correctness requirement.
const PollTimeout = 100 * time.Millisecond

// role identifies which endpoint table an fd belongs to, so a dispatch
// can find the owning endpoint without a linear scan across every
// table on every event.
type role int

const (
	roleUnknown role = iota
	roleListener
	roleSerial
	roleClient
)

// Gateway owns every endpoint and the one OS-level readiness
// multiplexer that services them. After New, the caller calls Run
// once; it loops until stop is closed or the wait primitive fails.
type Gateway struct {
	log      *slog.Logger
	listener *transport.Listener
	serials  [router.LinkCount]*transport.SerialEndpoint
	poll     *poller

	roles map[int]role
}

// New wires up a Gateway from an already-bound listener and already-
// opened serial endpoints, registering every fd with a fresh poller
// instance. The caller retains no further responsibility for these
// endpoints; Close releases them all.
func New(log *slog.Logger, listener *transport.Listener, serials [router.LinkCount]*transport.SerialEndpoint) (*Gateway, error) {
	p, err := newPoller()
	if err != nil {
		return nil, fmt.Errorf("gateway: create poller: %w", err)
	}
	g := &Gateway{
		log:      log,
		listener: listener,
		serials:  serials,
		poll:     p,
		roles:    make(map[int]role, 4+transport.MaxClients),
	}
	if err := g.poll.add(listener.Fd(), false); err != nil {
		g.poll.close()
		return nil, fmt.Errorf("gateway: register listener: %w", err)
	}
	g.roles[listener.Fd()] = roleListener
	for i, s := range serials {
		if err := g.poll.add(s.Fd(), false); err != nil {
			g.poll.close()
			return nil, fmt.Errorf("gateway: register serial link %d: %w", i, err)
		}
		g.roles[s.Fd()] = roleSerial
	}
	return g, nil
}

// Close releases the poller and every owned endpoint.
func (g *Gateway) Close() error {
	g.listener.Close()
	for _, s := range g.serials {
		s.Close()
	}
	return g.poll.close()
}

// Run drives the event loop until stop is closed or an unrecoverable
// wait-primitive error occurs. A bad wait primitive is the only
// failure that terminates the loop; every other error kind is logged
// and absorbed per the error handling policy.
func (g *Gateway) Run(stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}
		events, err := g.poll.wait(PollTimeout)
		if err != nil {
			if errors.Is(err, errInterrupted) {
				continue
			}
			return fmt.Errorf("gateway: wait: %w", err)
		}
		for _, ev := range events {
			g.dispatch(ev)
		}
	}
}

func (g *Gateway) dispatch(ev event) {
	switch g.roles[ev.fd] {
	case roleListener:
		g.onListenerReadable()
	case roleSerial:
		g.onSerial(ev)
	case roleClient:
		g.onClient(ev)
	}
}

func (g *Gateway) onListenerReadable() {
	for _, c := range g.listener.AcceptAll() {
		if err := g.poll.add(c.Fd(), false); err != nil {
			g.log.Warn("failed to register accepted client", "addr", c.Addr, "error", err)
			g.listener.Remove(c.Fd())
			continue
		}
		g.roles[c.Fd()] = roleClient
		g.log.Info("client connected", "addr", c.Addr)
	}
}

func (g *Gateway) onSerial(ev event) {
	link := g.linkOf(ev.fd)
	if link < 0 {
		return
	}
	s := g.serials[link]
	if ev.readable {
		err := s.HandleReadable(func(frame []byte, _ proto.Header, _ []byte) {
			g.listener.Broadcast(frame)
		})
		if err != nil {
			g.log.Warn("serial read error", "path", s.Path, "error", err)
		}
	}
	if ev.writable {
		if err := s.HandleWritable(); err != nil {
			g.log.Warn("serial write error", "path", s.Path, "error", err)
		}
	}
	g.syncWritableInterest(link)
}

func (g *Gateway) onClient(ev event) {
	c := g.listener.Find(ev.fd)
	if c == nil {
		return
	}
	if ev.hangup && !ev.readable {
		g.evictClient(c)
		return
	}
	err := c.HandleReadable(func(frame []byte) {
		g.routeFromClient(frame)
	})
	if err != nil {
		g.log.Info("client disconnected", "addr", c.Addr, "error", err)
		g.evictClient(c)
		return
	}
	if ev.hangup {
		g.evictClient(c)
	}
}

func (g *Gateway) routeFromClient(frame []byte) {
	h, _, err := proto.ValidateFrame(frame)
	if err != nil {
		g.log.Warn("dropping invalid frame from client", "error", err, internal.SlogHexN("frame", frame, 32))
		return
	}
	link, ok := router.NodeToLink(h.Destination())
	if !ok {
		return // broadcast, gateway-self, or unroutable: silent drop per spec
	}
	s := g.serials[link]
	if err := s.EnqueueFrame(frame); err != nil {
		g.log.Warn("dropping frame: serial TX ring full", "path", s.Path, "error", err)
		return
	}
	g.syncWritableInterest(link)
}

func (g *Gateway) evictClient(c *transport.TCPClient) {
	g.poll.remove(c.Fd())
	delete(g.roles, c.Fd())
	g.listener.Remove(c.Fd())
}

// syncWritableInterest recomputes the writable-interest bit for a
// serial link from its TX ring's current occupancy and re-registers
// the fd with it on every call. Called after every event that could have
// changed the ring's occupancy (a flush or an enqueue).
func (g *Gateway) syncWritableInterest(link int) {
	s := g.serials[link]
	if err := g.poll.modify(s.Fd(), s.WantsWritable()); err != nil {
		g.log.Warn("failed to update writable interest", "path", s.Path, "error", err)
	}
}

func (g *Gateway) linkOf(fd int) int {
	for i, s := range g.serials {
		if s.Fd() == fd {
			return i
		}
	}
	return -1
}

