// Package engine wires the transport, ifdb, and session layers together
// into the running daemon: a session table keyed by peer MAC, and the four
// cooperative loops grounded in the original implementation's Main class —
// receive-and-dispatch, periodic HELLO beacon, session timer sweep, and
// interface-change rebroadcast.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/arrcus-clone/lsoe/internal/codec"
	"github.com/arrcus-clone/lsoe/internal/ifdb"
	"github.com/arrcus-clone/lsoe/internal/macaddr"
	"github.com/arrcus-clone/lsoe/internal/northbound"
	"github.com/arrcus-clone/lsoe/internal/session"
	"github.com/arrcus-clone/lsoe/internal/transport"
)

// Config holds the daemon-wide timers layered on top of the per-session
// protocol config.
type Config struct {
	Session       session.Config
	HelloInterval time.Duration
}

// wireTransport is the subset of *transport.Transport the engine and the
// sessions it creates need, abstracted so tests can substitute a fake.
type wireTransport interface {
	Read(ctx context.Context) (transport.Message, error)
	Unread(msg transport.Message)
	Write(pdu []byte, peer [6]byte, ifName string) error
}

// wireAdapter adapts a wireTransport to the session.Wire interface, which
// speaks macaddr.Addr rather than a bare [6]byte array. The two types share
// an identical underlying array so the conversion is free.
type wireAdapter struct {
	t wireTransport
}

func (a wireAdapter) Write(pdu []byte, peer macaddr.Addr, ifName string) error {
	return a.t.Write(pdu, [6]byte(peer), ifName)
}

func (a wireAdapter) Unread(pdu []byte, peer macaddr.Addr, ifName string) {
	a.t.Unread(transport.Message{PDU: pdu, PeerMAC: [6]byte(peer), IfName: ifName})
}

// Engine owns the session table and drives the four loops that make up a
// running LSOE speaker.
type Engine struct {
	cfg     Config
	wire    wireTransport
	watcher *ifdb.Watcher
	nb      northbound.Consumer
	clock   clockwork.Clock
	log     *slog.Logger
	metrics *Metrics
	vendor  map[uint32]session.VendorHook

	mu       sync.Mutex
	sessions map[macaddr.Addr]*session.Session
}

// New constructs an Engine. t is the transport layer's public surface
// (ordinarily *transport.Transport); watcher supplies the live interface
// database and its change notifications.
func New(cfg Config, t *transport.Transport, watcher *ifdb.Watcher, nb northbound.Consumer, clock clockwork.Clock, log *slog.Logger, metrics *Metrics, vendor map[uint32]session.VendorHook) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{
		cfg:      cfg,
		wire:     t,
		watcher:  watcher,
		nb:       nb,
		clock:    clock,
		log:      log,
		metrics:  metrics,
		vendor:   vendor,
		sessions: make(map[macaddr.Addr]*session.Session),
	}
}

// Run starts the four cooperative loops and blocks until ctx is canceled or
// one of them fails fatally.
func (e *Engine) Run(ctx context.Context) error {
	errCh := make(chan error, 4)
	var wg sync.WaitGroup
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("engine: %s: %w", name, err)
			}
		}()
	}

	start("pdu-receiver", e.runPDUReceiver)
	start("hello-beacon", e.runHelloBeacon)
	start("session-timers", e.runSessionTimers)
	start("interface-tracker", e.runInterfaceTracker)

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}
	wg.Wait()
	return err
}

// sessionFor returns the session for peer on ifName, creating one if this
// is the first PDU seen from it.
func (e *Engine) sessionFor(peer macaddr.Addr, ifName string) *session.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[peer]; ok {
		return s
	}
	s := session.New(peer, ifName, e.cfg.Session, wireAdapter{e.wire}, e.nb, e.clock, e.log, e.vendor, e.forget)
	e.sessions[peer] = s
	if e.metrics != nil {
		e.metrics.OpenSessions.Set(float64(len(e.sessions)))
	}
	return s
}

func (e *Engine) forget(peer macaddr.Addr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, peer)
	if e.metrics != nil {
		e.metrics.OpenSessions.Set(float64(len(e.sessions)))
	}
}

func (e *Engine) allSessions() []*session.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*session.Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		out = append(out, s)
	}
	return out
}

// runPDUReceiver is the main receive-and-dispatch loop: it pulls
// reassembled PDUs from the transport, routes each to its peer's session,
// and pushes a fresh link-state snapshot the moment a session first opens.
func (e *Engine) runPDUReceiver(ctx context.Context) error {
	for {
		msg, err := e.wire.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		peer := macaddr.Addr(msg.PeerMAC)
		s := e.sessionFor(peer, msg.IfName)

		if e.metrics != nil {
			if typ, terr := codec.PeekType(msg.PDU); terr == nil {
				e.metrics.PDUsReceived.WithLabelValues(typ.String()).Inc()
			} else {
				e.metrics.ParseErrors.Inc()
			}
		}

		wasOpen := s.IsOpen()
		s.Recv(msg.PDU)
		if !wasOpen && s.IsOpen() {
			e.sendSnapshot(s)
		}
	}
}

func (e *Engine) sendSnapshot(s *session.Session) {
	v4, v6, mplsv4, mplsv6 := e.watcher.DB().Encapsulations()
	s.SendEncapsulations(v4, v6, mplsv4, mplsv6)
}

// runHelloBeacon periodically advertises this host's presence on every up,
// non-loopback interface, so a newly-attached peer can discover us without
// waiting for us to receive anything from it first.
func (e *Engine) runHelloBeacon(ctx context.Context) error {
	interval := e.cfg.HelloInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := e.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			e.beaconOnce()
		}
	}
}

func (e *Engine) beaconOnce() {
	for _, ifc := range e.watcher.DB().Snapshot() {
		if ifc.Loopback || !ifc.Up {
			continue
		}
		hello := codec.Serialize(&codec.Hello{MyMACAddr: ifc.MACAddr})
		if err := e.wire.Write(hello, [6]byte(macaddr.Broadcast), ifc.Name); err != nil {
			e.log.Warn("engine: failed to send HELLO", "interface", ifc.Name, "error", err)
			continue
		}
		if e.metrics != nil {
			e.metrics.PDUsSent.WithLabelValues(codec.PDUTypeHello.String()).Inc()
		}
	}
}

// runSessionTimers sweeps every known session's timers (keepalive liveness,
// ACK retransmission) on a fixed tick.
func (e *Engine) runSessionTimers(ctx context.Context) error {
	ticker := e.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			now := e.clock.Now()
			var depth int
			for _, s := range e.allSessions() {
				s.CheckTimeouts(now)
				depth += s.PendingACKCount()
			}
			if e.metrics != nil {
				e.metrics.RetransmitQueueDepth.Set(float64(depth))
			}
		}
	}
}

// runInterfaceTracker rebroadcasts a fresh encapsulation snapshot to every
// open session whenever the local interface database changes. Per §4.3,
// only the address family that actually changed is re-sent; MPLS-over-v4
// and MPLS-over-v6 encapsulations ride along with their underlying IP
// family since both are keyed off the same address set.
func (e *Engine) runInterfaceTracker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ch := <-e.watcher.Changes:
			v4, v6, mplsv4, mplsv6 := e.watcher.DB().Encapsulations()
			if !ch.V4 {
				v4, mplsv4 = nil, nil
			}
			if !ch.V6 {
				v6, mplsv6 = nil, nil
			}
			for _, s := range e.allSessions() {
				if s.IsOpen() {
					s.SendEncapsulations(v4, v6, mplsv4, mplsv6)
				}
			}
		}
	}
}
