package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/arrcus-clone/lsoe/internal/codec"
	"github.com/arrcus-clone/lsoe/internal/ifdb"
	"github.com/arrcus-clone/lsoe/internal/macaddr"
	"github.com/arrcus-clone/lsoe/internal/northbound"
	"github.com/arrcus-clone/lsoe/internal/session"
	"github.com/arrcus-clone/lsoe/internal/transport"
)

// fakeWire is a minimal in-memory wireTransport: Write appends to sent, and
// inject and Unread feed the read queue (Write never loops back; the
// loopback field is not consulted), letting tests drive a full session
// handshake without a real socket.
type fakeWire struct {
	mu       sync.Mutex
	sent     []transport.Message
	readCh   chan transport.Message
	loopback bool
}

func newFakeWire() *fakeWire {
	return &fakeWire{readCh: make(chan transport.Message, 64)}
}

func (w *fakeWire) Write(pdu []byte, peer [6]byte, ifName string) error {
	w.mu.Lock()
	w.sent = append(w.sent, transport.Message{PDU: pdu, PeerMAC: peer, IfName: ifName})
	w.mu.Unlock()
	return nil
}

func (w *fakeWire) Unread(msg transport.Message) {
	w.readCh <- msg
}

func (w *fakeWire) Read(ctx context.Context) (transport.Message, error) {
	select {
	case m := <-w.readCh:
		return m, nil
	case <-ctx.Done():
		return transport.Message{}, ctx.Err()
	}
}

func (w *fakeWire) inject(pdu []byte, peer [6]byte, ifName string) {
	w.readCh <- transport.Message{PDU: pdu, PeerMAC: peer, IfName: ifName}
}

func testCfg() Config {
	return Config{
		Session: session.Config{
			RetransmitInitialInterval:    time.Second,
			RetransmitExponentialBackoff: true,
			RetransmitMaxDrop:            3,
			KeepaliveSendInterval:        10 * time.Second,
			KeepaliveReceiveTimeout:      30 * time.Second,
		},
		HelloInterval: time.Second,
	}
}

func newTestEngine(t *testing.T) (*Engine, *fakeWire, clockwork.FakeClock) {
	t.Helper()
	wire := newFakeWire()
	clock := clockwork.NewFakeClock()
	watcher := ifdb.NewWatcher(nil)
	nb := northbound.NewLogger(nil)
	e := New(testCfg(), nil, watcher, nb, clock, nil, nil, nil)
	e.wire = wire
	return e, wire, clock
}

func TestSessionForCreatesAndReusesSession(t *testing.T) {
	e, _, _ := newTestEngine(t)
	peer, err := macaddr.Parse("02:00:00:00:00:01")
	require.NoError(t, err)

	s1 := e.sessionFor(peer, "eth0")
	s2 := e.sessionFor(peer, "eth0")
	require.Same(t, s1, s2)
	require.Len(t, e.allSessions(), 1)
}

func TestPDUReceiverOpensSessionAndSendsSnapshot(t *testing.T) {
	e, wire, _ := newTestEngine(t)
	peer, err := macaddr.Parse("02:00:00:00:00:01")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.runPDUReceiver(ctx)

	// Peer initiates OPEN.
	wire.inject(codec.Serialize(&codec.Open{Nonce: [codec.NonceSize]byte{1, 2, 3, 4}}), [6]byte(peer), "eth0")
	require.Eventually(t, func() bool {
		s := e.sessionFor(peer, "eth0")
		return len(wire.sentCopy()) >= 1 && s != nil
	}, time.Second, time.Millisecond)

	// Our OPEN gets ACKed, which should trigger an encapsulation snapshot.
	wire.inject(codec.Serialize(&codec.ACK{AckType: codec.PDUTypeOpen, ErrorType: codec.ErrorTypeNoError}), [6]byte(peer), "eth0")

	require.Eventually(t, func() bool {
		for _, m := range wire.sentCopy() {
			pdu, err := codec.Parse(m.PDU)
			if err != nil {
				continue
			}
			if codec.Type(pdu) == codec.PDUTypeIPv4Encap {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond, "expected an IPv4-ENCAP snapshot after session opened")
}

func (w *fakeWire) sentCopy() []transport.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]transport.Message(nil), w.sent...)
}

func TestSessionTimersSweepsEveryKnownSession(t *testing.T) {
	e, _, clock := newTestEngine(t)
	peer, err := macaddr.Parse("02:00:00:00:00:01")
	require.NoError(t, err)
	s := e.sessionFor(peer, "eth0")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.runSessionTimers(ctx)
	clock.BlockUntil(1)

	// Advance well past the keepalive receive timeout on an already-open
	// session and confirm the timer sweep closes it.
	s.Recv(codec.Serialize(&codec.Open{Nonce: [codec.NonceSize]byte{5, 5, 5, 5}}))
	s.Recv(codec.Serialize(&codec.ACK{AckType: codec.PDUTypeOpen, ErrorType: codec.ErrorTypeNoError}))
	require.True(t, s.IsOpen())

	clock.Advance(testCfg().Session.KeepaliveReceiveTimeout + time.Second)

	require.Eventually(t, func() bool {
		return !s.IsOpen()
	}, time.Second, time.Millisecond)
}
