// Package transport implements the LSOE Ethernet transport layer:
// fragmentation, reassembly, the S-box checksum, and the PF_PACKET socket
// LSOE runs directly over (no IP underneath it).
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Message is one fully-reassembled PDU delivered to (or re-queued for) the
// session layer, together with the link-local context it arrived on.
type Message struct {
	PDU     []byte
	PeerMAC [6]byte
	IfName  string
}

// Config holds the GC timings the transport layer needs; the remaining
// protocol timers live in the session layer.
type Config struct {
	ReassemblyTimeout  time.Duration
	MACAddressCacheTTL time.Duration

	// DumpRawPDUs hex-dumps every fully-reassembled received PDU and every
	// PDU passed to Write at debug level, mirroring the "-dd" CLI verbosity level (one notch above plain debug
	// logging).
	DumpRawPDUs bool
}

// Transport owns the raw socket, the per-peer fragment reassembly buffers,
// and the MAC-address-to-interface cache. Read/Write/Unread/Close are the
// only methods the session/engine layers need; everything else is internal
// machinery run by Run's background loop.
type Transport struct {
	sock   Socket
	clock  clockwork.Clock
	cfg    Config
	log    *slog.Logger
	readCh chan Message
}

// New constructs a Transport around an already-bound Socket.
func New(sock Socket, clock clockwork.Clock, cfg Config, log *slog.Logger) *Transport {
	if log == nil {
		log = slog.Default()
	}
	return &Transport{
		sock:   sock,
		clock:  clock,
		cfg:    cfg,
		log:    log,
		readCh: make(chan Message, 64),
	}
}

// Run drives the receive loop and periodic GC sweep until ctx is canceled
// or the socket fails fatally. It owns the reassembly buffer and MAC cache,
// so it must run on a single goroutine.
func (t *Transport) Run(ctx context.Context) error {
	reasm := newReassemblyBuffer()
	macs := newMACCache()

	gcInterval := t.cfg.ReassemblyTimeout / 2
	if gcInterval <= 0 {
		gcInterval = time.Second
	}
	ticker := t.clock.NewTicker(gcInterval)
	defer ticker.Stop()

	frameCh := make(chan Frame)
	errCh := make(chan error, 1)
	go func() {
		for {
			f, err := t.sock.RecvFrame()
			if err != nil {
				errCh <- err
				return
			}
			select {
			case frameCh <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-errCh:
			if errors.Is(err, ErrSocketClosed) {
				return nil
			}
			return fmt.Errorf("transport: receive loop: %w", err)

		case <-ticker.Chan():
			now := t.clock.Now()
			reasm.GC(now, t.cfg.ReassemblyTimeout)
			macs.GC(now, t.cfg.MACAddressCacheTTL)

		case f := <-frameCh:
			t.handleFrame(f, reasm, macs)
		}
	}
}

func (t *Transport) handleFrame(f Frame, reasm *reassemblyBuffer, macs *macCache) {
	if f.Outgoing {
		return
	}
	if len(f.Payload) < headerSize {
		t.log.Debug("transport: frame too short, dropping", "len", len(f.Payload))
		return
	}
	now := t.clock.Now()
	if !macs.Observe(f.PeerMAC, f.IfName, now) {
		prev, _ := macs.IfName(f.PeerMAC)
		t.log.Warn("transport: peer MAC moved interfaces, dropping frame",
			"peer", f.PeerMAC, "from", prev, "to", f.IfName)
		return
	}

	d, err := parseDatagram(f.Payload)
	if err != nil {
		t.log.Debug("transport: dropping malformed datagram", "error", err)
		return
	}

	payload, complete := reasm.Add(f.PeerMAC, d, now)
	if !complete {
		return
	}

	if t.cfg.DumpRawPDUs {
		t.logRawPDU("recv", payload, f.PeerMAC, f.IfName)
	}

	msg := Message{PDU: payload, PeerMAC: f.PeerMAC, IfName: f.IfName}
	select {
	case t.readCh <- msg:
	default:
		t.log.Warn("transport: read queue full, dropping reassembled PDU", "peer", f.PeerMAC)
	}
}

// Read blocks until a fully-reassembled PDU is available or ctx is done.
func (t *Transport) Read(ctx context.Context) (Message, error) {
	select {
	case msg := <-t.readCh:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Unread puts msg back at the tail of the read queue, letting the session
// layer defer handling of a PDU it received before it was ready for it
// (e.g. during a restart-triggered session recreate).
func (t *Transport) Unread(msg Message) {
	select {
	case t.readCh <- msg:
	default:
		t.log.Warn("transport: read queue full, dropping unread PDU", "peer", msg.PeerMAC)
	}
}

// Write serializes pdu, fragments it, and sends every fragment to peer on
// ifName.
func (t *Transport) Write(pdu []byte, peer [6]byte, ifName string) error {
	if t.cfg.DumpRawPDUs {
		t.logRawPDU("send", pdu, peer, ifName)
	}
	for _, d := range SplitMessage(pdu) {
		if err := t.sock.SendFrame(d.Marshal(), peer, ifName); err != nil {
			return fmt.Errorf("transport: send fragment %d: %w", d.FragNumber(), err)
		}
	}
	return nil
}

// Close releases the underlying socket.
func (t *Transport) Close() error {
	return t.sock.Close()
}
