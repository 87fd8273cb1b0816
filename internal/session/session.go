// Package session implements the per-neighbor LSOE session state machine:
// the OPEN handshake, keepalive liveness tracking, reliable delivery of
// ACKed PDUs with retransmission/backoff, and dispatch of received PDUs.
package session

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"

	"github.com/arrcus-clone/lsoe/internal/codec"
	"github.com/arrcus-clone/lsoe/internal/macaddr"
	"github.com/arrcus-clone/lsoe/internal/northbound"
)

// maxRetransmitInterval caps the exponential backoff growth. It's well
// above anything RetransmitMaxDrop attempts will ever reach; the drop
// counter, not this ceiling, is what bounds how long a session keeps
// retrying.
const maxRetransmitInterval = 24 * time.Hour

// Config holds the per-session protocol timers, mirroring the "[lsoe]"
// config keys of the original implementation.
type Config struct {
	LocalID                      [codec.LocalIDSize]byte
	RetransmitInitialInterval    time.Duration
	RetransmitExponentialBackoff bool
	RetransmitMaxDrop            int
	KeepaliveSendInterval        time.Duration
	KeepaliveReceiveTimeout      time.Duration
}

// Wire is the subset of the transport layer a Session needs: sending a
// serialized PDU to this session's peer, and pushing a PDU back onto the
// receive queue (used when a peer restart forces a recreate).
type Wire interface {
	Write(pdu []byte, peer macaddr.Addr, ifName string) error
	Unread(pdu []byte, peer macaddr.Addr, ifName string)
}

// pendingSend tracks one ACKed PDU awaiting acknowledgement.
type pendingSend struct {
	pdu       codec.PDU
	backoff   *backoff.ExponentialBackOff
	dropsLeft int
	deadline  time.Time
}

// newBackOff builds the exponential backoff generator for one pending
// ACKed PDU, following the teacher's own
// backoff.NewExponentialBackOff(backoff.WithInitialInterval(...), ...)
// construction in client/doublezerod/internal/probing/default.go. A
// randomization factor of 0 keeps retransmit timing deterministic (and
// testable against a fake clock); when exponential backoff is disabled in
// config, a multiplier of 1 makes NextBackOff return a constant interval
// instead.
func newBackOff(cfg Config, clock clockwork.Clock) *backoff.ExponentialBackOff {
	multiplier := 1.0
	if cfg.RetransmitExponentialBackoff {
		multiplier = 2.0
	}
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(cfg.RetransmitInitialInterval),
		backoff.WithMultiplier(multiplier),
		backoff.WithMaxInterval(maxRetransmitInterval),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
		backoff.WithClockProvider(clock),
	)
}

// VendorHook handles a VENDOR PDU for one enterprise number.
type VendorHook func(s *Session, v *codec.Vendor)

// Session is the state machine for one neighbor, keyed by its MAC address.
type Session struct {
	PeerMAC macaddr.Addr
	IfName  string

	cfg    Config
	wire   Wire
	nb     northbound.Consumer
	clock  clockwork.Clock
	log    *slog.Logger
	vendor map[uint32]VendorHook

	ourOpenAcked     bool
	peerOpenNonce    *[codec.NonceSize]byte
	sawLastKeepalive  time.Time
	sendNextKeepalive time.Time

	rxq      map[codec.PDUType]*pendingSend
	deferred map[codec.PDUType]codec.PDU

	// onClose is invoked once, when this session tears itself down, so the
	// owning session table can forget it.
	onClose func(peer macaddr.Addr)
}

// New constructs a fresh, unopened Session for peer on ifName.
func New(peer macaddr.Addr, ifName string, cfg Config, wire Wire, nb northbound.Consumer, clock clockwork.Clock, log *slog.Logger, vendor map[uint32]VendorHook, onClose func(macaddr.Addr)) *Session {
	if log == nil {
		log = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if vendor == nil {
		vendor = map[uint32]VendorHook{}
	}
	s := &Session{
		PeerMAC:  peer,
		IfName:   ifName,
		cfg:      cfg,
		wire:     wire,
		nb:       nb,
		clock:    clock,
		log:      log.With("peer", peer, "interface", ifName),
		vendor:   vendor,
		rxq:      make(map[codec.PDUType]*pendingSend),
		deferred: make(map[codec.PDUType]codec.PDU),
		onClose:  onClose,
	}
	s.log.Debug("session created")
	return s
}

// IsOpen reports whether this session has completed the OPEN handshake in
// both directions: our OPEN has been ACKed, and we've accepted one of the
// peer's.
func (s *Session) IsOpen() bool {
	return s.ourOpenAcked && s.peerOpenNonce != nil
}

// Close tears the session down: it reports a clear-all to the northbound
// consumer if the session had reached Open, then notifies the owner so the
// session table can forget it.
func (s *Session) Close() {
	s.log.Debug("session closing")
	if s.IsOpen() {
		s.nb.ClearAll(s.PeerMAC)
	}
	s.ourOpenAcked = false
	s.peerOpenNonce = nil
	if s.onClose != nil {
		s.onClose(s.PeerMAC)
	}
}

// Recv parses and dispatches one PDU received from this session's peer.
func (s *Session) Recv(raw []byte) {
	pdu, err := codec.Parse(raw)
	if err != nil {
		reason := ""
		if pe, ok := err.(*codec.ParseError); ok {
			reason = pe.Reason.String()
		}
		s.log.Warn("couldn't parse PDU", "reason", reason, "error", err)
		return
	}
	s.log.Debug("received PDU", "pdu_type", codec.Type(pdu))
	switch p := pdu.(type) {
	case *codec.Hello:
		s.handleHello(p)
	case *codec.Open:
		s.handleOpen(p)
	case *codec.Keepalive:
		s.handleKeepalive(p)
	case *codec.ACK:
		s.handleACK(p)
	case *codec.IPv4Encap:
		s.handleEncapsulation(p)
	case *codec.IPv6Encap:
		s.handleEncapsulation(p)
	case *codec.MPLSv4Encap:
		s.handleEncapsulation(p)
	case *codec.MPLSv6Encap:
		s.handleEncapsulation(p)
	case *codec.Vendor:
		s.handleVendor(p)
	default:
		s.log.Warn("no handler for PDU type", "pdu_type", codec.Type(pdu))
	}
}

func (s *Session) handleHello(*codec.Hello) {
	s.sendOpenMaybe()
}

func (s *Session) handleOpen(p *codec.Open) {
	if s.peerOpenNonce != nil && *s.peerOpenNonce == p.Nonce {
		s.log.Info("discarding duplicate OPEN")
		return
	}
	if s.peerOpenNonce != nil {
		// Nonce changed under us: the peer restarted. Push the OPEN back
		// onto the queue and recreate the session from scratch so the new
		// session sees it as the first OPEN.
		s.wire.Unread(codec.Serialize(p), s.PeerMAC, s.IfName)
		s.Close()
		return
	}
	nonce := p.Nonce
	s.peerOpenNonce = &nonce
	s.sendACK(codec.PDUTypeOpen, codec.ErrorTypeNoError, 0, 0)
	s.sendOpenMaybe()
	s.sawKeepalive()
}

func (s *Session) handleKeepalive(*codec.Keepalive) {
	if s.IsOpen() {
		s.sawKeepalive()
	} else {
		s.sendOpenMaybe()
	}
}

func (s *Session) handleACK(p *codec.ACK) {
	if _, ok := s.rxq[p.AckType]; !ok {
		s.log.Info("received ACK with no relevant outgoing PDU", "ack_type", p.AckType)
		return
	}
	s.log.Debug("received ACK", "ack_type", p.AckType)
	delete(s.rxq, p.AckType)
	next, hadDeferred := s.deferred[p.AckType]
	delete(s.deferred, p.AckType)

	if p.AckType == codec.PDUTypeOpen {
		s.ourOpenAcked = true
		s.sawKeepalive()
		return
	}
	if hadDeferred {
		s.sendPDU(next)
	}
}

func (s *Session) handleEncapsulation(pdu codec.PDU) {
	if !s.IsOpen() {
		s.log.Info("received encapsulation but session not open", "pdu_type", codec.Type(pdu))
		return
	}
	s.sendACK(codec.Type(pdu), codec.ErrorTypeNoError, 0, 0)
	s.nb.Report(s.PeerMAC, s.IfName, pdu)
}

func (s *Session) handleVendor(p *codec.Vendor) {
	if !s.IsOpen() {
		s.log.Info("received VENDOR but session not open")
		return
	}
	s.sendACK(codec.PDUTypeVendor, codec.ErrorTypeNoError, 0, 0)
	if hook, ok := s.vendor[p.EnterpriseNumber]; ok {
		hook(s, p)
	}
}

func (s *Session) sawKeepalive() {
	if s.IsOpen() {
		s.sawLastKeepalive = s.clock.Now()
	}
}

// sendOpenMaybe sends our OPEN PDU if we haven't already sent one awaiting
// ACK and our OPEN hasn't been ACKed yet.
func (s *Session) sendOpenMaybe() {
	if s.ourOpenAcked {
		s.log.Debug("not sending OPEN: already ACKed")
		return
	}
	if _, pending := s.rxq[codec.PDUTypeOpen]; pending {
		s.log.Debug("not sending OPEN: already in flight")
		return
	}
	nonce, err := randomNonce()
	if err != nil {
		s.log.Error("failed to generate OPEN nonce", "error", err)
		return
	}
	open := &codec.Open{Nonce: nonce, LocalID: s.cfg.LocalID}
	s.sendPDU(open)
}

func randomNonce() ([codec.NonceSize]byte, error) {
	var n [codec.NonceSize]byte
	_, err := rand.Read(n[:])
	return n, err
}

func (s *Session) sendACK(ackType codec.PDUType, et codec.ErrorType, ec codec.ErrorCode, hint uint16) {
	s.sendPDU(&codec.ACK{AckType: ackType, ErrorType: et, ErrorCode: ec, Hint: hint})
}

// sendPDU transmits pdu, deferring it if an ACKed PDU of the same type is
// already in flight, and arming retransmission bookkeeping otherwise. OPEN
// is never deferred: a new OPEN is sent and replaces the pending one, so
// callers (sendOpenMaybe) check for one in flight first.
func (s *Session) sendPDU(pdu codec.PDU) {
	typ := codec.Type(pdu)
	acked := codec.IsAcked(typ)

	if typ != codec.PDUTypeOpen && acked {
		if _, inFlight := s.rxq[typ]; inFlight {
			s.log.Debug("deferring PDU", "pdu_type", typ)
			s.deferred[typ] = pdu
			return
		}
	}

	s.log.Debug("sending PDU", "pdu_type", typ)
	if err := s.wire.Write(codec.Serialize(pdu), s.PeerMAC, s.IfName); err != nil {
		s.log.Warn("failed to send PDU", "pdu_type", typ, "error", err)
		return
	}

	if acked {
		bo := newBackOff(s.cfg, s.clock)
		s.rxq[typ] = &pendingSend{
			pdu:       pdu,
			backoff:   bo,
			dropsLeft: s.cfg.RetransmitMaxDrop,
			deadline:  s.clock.Now().Add(bo.NextBackOff()),
		}
	}
}

// CheckTimeouts runs one sweep of this session's timers: keepalive
// liveness, ACK retransmission/backoff/give-up, and the next keepalive
// send. now is injected so callers (and tests) control time explicitly. It
// returns true if the session closed itself during this sweep.
func (s *Session) CheckTimeouts(now time.Time) (closed bool) {
	if s.IsOpen() && s.cfg.KeepaliveReceiveTimeout > 0 && now.After(s.sawLastKeepalive.Add(s.cfg.KeepaliveReceiveTimeout)) {
		s.log.Info("too long since last keepalive, closing session")
		s.Close()
		return true
	}

	for typ, p := range s.rxq {
		if now.Before(p.deadline) {
			continue
		}
		p.dropsLeft--
		if p.dropsLeft <= 0 {
			s.log.Info("too many retransmit drops, closing session", "pdu_type", typ)
			s.Close()
			return true
		}
		p.deadline = now.Add(p.backoff.NextBackOff())
		s.log.Debug("retransmitting PDU", "pdu_type", typ, "drops_left", p.dropsLeft)
		if err := s.wire.Write(codec.Serialize(p.pdu), s.PeerMAC, s.IfName); err != nil {
			s.log.Warn("retransmit failed", "pdu_type", typ, "error", err)
		}
	}

	if s.IsOpen() && (s.sendNextKeepalive.IsZero() || !now.Before(s.sendNextKeepalive)) {
		s.sendNextKeepalive = now.Add(s.cfg.KeepaliveSendInterval)
		s.sendPDU(&codec.Keepalive{})
	}
	return false
}

// PendingACKCount returns the number of ACKed PDUs this session currently
// has in flight awaiting acknowledgement, for queue-depth metrics.
func (s *Session) PendingACKCount() int {
	return len(s.rxq)
}

// SendEncapsulations pushes a fresh snapshot of local link state to the
// peer, as is done once when a session first reaches Open and again
// whenever interface state changes.
// A nil pointer for any one of the four means "this family didn't change,
// don't re-send it" (see runInterfaceTracker); the full-snapshot callers
// always pass all four.
func (s *Session) SendEncapsulations(v4 *codec.IPv4Encap, v6 *codec.IPv6Encap, mplsv4 *codec.MPLSv4Encap, mplsv6 *codec.MPLSv6Encap) {
	if v4 != nil {
		s.sendPDU(v4)
	}
	if v6 != nil {
		s.sendPDU(v6)
	}
	if mplsv4 != nil {
		s.sendPDU(mplsv4)
	}
	if mplsv6 != nil {
		s.sendPDU(mplsv6)
	}
}

func (s *Session) String() string {
	return fmt.Sprintf("<Session %s %s %s>", openMark(s.IsOpen()), s.IfName, s.PeerMAC)
}

func openMark(open bool) string {
	if open {
		return "+"
	}
	return "-"
}
