// Package northbound defines the interface LSOE sessions use to hand link
// state to whatever consumes it next (an RFC 7752 BGP-LS speaker, in a full
// deployment). No such consumer exists here; Logger is a stub that records
// what would have been reported.
package northbound

import (
	"log/slog"

	"github.com/arrcus-clone/lsoe/internal/codec"
	"github.com/arrcus-clone/lsoe/internal/macaddr"
)

// Consumer receives per-neighbor link-state updates and a clear-all signal
// when a neighbor's session closes.
type Consumer interface {
	// Report records one encapsulation or vendor PDU received from peer.
	Report(peer macaddr.Addr, ifName string, pdu codec.PDU)
	// ClearAll withdraws everything previously reported for peer, because
	// its session has closed.
	ClearAll(peer macaddr.Addr)
}

// Logger is a Consumer that only logs: the stand-in used until a real
// northbound distribution protocol is wired up.
type Logger struct {
	log *slog.Logger
}

// NewLogger constructs a logging-only Consumer.
func NewLogger(log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{log: log}
}

func (l *Logger) Report(peer macaddr.Addr, ifName string, pdu codec.PDU) {
	l.log.Info("northbound: link-state update",
		"peer", peer, "interface", ifName, "pdu_type", codec.Type(pdu))
}

func (l *Logger) ClearAll(peer macaddr.Addr) {
	l.log.Info("northbound: clearing all link state", "peer", peer)
}
