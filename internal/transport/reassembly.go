package transport

import (
	"sort"
	"time"
)

// pendingDatagram is one fragment waiting in a peer's reassembly buffer,
// annotated with its arrival time for GC and duplicate resolution.
type pendingDatagram struct {
	dgram     *Datagram
	arrivedAt time.Time
}

// reassemblyBuffer holds in-flight fragments for every peer MAC currently
// sending a multi-fragment PDU. It is not safe for concurrent use; callers
// serialize access (the transport's receive loop owns it).
type reassemblyBuffer struct {
	byPeer map[[6]byte][]pendingDatagram
}

func newReassemblyBuffer() *reassemblyBuffer {
	return &reassemblyBuffer{byPeer: make(map[[6]byte][]pendingDatagram)}
}

// Add records a newly-arrived fragment and, if it completes its PDU,
// returns the reassembled payload and true. Duplicate or superseded
// fragments are folded in by keeping the most recently arrived copy of
// each fragment number.
func (r *reassemblyBuffer) Add(peer [6]byte, d *Datagram, now time.Time) ([]byte, bool) {
	rq := append(r.byPeer[peer], pendingDatagram{dgram: d, arrivedAt: now})

	sort.SliceStable(rq, func(i, j int) bool {
		if rq[i].dgram.FragNumber() != rq[j].dgram.FragNumber() {
			return rq[i].dgram.FragNumber() < rq[j].dgram.FragNumber()
		}
		return rq[i].arrivedAt.After(rq[j].arrivedAt)
	})

	// Keep only the first (most recent) copy of each fragment number, and
	// require the sequence to be gap-free starting at 0.
	kept := rq[:0]
	for _, p := range rq {
		if len(kept) == 0 || kept[len(kept)-1].dgram.FragNumber() != p.dgram.FragNumber() {
			kept = append(kept, p)
		}
	}
	rq = kept

	if len(rq) == 0 || !rq[len(rq)-1].dgram.IsFinal() {
		r.byPeer[peer] = rq
		return nil, false
	}
	for i, p := range rq {
		if int(p.dgram.FragNumber()) != i || p.dgram.IsFinal() != (i == len(rq)-1) {
			r.byPeer[peer] = rq
			return nil, false
		}
	}

	delete(r.byPeer, peer)
	var payload []byte
	for _, p := range rq {
		payload = append(payload, p.dgram.Payload...)
	}
	return payload, true
}

// GC drops fragments older than threshold and any peer left with an empty
// queue, mirroring the periodic sweep the original implementation runs at
// half the configured reassembly timeout.
func (r *reassemblyBuffer) GC(now time.Time, timeout time.Duration) {
	cutoff := now.Add(-timeout)
	for peer, rq := range r.byPeer {
		kept := rq[:0]
		for _, p := range rq {
			if p.arrivedAt.After(cutoff) {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			delete(r.byPeer, peer)
		} else {
			r.byPeer[peer] = kept
		}
	}
}
