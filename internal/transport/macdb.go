package transport

import "time"

// macEntry records the interface a peer MAC address was last heard on and
// when, so a MAC that silently moves to a different interface can be
// detected and dropped rather than silently redirected.
type macEntry struct {
	ifName string
	seenAt time.Time
}

type macCache struct {
	entries map[[6]byte]macEntry
}

func newMACCache() *macCache {
	return &macCache{entries: make(map[[6]byte]macEntry)}
}

// Observe records that peer was seen on ifName at now. It reports false if
// peer was already known on a different interface (a move, which the
// caller should treat as a dropped frame rather than updating state).
func (c *macCache) Observe(peer [6]byte, ifName string, now time.Time) bool {
	e, known := c.entries[peer]
	if known && e.ifName != ifName {
		return false
	}
	c.entries[peer] = macEntry{ifName: ifName, seenAt: now}
	return true
}

// IfName returns the interface last associated with peer, if any.
func (c *macCache) IfName(peer [6]byte) (string, bool) {
	e, ok := c.entries[peer]
	return e.ifName, ok
}

// GC evicts entries not seen within timeout of now.
func (c *macCache) GC(now time.Time, timeout time.Duration) {
	cutoff := now.Add(-timeout)
	for peer, e := range c.entries {
		if e.seenAt.Before(cutoff) {
			delete(c.entries, peer)
		}
	}
}
