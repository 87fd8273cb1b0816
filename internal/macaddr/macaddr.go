// Package macaddr provides the MAC address type shared by the codec,
// transport, and session layers.
package macaddr

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Size is the length in octets of an Ethernet MAC address.
const Size = 6

// Addr is a 6-octet Ethernet MAC address.
type Addr [Size]byte

// Broadcast is the destination address used for LSOE HELLO PDUs.
var Broadcast = Addr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// Parse accepts "xx:xx:xx:xx:xx:xx" or "xx-xx-xx-xx-xx-xx" hex notation.
func Parse(s string) (Addr, error) {
	var a Addr
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ':' || r == '-' })
	if len(parts) != Size {
		return a, fmt.Errorf("macaddr: invalid address %q", s)
	}
	for i, p := range parts {
		b, err := hex.DecodeString(p)
		if err != nil || len(b) != 1 {
			return a, fmt.Errorf("macaddr: invalid octet %q in %q", p, s)
		}
		a[i] = b[0]
	}
	return a, nil
}

// FromBytes copies a 6-byte slice into an Addr, erroring if the length is wrong.
func FromBytes(b []byte) (Addr, error) {
	var a Addr
	if len(b) != Size {
		return a, fmt.Errorf("macaddr: expected %d bytes, got %d", Size, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// String renders the address as colon-separated lowercase hex.
func (a Addr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

// IsBroadcast reports whether a is the all-ones broadcast address.
func (a Addr) IsBroadcast() bool {
	return a == Broadcast
}
