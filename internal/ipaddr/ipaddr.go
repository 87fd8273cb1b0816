// Package ipaddr provides the opaque-bytes IP address type used by
// encapsulation sub-encodings. The address family is inferred from length
// (4 octets => IPv4, 16 octets => IPv6), matching the wire encoding.
package ipaddr

import (
	"fmt"
	"net"
)

// Family identifies the address family of an Addr.
type Family uint8

const (
	FamilyV4 Family = 4
	FamilyV6 Family = 6
)

// Addr is an IPv4 or IPv6 address stored as its raw octets.
type Addr struct {
	bytes []byte
}

// FromNetIP builds an Addr from a net.IP, preferring a 4-byte form for
// IPv4-mapped addresses.
func FromNetIP(ip net.IP) (Addr, error) {
	if v4 := ip.To4(); v4 != nil {
		return Addr{bytes: append([]byte(nil), v4...)}, nil
	}
	if v16 := ip.To16(); v16 != nil {
		return Addr{bytes: append([]byte(nil), v16...)}, nil
	}
	return Addr{}, fmt.Errorf("ipaddr: not a valid IP: %v", ip)
}

// FromBytes wraps a 4- or 16-byte slice as an Addr.
func FromBytes(b []byte) (Addr, error) {
	switch len(b) {
	case 4, 16:
		return Addr{bytes: append([]byte(nil), b...)}, nil
	default:
		return Addr{}, fmt.Errorf("ipaddr: invalid length %d", len(b))
	}
}

// Bytes returns the raw octets (4 or 16 of them).
func (a Addr) Bytes() []byte { return a.bytes }

// Family reports the address family, inferred from length.
func (a Addr) Family() Family {
	if len(a.bytes) == 16 {
		return FamilyV6
	}
	return FamilyV4
}

// NetIP converts back to a net.IP for logging and interop.
func (a Addr) NetIP() net.IP { return net.IP(a.bytes) }

// String renders the address in standard dotted-quad or colon-hex form.
func (a Addr) String() string {
	if len(a.bytes) == 0 {
		return "<nil>"
	}
	return net.IP(a.bytes).String()
}
