package codec

import "fmt"

const (
	// FlagPrimary marks an encapsulation entry as the link's primary address.
	// Always false today (spec Open Question: primary flag) — the wire bit
	// is reserved for future configuration.
	FlagPrimary = 0x80
	// FlagLoopback marks an entry as belonging to a loopback interface.
	FlagLoopback = 0x40
)

// IPEncapEntry is one (address, prefix length) pair advertised for IPv4 or
// IPv6, as carried by the two IP encapsulation PDUs.
type IPEncapEntry struct {
	Primary   bool
	Loopback  bool
	Addr      []byte // 4 octets for IPv4, 16 for IPv6
	PrefixLen uint8
}

func (e IPEncapEntry) flags() byte {
	var f byte
	if e.Primary {
		f |= FlagPrimary
	}
	if e.Loopback {
		f |= FlagLoopback
	}
	return f
}

func marshalIPEntry(e IPEncapEntry) []byte {
	b := make([]byte, 1+len(e.Addr)+1)
	b[0] = e.flags()
	copy(b[1:], e.Addr)
	b[len(b)-1] = e.PrefixLen
	return b
}

func parseIPEntry(b []byte, addrLen int) (IPEncapEntry, int, error) {
	want := 1 + addrLen + 1
	if len(b) < want {
		return IPEncapEntry{}, 0, newParseError(ReasonMalformed, "IP encap entry too short: %d < %d", len(b), want)
	}
	flags := b[0]
	addr := append([]byte(nil), b[1:1+addrLen]...)
	prefixLen := b[1+addrLen]
	return IPEncapEntry{
		Primary:   flags&FlagPrimary != 0,
		Loopback:  flags&FlagLoopback != 0,
		Addr:      addr,
		PrefixLen: prefixLen,
	}, want, nil
}

// Label is an opaque 3-octet MPLS label, per the original implementation's
// treatment of labels as opaque strings (no label-stack construction here:
// MPLS label set construction is out of scope).
type Label [3]byte

// MPLSEncapEntry is one MPLS-over-IP encapsulation entry: a label stack
// plus the underlying IP address and prefix length.
type MPLSEncapEntry struct {
	Primary   bool
	Loopback  bool
	Labels    []Label
	Addr      []byte // 4 octets for IPv4, 16 for IPv6
	PrefixLen uint8
}

func (e MPLSEncapEntry) flags() byte {
	var f byte
	if e.Primary {
		f |= FlagPrimary
	}
	if e.Loopback {
		f |= FlagLoopback
	}
	return f
}

func marshalMPLSEntry(e MPLSEncapEntry) []byte {
	b := make([]byte, 0, 2+3*len(e.Labels)+len(e.Addr)+1)
	b = append(b, e.flags(), byte(len(e.Labels)))
	for _, l := range e.Labels {
		b = append(b, l[:]...)
	}
	b = append(b, e.Addr...)
	b = append(b, e.PrefixLen)
	return b
}

func parseMPLSEntry(b []byte, addrLen int) (MPLSEncapEntry, int, error) {
	if len(b) < 2 {
		return MPLSEncapEntry{}, 0, newParseError(ReasonMalformed, "MPLS encap entry too short")
	}
	flags := b[0]
	labelCount := int(b[1])
	off := 2
	want := off + 3*labelCount + addrLen + 1
	if len(b) < want {
		return MPLSEncapEntry{}, 0, newParseError(ReasonMalformed, "MPLS encap entry too short: %d < %d", len(b), want)
	}
	labels := make([]Label, labelCount)
	for i := 0; i < labelCount; i++ {
		copy(labels[i][:], b[off:off+3])
		off += 3
	}
	addr := append([]byte(nil), b[off:off+addrLen]...)
	off += addrLen
	prefixLen := b[off]
	off++
	return MPLSEncapEntry{
		Primary:   flags&FlagPrimary != 0,
		Loopback:  flags&FlagLoopback != 0,
		Labels:    labels,
		Addr:      addr,
		PrefixLen: prefixLen,
	}, off, nil
}

func checkAddrLen(addr []byte, want int) error {
	if len(addr) != want {
		return fmt.Errorf("codec: address length %d, want %d", len(addr), want)
	}
	return nil
}
