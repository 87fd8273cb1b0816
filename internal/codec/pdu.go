// Package codec implements the LSOE wire codec: the outer PDU framing, the
// nine PDU bodies, and the IP/MPLS encapsulation sub-encodings. All
// multi-octet integers are network byte order. Parse is total over its
// error type: every rejection reason is a *ParseError, never a panic.
package codec

import "encoding/binary"

// PDUType is the one-octet tag in a PDU's outer header.
//
// Two source revisions of the original implementation disagree on these
// numeric values (ACK=3 vs ACK=4, and a corresponding shift for the
// encapsulation types). This codec adopts the later revision.
type PDUType uint8

const (
	PDUTypeHello       PDUType = 0
	PDUTypeOpen        PDUType = 1
	PDUTypeKeepalive   PDUType = 2
	PDUTypeACK         PDUType = 4
	PDUTypeIPv4Encap   PDUType = 5
	PDUTypeIPv6Encap   PDUType = 6
	PDUTypeMPLSv4Encap PDUType = 7
	PDUTypeMPLSv6Encap PDUType = 8
	PDUTypeVendor      PDUType = 255
)

func (t PDUType) String() string {
	if d, ok := registry[t]; ok {
		return d.name
	}
	return "UNKNOWN"
}

// outerHeaderSize is the size in bytes of the "!BH" {type, length} header.
const outerHeaderSize = 3

// PDU is the common interface implemented by all nine message types.
type PDU interface {
	pduType() PDUType
	marshalBody() []byte
}

// Type returns the wire tag for any parsed or constructed PDU.
func Type(p PDU) PDUType { return p.pduType() }

// IsAcked reports whether PDUs of this type require an ACK from the peer.
// OPEN, the four encapsulation PDUs, and VENDOR are ACKed; HELLO,
// KEEPALIVE, and ACK itself are not.
func IsAcked(t PDUType) bool {
	d, ok := registry[t]
	return ok && d.acked
}

type pduDescriptor struct {
	name  string
	acked bool
	parse func(body []byte) (PDU, error)
}

// registry is the tag -> descriptor table, filled once from a map literal
// at package init: the Go-native analogue of the original implementation's
// @register_acked_pdu / @register_unacked_pdu class decorators. It is set in
// init because parseACK itself consults the table.
var registry map[PDUType]pduDescriptor

func init() {
	registry = map[PDUType]pduDescriptor{
		PDUTypeHello: {name: "HELLO", acked: false, parse: func(b []byte) (PDU, error) {
			return parseHello(b)
		}},
		PDUTypeOpen: {name: "OPEN", acked: true, parse: func(b []byte) (PDU, error) {
			return parseOpen(b)
		}},
		PDUTypeKeepalive: {name: "KEEPALIVE", acked: false, parse: func(b []byte) (PDU, error) {
			return parseKeepalive(b)
		}},
		PDUTypeACK: {name: "ACK", acked: false, parse: func(b []byte) (PDU, error) {
			return parseACK(b)
		}},
		PDUTypeIPv4Encap: {name: "IPv4-ENCAP", acked: true, parse: func(b []byte) (PDU, error) {
			return parseIPv4Encap(b)
		}},
		PDUTypeIPv6Encap: {name: "IPv6-ENCAP", acked: true, parse: func(b []byte) (PDU, error) {
			return parseIPv6Encap(b)
		}},
		PDUTypeMPLSv4Encap: {name: "MPLS-IPv4-ENCAP", acked: true, parse: func(b []byte) (PDU, error) {
			return parseMPLSv4Encap(b)
		}},
		PDUTypeMPLSv6Encap: {name: "MPLS-IPv6-ENCAP", acked: true, parse: func(b []byte) (PDU, error) {
			return parseMPLSv6Encap(b)
		}},
		PDUTypeVendor: {name: "VENDOR", acked: true, parse: func(b []byte) (PDU, error) {
			return parseVendor(b)
		}},
	}
}

// Parse decodes one full PDU (outer header + body) from the concatenation
// of all of its fragment payloads.
func Parse(b []byte) (PDU, error) {
	if len(b) < outerHeaderSize {
		return nil, newParseError(ReasonShort, "have %d bytes, need at least %d", len(b), outerHeaderSize)
	}
	typ := PDUType(b[0])
	length := getU16(b[1:3])
	if int(length) != len(b) {
		return nil, newParseError(ReasonLengthMismatch, "header says %d, got %d", length, len(b))
	}
	desc, ok := registry[typ]
	if !ok {
		return nil, newParseError(ReasonUnknownType, "type %d", typ)
	}
	return desc.parse(b[outerHeaderSize:])
}

// PeekType reads just the outer header's type tag, without validating or
// parsing the body. It's used for metrics labeling before a PDU is handed
// to its session.
func PeekType(b []byte) (PDUType, error) {
	if len(b) < outerHeaderSize {
		return 0, newParseError(ReasonShort, "have %d bytes, need at least %d", len(b), outerHeaderSize)
	}
	return PDUType(b[0]), nil
}

// Serialize is a total function: it encodes a PDU's body and wraps it in
// the outer {type, length} header. It round-trips with Parse.
func Serialize(p PDU) []byte {
	body := p.marshalBody()
	out := make([]byte, outerHeaderSize+len(body))
	out[0] = byte(p.pduType())
	putU16(out[1:3], uint16(outerHeaderSize+len(body)))
	copy(out[outerHeaderSize:], body)
	return out
}

func putU16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func getU16(b []byte) uint16    { return binary.BigEndian.Uint16(b) }
func putU32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func getU32(b []byte) uint32    { return binary.BigEndian.Uint32(b) }
