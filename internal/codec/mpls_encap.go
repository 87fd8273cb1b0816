package codec

// MPLSv4Encap describes MPLS-over-IPv4 label bindings on the sender's link.
// Only ever emitted empty today (Non-goal: MPLS label set construction).
type MPLSv4Encap struct {
	Entries []MPLSEncapEntry
}

func (p *MPLSv4Encap) pduType() PDUType { return PDUTypeMPLSv4Encap }

func (p *MPLSv4Encap) marshalBody() []byte { return marshalMPLSEncapBody(p.Entries, 4) }

func parseMPLSv4Encap(body []byte) (*MPLSv4Encap, error) {
	entries, err := parseMPLSEncapBody(body, 4)
	if err != nil {
		return nil, err
	}
	return &MPLSv4Encap{Entries: entries}, nil
}

// MPLSv6Encap describes MPLS-over-IPv6 label bindings on the sender's link.
type MPLSv6Encap struct {
	Entries []MPLSEncapEntry
}

func (p *MPLSv6Encap) pduType() PDUType { return PDUTypeMPLSv6Encap }

func (p *MPLSv6Encap) marshalBody() []byte { return marshalMPLSEncapBody(p.Entries, 16) }

func parseMPLSv6Encap(body []byte) (*MPLSv6Encap, error) {
	entries, err := parseMPLSEncapBody(body, 16)
	if err != nil {
		return nil, err
	}
	return &MPLSv6Encap{Entries: entries}, nil
}

func marshalMPLSEncapBody(entries []MPLSEncapEntry, addrLen int) []byte {
	b := make([]byte, 2)
	putU16(b, uint16(len(entries)))
	for _, e := range entries {
		if err := checkAddrLen(e.Addr, addrLen); err != nil {
			panic(err)
		}
		b = append(b, marshalMPLSEntry(e)...)
	}
	return b
}

func parseMPLSEncapBody(body []byte, addrLen int) ([]MPLSEncapEntry, error) {
	if len(body) < 2 {
		return nil, newParseError(ReasonMalformed, "encap body too short for count")
	}
	count := int(getU16(body[0:2]))
	off := 2
	entries := make([]MPLSEncapEntry, 0, count)
	for i := 0; i < count; i++ {
		e, n, err := parseMPLSEntry(body[off:], addrLen)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
		off += n
	}
	if off != len(body) {
		return nil, newParseError(ReasonMalformed, "encap body has %d trailing bytes", len(body)-off)
	}
	return entries, nil
}
