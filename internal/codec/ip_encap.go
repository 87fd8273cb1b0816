package codec

// IPv4Encap describes the IPv4 addressing present on the sender's link.
type IPv4Encap struct {
	Entries []IPEncapEntry
}

func (p *IPv4Encap) pduType() PDUType { return PDUTypeIPv4Encap }

func (p *IPv4Encap) marshalBody() []byte { return marshalIPEncapBody(p.Entries, 4) }

func parseIPv4Encap(body []byte) (*IPv4Encap, error) {
	entries, err := parseIPEncapBody(body, 4)
	if err != nil {
		return nil, err
	}
	return &IPv4Encap{Entries: entries}, nil
}

// IPv6Encap describes the IPv6 addressing present on the sender's link.
type IPv6Encap struct {
	Entries []IPEncapEntry
}

func (p *IPv6Encap) pduType() PDUType { return PDUTypeIPv6Encap }

func (p *IPv6Encap) marshalBody() []byte { return marshalIPEncapBody(p.Entries, 16) }

func parseIPv6Encap(body []byte) (*IPv6Encap, error) {
	entries, err := parseIPEncapBody(body, 16)
	if err != nil {
		return nil, err
	}
	return &IPv6Encap{Entries: entries}, nil
}

func marshalIPEncapBody(entries []IPEncapEntry, addrLen int) []byte {
	b := make([]byte, 2)
	putU16(b, uint16(len(entries)))
	for _, e := range entries {
		if err := checkAddrLen(e.Addr, addrLen); err != nil {
			panic(err) // caller contract: entries must match this PDU's family
		}
		b = append(b, marshalIPEntry(e)...)
	}
	return b
}

func parseIPEncapBody(body []byte, addrLen int) ([]IPEncapEntry, error) {
	if len(body) < 2 {
		return nil, newParseError(ReasonMalformed, "encap body too short for count")
	}
	count := int(getU16(body[0:2]))
	off := 2
	entries := make([]IPEncapEntry, 0, count)
	for i := 0; i < count; i++ {
		e, n, err := parseIPEntry(body[off:], addrLen)
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
