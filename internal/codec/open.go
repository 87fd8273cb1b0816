package codec

// LocalIDSize is the fixed width of the OPEN PDU's local_id field.
const LocalIDSize = 10

// NonceSize is the fixed width of the OPEN PDU's nonce field.
const NonceSize = 4

// Open begins (or re-begins, after a peer restart) the bidirectional
// handshake that brings a session to Established state. There is no
// authentication-data field: the wire auth_len is always serialized as 0,
// and parsing rejects a non-zero auth_len (LSOE authentication is out of
// scope).
type Open struct {
	Nonce      [NonceSize]byte
	LocalID    [LocalIDSize]byte
	Attributes []byte
}

func (o *Open) pduType() PDUType { return PDUTypeOpen }

func (o *Open) marshalBody() []byte {
	b := make([]byte, 0, NonceSize+LocalIDSize+1+len(o.Attributes)+2)
	b = append(b, o.Nonce[:]...)
	b = append(b, o.LocalID[:]...)
	b = append(b, byte(len(o.Attributes)))
	b = append(b, o.Attributes...)
	authLen := make([]byte, 2)
	putU16(authLen, 0)
	b = append(b, authLen...)
	return b
}

func parseOpen(body []byte) (*Open, error) {
	const fixed = NonceSize + LocalIDSize + 1
	if len(body) < fixed {
		return nil, newParseError(ReasonMalformed, "OPEN body too short: %d bytes", len(body))
	}
	o := &Open{}
	copy(o.Nonce[:], body[0:NonceSize])
	copy(o.LocalID[:], body[NonceSize:NonceSize+LocalIDSize])
	attrLen := int(body[NonceSize+LocalIDSize])
	off := fixed
	if len(body) < off+attrLen+2 {
		return nil, newParseError(ReasonMalformed, "OPEN body truncated: attr_len %d", attrLen)
	}
	o.Attributes = append([]byte(nil), body[off:off+attrLen]...)
	off += attrLen
	authLen := getU16(body[off : off+2])
	if authLen != 0 {
		return nil, newParseError(ReasonNonZeroAuth, "auth_len %d", authLen)
	}
	if off+2 != len(body) {
		return nil, newParseError(ReasonMalformed, "OPEN body has trailing bytes")
	}
	return o, nil
}
