package codec

// Vendor carries an enterprise-specific opaque payload. Dispatch by
// enterprise number is handled above this layer (session/engine), which
// registers hooks keyed by EnterpriseNumber.
type Vendor struct {
	EnterpriseNumber uint32
	Opaque           []byte
}

func (v *Vendor) pduType() PDUType { return PDUTypeVendor }

func (v *Vendor) marshalBody() []byte {
	b := make([]byte, 4, 4+len(v.Opaque))
	putU32(b, v.EnterpriseNumber)
	return append(b, v.Opaque...)
}

func parseVendor(body []byte) (*Vendor, error) {
	if len(body) < 4 {
		return nil, newParseError(ReasonMalformed, "VENDOR body too short: %d bytes", len(body))
	}
	return &Vendor{
		EnterpriseNumber: getU32(body[0:4]),
		Opaque:           append([]byte(nil), body[4:]...),
	}, nil
}
