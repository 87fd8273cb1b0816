package codec

import "github.com/arrcus-clone/lsoe/internal/macaddr"

// Hello announces the sender's MAC address on a given interface. Sent to
// the broadcast address and never ACKed.
type Hello struct {
	MyMACAddr macaddr.Addr
}

func (h *Hello) pduType() PDUType { return PDUTypeHello }

func (h *Hello) marshalBody() []byte {
	b := make([]byte, macaddr.Size)
	copy(b, h.MyMACAddr[:])
	return b
}

func parseHello(body []byte) (*Hello, error) {
	if len(body) != macaddr.Size {
		return nil, newParseError(ReasonMalformed, "HELLO body length %d, want %d", len(body), macaddr.Size)
	}
	a, err := macaddr.FromBytes(body)
	if err != nil {
		return nil, newParseError(ReasonMalformed, "%v", err)
	}
	return &Hello{MyMACAddr: a}, nil
}
