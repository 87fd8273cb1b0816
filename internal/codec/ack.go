package codec

import "fmt"

// ErrorType is the high nibble of an ACK PDU's error_bits field.
type ErrorType uint8

const (
	ErrorTypeNoError  ErrorType = 0
	ErrorTypeWarning  ErrorType = 1
	ErrorTypeRestart  ErrorType = 2
	ErrorTypeHopeless ErrorType = 3
)

func (t ErrorType) valid() bool { return t <= ErrorTypeHopeless }

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeNoError:
		return "NO_ERROR"
	case ErrorTypeWarning:
		return "WARNING"
	case ErrorTypeRestart:
		return "RESTART"
	case ErrorTypeHopeless:
		return "HOPELESS"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ErrorCode is the low 12 bits of an ACK PDU's error_bits field, meaningful
// only when ErrorType != NO_ERROR.
type ErrorCode uint16

const (
	ErrorCodeLinkAddressingConflict     ErrorCode = 1
	ErrorCodeAuthorizationFailureInOpen ErrorCode = 2
)

func (c ErrorCode) valid() bool {
	switch c {
	case ErrorCodeLinkAddressingConflict, ErrorCodeAuthorizationFailureInOpen:
		return true
	default:
		return false
	}
}

func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeLinkAddressingConflict:
		return "LINK_ADDRESSING_CONFLICT"
	case ErrorCodeAuthorizationFailureInOpen:
		return "AUTHORIZATION_FAILURE_IN_OPEN"
	default:
		return fmt.Sprintf("unknown(%d)", uint16(c))
	}
}

const (
	errorTypeMask  = 0xF000
	errorTypeShift = 12
	errorCodeMask  = 0x0FFF
)

// ACK carries the acknowledgement (and optional error signal) for one
// previously-sent ACKed PDU.
type ACK struct {
	AckType   PDUType
	ErrorType ErrorType
	ErrorCode ErrorCode
	Hint      uint16
}

func (a *ACK) pduType() PDUType { return PDUTypeACK }

func (a *ACK) marshalBody() []byte {
	bits := (uint16(a.ErrorType) << errorTypeShift) | (uint16(a.ErrorCode) & errorCodeMask)
	b := make([]byte, 5)
	b[0] = byte(a.AckType)
	putU16(b[1:3], bits)
	putU16(b[3:5], a.Hint)
	return b
}

func parseACK(body []byte) (*ACK, error) {
	if len(body) != 5 {
		return nil, newParseError(ReasonMalformed, "ACK body length %d, want 5", len(body))
	}
	ackType := PDUType(body[0])
	bits := getU16(body[1:3])
	hint := getU16(body[3:5])

	desc, ok := registry[ackType]
	if !ok {
		return nil, newParseError(ReasonUnknownACKType, "ack_type %d", ackType)
	}
	if !desc.acked {
		return nil, newParseError(ReasonACKOfUnackedType, "ack_type %d (%s)", ackType, desc.name)
	}

	et := ErrorType((bits & errorTypeMask) >> errorTypeShift)
	ec := ErrorCode(bits & errorCodeMask)
	if !et.valid() {
		return nil, newParseError(ReasonUnknownErrorType, "error_type %d", et)
	}
	if et == ErrorTypeNoError {
		if ec != 0 || hint != 0 {
			return nil, newParseError(ReasonBadNoErrorFields, "code=%d hint=%d", ec, hint)
		}
	} else if !ec.valid() {
		return nil, newParseError(ReasonUnknownErrorCode, "error_code %d", ec)
	}

	return &ACK{AckType: ackType, ErrorType: et, ErrorCode: ec, Hint: hint}, nil
}
