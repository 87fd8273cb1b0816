package codec

import "fmt"

// ParseErrorReason classifies why Parse rejected a PDU, so callers can log
// structured fields instead of matching error strings.
type ParseErrorReason uint8

const (
	ReasonLengthMismatch ParseErrorReason = iota
	ReasonUnknownType
	ReasonNonZeroAuth
	ReasonUnknownACKType
	ReasonACKOfUnackedType
	ReasonUnknownErrorType
	ReasonUnknownErrorCode
	ReasonBadNoErrorFields
	ReasonShort
	ReasonMalformed
)

func (r ParseErrorReason) String() string {
	switch r {
	case ReasonLengthMismatch:
		return "length_mismatch"
	case ReasonUnknownType:
		return "unknown_type"
	case ReasonNonZeroAuth:
		return "non_zero_auth"
	case ReasonUnknownACKType:
		return "unknown_ack_type"
	case ReasonACKOfUnackedType:
		return "ack_of_unacked_type"
	case ReasonUnknownErrorType:
		return "unknown_error_type"
	case ReasonUnknownErrorCode:
		return "unknown_error_code"
	case ReasonBadNoErrorFields:
		return "bad_no_error_fields"
	case ReasonShort:
		return "short"
	case ReasonMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(r))
	}
}

// ParseError reports a malformed PDU. It is always non-fatal to the session
// that received it: the caller logs and drops the frame.
type ParseError struct {
	Reason ParseErrorReason
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("codec: parse error: %s", e.Reason)
	}
	return fmt.Sprintf("codec: parse error: %s: %s", e.Reason, e.Detail)
}

func newParseError(reason ParseErrorReason, format string, args ...any) *ParseError {
	return &ParseError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}
