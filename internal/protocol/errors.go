package protocol

import "fmt"

// DecodeError reports a malformed wire frame: unknown tag, truncated or
// overlong payload, or a field value outside its domain. It is terminal
// for the connection that produced it.
type DecodeError struct {
	Tag    byte
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode message (tag 0x%02x): %s", e.Tag, e.Reason)
}

func decodeErr(tag byte, format string, args ...any) *DecodeError {
	return &DecodeError{Tag: tag, Reason: fmt.Sprintf(format, args...)}
}
