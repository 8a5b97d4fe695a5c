package sftp

import (
	"errors"
	"fmt"
)

// ProtocolError reports malformed wire data. It is connection-fatal unless
// Unknown is set and a request id could be recovered.
type ProtocolError struct {
	Type   PacketType
	Reason string

	// Unknown is set when the type byte is not a version 3 packet type.
	Unknown bool
	// RequestID holds the leading uint32 of an unknown packet, when HasID.
	RequestID uint32
	HasID     bool
}

func (e *ProtocolError) Error() string {
	if e.Type == 0 {
		return "sftp: " + e.Reason
	}
	return fmt.Sprintf("sftp: %s: %s", e.Type, e.Reason)
}

// IsProtocolError reports whether err is, or wraps, a *ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

func malformed(t PacketType, format string, args ...any) *ProtocolError {
	return &ProtocolError{Type: t, Reason: fmt.Sprintf(format, args...)}
}
