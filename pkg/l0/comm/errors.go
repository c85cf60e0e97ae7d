package comm

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout indicates an expected line did not arrive in time.
	ErrTimeout = errors.New("timeout")
	// ErrClosed indicates the link was closed while reading.
	ErrClosed = errors.New("link closed")
	// ErrInvalidValue indicates a value line is not a valid number.
	ErrInvalidValue = errors.New("invalid value")
	// ErrUnexpectedToken indicates a token line showed up where a
	// telemetry sample was expected.
	ErrUnexpectedToken = errors.New("unexpected token")
)

// DesyncError reports that the host and the board no longer agree on
// the position in the handshake.
type DesyncError struct {
	// Token is the token being waited for.
	Token string
	// Line is the last line received, if any.
	Line  string
	Cause error
}

// Error implements error.
func (e *DesyncError) Error() string {
	if e.Line == "" {
		return fmt.Sprintf("protocol desync waiting for %s: %v", e.Token, e.Cause)
	}
	return fmt.Sprintf("protocol desync waiting for %s (last line %q): %v", e.Token, e.Line, e.Cause)
}

// Unwrap returns the cause.
func (e *DesyncError) Unwrap() error {
	return e.Cause
}
