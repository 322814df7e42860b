package protocol

import (
	"errors"
	"fmt"
)

// ErrMalformedPacket is returned when a payload cannot be decoded.
var ErrMalformedPacket = errors.New("malformed packet")

// ProtocolError reports a packet whose identifier does not match what the
// current protocol state expects. It is fatal to the session.
type ProtocolError struct {
	Expected fmt.Stringer
	Got      uint8
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol violation: expected %s packet, got id %d", e.Expected, e.Got)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedPacket, fmt.Sprintf(format, args...))
}
