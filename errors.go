package termpix

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDimensions is returned when an encoder receives a zero-sized
	// or malformed pixel grid.
	ErrInvalidDimensions = errors.New("termpix: invalid image dimensions")

	// ErrPaletteOverflow is returned by the sixel encoder when the image
	// cannot be reduced to the protocol's palette limit, after coarser
	// quantization has already been attempted.
	ErrPaletteOverflow = errors.New("termpix: palette exceeds protocol limit")

	// ErrProbeTimeout reports that the terminal never answered a capability
	// query. The probe still returns usable capabilities (all graphics flags
	// false) alongside this sentinel; silence is a fallback, not a failure.
	ErrProbeTimeout = errors.New("termpix: terminal did not respond to capability query")

	// ErrDecode wraps failures from the image decoding collaborator.
	ErrDecode = errors.New("termpix: image decode failed")

	// ErrPipelineClosed is returned by Submit after the pipeline has been
	// shut down.
	ErrPipelineClosed = errors.New("termpix: pipeline closed")
)

// UnsupportedProtocolError is returned when no encoder exists for a protocol
// value.
type UnsupportedProtocolError struct {
	Protocol Protocol
}

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("termpix: unsupported protocol: %s", e.Protocol)
}
