package uart

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by operations that need a ready session.
	ErrNotConnected = errors.New("uart: not connected")
	// ErrPayloadTooLarge is returned when a frame exceeds the negotiated
	// transport unit. Frames are never fragmented or truncated here.
	ErrPayloadTooLarge = errors.New("uart: payload exceeds transport unit")
)

func errInvalidAddr(s string) error {
	return fmt.Errorf("uart: invalid address %q", s)
}
