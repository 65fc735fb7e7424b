package fdwatch

import (
	"errors"
)

// Standard errors.
var (
	// ErrUnsupportedPlatform is returned when starting a watcher on a platform
	// without poll(2) support.
	ErrUnsupportedPlatform = errors.New("fdwatch: unsupported platform")

	// ErrControlChannelClosed is returned when notifying a control channel
	// that has already been torn down.
	ErrControlChannelClosed = errors.New("fdwatch: control channel closed")
)
