package autoflate

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations attempted on a closed Stream.
	ErrClosed = errors.New("autoflate: stream is closed")

	// ErrFormatChange is returned when a bind would replace an already
	// bound, different format. The binding is irrevocable: this is a
	// programming error, never a condition to retry.
	ErrFormatChange = errors.New("autoflate: can't change format of a bound stream")

	// ErrNoSyncSupport is returned by DecodeAll when the resolved format
	// has no synchronous decoding support.
	ErrNoSyncSupport = errors.New("autoflate: decoder has no synchronous support")
)

// FormatError is the terminal error reported when no configured detector
// matched the stream and no default format is configured. It carries the
// unmatched signature bytes for diagnostics.
type FormatError struct {
	// Sig holds the signature bytes that no detector matched.
	Sig []byte
}

func (e *FormatError) Error() string {
	n := len(e.Sig)
	if n > 8 {
		n = 8
	}
	return fmt.Sprintf("autoflate: no supported format matched signature % #x", e.Sig[:n])
}
