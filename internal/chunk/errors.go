package chunk

import (
	"errors"
	"fmt"
)

var (
	// ErrCorrupt marks chunks whose bytes are inconsistent.
	ErrCorrupt = errors.New("chunk: corrupt")
	// ErrTruncated marks chunks that end early.
	ErrTruncated = errors.New("chunk: truncated")
	// ErrNotFinite is returned when encoding a point with a NaN or infinite coordinate.
	ErrNotFinite = errors.New("chunk: coordinate is not finite")
	// ErrOverflow is returned when a coordinate does not fit the fixed-point range.
	ErrOverflow = errors.New("chunk: coordinate overflows fixed-point range")
)

// DecodeError reports where decoding failed inside a chunk.
//
// Use errors.Is with ErrCorrupt or ErrTruncated to classify it.
type DecodeError struct {
	// Offset is the byte position within the chunk.
	Offset int
	Reason string
	cause  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("chunk decode at byte %d: %s", e.Offset, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.cause }

func corrupt(off int, reason string) error {
	return &DecodeError{Offset: off, Reason: reason, cause: ErrCorrupt}
}

func truncated(off int, reason string) error {
	return &DecodeError{Offset: off, Reason: reason, cause: ErrTruncated}
}

func wrapCorrupt(off int, codec string, err error) error {
	return &DecodeError{Offset: off, Reason: codec + ": " + err.Error(), cause: fmt.Errorf("%w: %w", ErrCorrupt, err)}
}
