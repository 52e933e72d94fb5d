package query

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest is wrapped by every ConfigError.
var ErrInvalidRequest = errors.New("query: invalid request")

// ConfigError rejects a request before traversal starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("query: invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidRequest }

// LeafError reports a chunk that could not be read or decoded. The stream
// continues with the next node if the consumer keeps iterating.
type LeafError struct {
	NodeID uint32
	Offset uint64
	Length uint32
	Err    error
}

func (e *LeafError) Error() string {
	return fmt.Sprintf("query: node %d chunk [%d,+%d): %v", e.NodeID, e.Offset, e.Length, e.Err)
}

func (e *LeafError) Unwrap() error { return e.Err }
