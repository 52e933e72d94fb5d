package pointstore

import (
	"errors"
	"fmt"

	"github.com/hupe1980/pointstore/blobstore"
	"github.com/hupe1980/pointstore/internal/hierarchy"
	"github.com/hupe1980/pointstore/internal/ingest"
	"github.com/hupe1980/pointstore/internal/query"
)

var (
	// ErrInvalidConfig is matched by every *ConfigError.
	ErrInvalidConfig = errors.New("pointstore: invalid config")
	// ErrCorruptChunk is matched by every *DecodeError.
	ErrCorruptChunk = errors.New("pointstore: corrupt chunk")
	// ErrIndexOpen is matched by every *IndexOpenError.
	ErrIndexOpen = errors.New("pointstore: cannot open index")
	// ErrClosed is returned when using a closed Cloud.
	ErrClosed = errors.New("pointstore: cloud is closed")
	// ErrNotFound is returned when the named cloud does not exist.
	ErrNotFound = blobstore.ErrNotFound
)

// ConfigError rejects an option, query argument or input batch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ConfigError struct {
	Field  string
	Reason string
	cause  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pointstore: invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

func (e *ConfigError) Unwrap() error { return e.cause }

// DecodeError reports a leaf whose chunk could not be read, verified or
// decoded. Other leaves of the same query are unaffected.
type DecodeError struct {
	NodeID uint32
	Offset uint64
	Length uint32
	cause  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("pointstore: node %d chunk [%d,+%d): %v", e.NodeID, e.Offset, e.Length, e.cause)
}

func (e *DecodeError) Is(target error) bool { return target == ErrCorruptChunk }

func (e *DecodeError) Unwrap() error { return e.cause }

// IndexOpenError reports a blob that is missing or whose header or node
// table is invalid. A missing blob also matches ErrNotFound.
type IndexOpenError struct {
	Name string
	// Offset is the byte position of the offending structure, or -1.
	Offset int64
	cause  error
}

func (e *IndexOpenError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("pointstore: open %s: %v", e.Name, e.cause)
	}
	return fmt.Sprintf("pointstore: open %s at offset %d: %v", e.Name, e.Offset, e.cause)
}

func (e *IndexOpenError) Is(target error) bool { return target == ErrIndexOpen }

func (e *IndexOpenError) Unwrap() error { return e.cause }

func openError(name string, err error) error {
	oe := &IndexOpenError{Name: name, Offset: -1, cause: err}
	var he *hierarchy.OpenError
	if errors.As(err, &he) {
		oe.Offset = he.Offset
	}
	return oe
}

// translateError maps internal errors to the public error types.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var ice *ingest.ConfigError
	if errors.As(err, &ice) {
		return &ConfigError{Field: ice.Field, Reason: ice.Reason, cause: err}
	}
	var qce *query.ConfigError
	if errors.As(err, &qce) {
		return &ConfigError{Field: qce.Field, Reason: qce.Reason, cause: err}
	}

	var le *query.LeafError
	if errors.As(err, &le) {
		return &DecodeError{NodeID: le.NodeID, Offset: le.Offset, Length: le.Length, cause: le.Err}
	}
	var ce *hierarchy.ChunkError
	if errors.As(err, &ce) {
		return &DecodeError{NodeID: ce.NodeID, Offset: ce.Offset, Length: ce.Length, cause: ce.Err}
	}

	return err
}
