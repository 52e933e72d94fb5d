package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// ErrNotFound is returned when a blob does not exist. It maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

var (
	// ErrClosed is returned when using a closed or committed blob.
	ErrClosed = errors.New("blobstore: blob is closed")
	// ErrAborted is returned by writes after Abort.
	ErrAborted = errors.New("blobstore: upload aborted")
	// ErrInvalidName is returned for names that are empty or escape the store root.
	ErrInvalidName = errors.New("blobstore: invalid blob name")
)

// BlobStore is a flat namespace of immutable blobs. Implementations must be
// safe for concurrent use.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create starts writing a blob. It becomes visible on Close.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a complete blob atomically.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a blob.
type Blob interface {
	io.ReaderAt
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
}

// ContextReader is implemented by blobs whose reads honor a context.
type ContextReader interface {
	ReadAtContext(ctx context.Context, p []byte, off int64) (int, error)
}

// Mappable is implemented by blobs backed by memory. The slice is valid until
// the blob is closed.
type Mappable interface {
	Bytes() ([]byte, error)
}

// WritableBlob is an in-progress blob.
type WritableBlob interface {
	io.Writer
	// Sync flushes buffered data where the backend supports it.
	Sync() error
	// Close commits the blob.
	Close() error
	// Abort discards the blob. It is a no-op after Close.
	Abort() error
}

// ValidateName rejects empty names and names that escape the store root.
func ValidateName(name string) error {
	clean := path.Clean(name)
	if name == "" || clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// readAt copies from data following io.ReaderAt semantics.
func readAt(data []byte, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("blobstore: negative offset %d", off)
	}
	if off >= int64(len(data)) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
