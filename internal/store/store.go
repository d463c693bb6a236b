package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no value exists at the requested path.
	ErrNotFound = errors.New("path not found")

	// ErrConflict is returned by Transact when a watched path was modified
	// concurrently. Callers decide whether to retry.
	ErrConflict = errors.New("transaction conflict")

	// ErrUnavailable wraps transport-level failures talking to the backend.
	ErrUnavailable = errors.New("store unavailable")
)

// UpdateFn computes the writes for one Transact attempt. It receives the
// current values of the watched paths (absent paths are missing from the map)
// and returns the paths to write. A nil value removes the path. Returning an
// error aborts the transaction without writing anything.
type UpdateFn func(current map[string][]byte) (map[string][]byte, error)

// DocumentStore is a hierarchical key-value document tree. Paths are
// slash-separated ("users/jeysi/gcashBalance"); values are JSON-encoded.
type DocumentStore interface {
	// Read returns the value at path, or ErrNotFound.
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns the direct children of path as childKey -> value.
	List(ctx context.Context, path string) (map[string][]byte, error)

	// AtomicUpdate writes every entry in updates as a single all-or-nothing
	// operation. A nil value removes the path.
	AtomicUpdate(ctx context.Context, updates map[string][]byte) error

	// Transact runs fn in a compare-and-swap over the watched paths: if any
	// of them changes between the read and the write, no write happens and
	// ErrConflict is returned. fn may write paths outside the watched set.
	Transact(ctx context.Context, paths []string, fn UpdateFn) error

	// NewKey returns a collision-free child key for the given parent path.
	NewKey(parentPath string) string
}
