package store

import "errors"

var (
	// ErrNotFound is returned when no document exists at the requested path.
	ErrNotFound = errors.New("store: document not found")

	// ErrInvalidPath is returned when a path is structurally invalid, for
	// example a document path with an odd number of segments.
	ErrInvalidPath = errors.New("store: invalid path")

	// ErrConflict is returned when a transaction could not be committed
	// after exhausting its retry budget due to concurrent modifications.
	ErrConflict = errors.New("store: transaction conflict")

	// ErrReadAfterWrite is returned when a transaction attempts a read after
	// it has already buffered a write. All reads must precede all writes.
	ErrReadAfterWrite = errors.New("store: read after write in transaction")
)
