// Package cascade implements recursive deletion over the document
// hierarchy. Deleting a document in a hierarchical store does not remove
// its subcollections; documents under a deleted parent keep existing and
// stay reachable by path. The Handler walks the subtree depth-first and
// deletes every descendant before the document itself.
package cascade

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/api/iterator"

	"github.com/ioxiocom/firedantic/store"
)

// defaultBatchSize is the enumeration batch size for collection deletes.
const defaultBatchSize = 128

// Handler performs cascade deletes against a store backend.
//
// Deletes are not transactional: a failure partway leaves the subtree
// partially removed, and re-running the same delete is safe. Concurrent
// writers can re-create documents behind the walk.
type Handler struct {
	backend   store.Backend
	logger    *slog.Logger
	batchSize int
}

// Option customizes a Handler.
type Option func(*Handler)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithBatchSize sets the enumeration batch size for collection deletes.
func WithBatchSize(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.batchSize = n
		}
	}
}

// NewHandler creates a cascade handler on top of backend.
func NewHandler(backend store.Backend, opts ...Option) *Handler {
	h := &Handler{
		backend:   backend,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// DeleteDocument removes the document at path together with every document
// in its subcollections, recursively. It returns the total number of
// documents removed, the target document included when it existed.
func (h *Handler) DeleteDocument(ctx context.Context, path string) (int, error) {
	cols, err := h.backend.ListCollections(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("cascade: listing subcollections of %q: %w", path, err)
	}

	count := 0
	for _, col := range cols {
		n, err := h.DeleteCollection(ctx, col)
		count += n
		if err != nil {
			return count, err
		}
	}

	// The parent may be a phantom: a path segment with children but no
	// document of its own. Delete is a no-op then.
	existed := true
	if _, err := h.backend.Get(ctx, path); err != nil {
		existed = false
	}
	if err := h.backend.Delete(ctx, path); err != nil {
		return count, fmt.Errorf("cascade: deleting %q: %w", path, err)
	}
	if existed {
		count++
	}

	h.logger.Debug("cascade delete finished",
		"path", path, "removed", count, "subcollections", len(cols))
	return count, nil
}

// DeleteCollection removes every document in the collection at path,
// each with its full subtree. It returns the total number of documents
// removed.
func (h *Handler) DeleteCollection(ctx context.Context, path string) (int, error) {
	count := 0
	for {
		paths, err := h.listDocumentPaths(ctx, path)
		if err != nil {
			return count, fmt.Errorf("cascade: enumerating %q: %w", path, err)
		}
		if len(paths) == 0 {
			return count, nil
		}
		for _, docPath := range paths {
			n, err := h.DeleteDocument(ctx, docPath)
			count += n
			if err != nil {
				return count, err
			}
		}
		if len(paths) < h.batchSize {
			return count, nil
		}
	}
}

func (h *Handler) listDocumentPaths(ctx context.Context, col string) ([]string, error) {
	src := h.backend.RunQuery(ctx, store.Query{Collection: col, Limit: h.batchSize})
	defer src.Stop()

	var paths []string
	for {
		doc, err := src.Next()
		if err == iterator.Done {
			return paths, nil
		}
		if err != nil {
			return nil, err
		}
		paths = append(paths, doc.Path)
	}
}
