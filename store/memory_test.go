package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/api/iterator"
)

func mustPut(t *testing.T, b *MemoryBackend, path string, fields map[string]any) {
	t.Helper()
	if err := b.Put(context.Background(), path, fields); err != nil {
		t.Fatalf("Put %s: %v", path, err)
	}
}

func collectAll(t *testing.T, it DocumentIterator) []Document {
	t.Helper()
	defer it.Stop()
	var docs []Document
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			return docs
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		docs = append(docs, doc)
	}
}

func TestMemoryPutGetDelete(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	mustPut(t, b, "users/u1", map[string]any{"name": "Jane"})

	fields, err := b.Get(ctx, "users/u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fields["name"] != "Jane" {
		t.Errorf("expected name Jane, got %v", fields["name"])
	}

	if err := b.Delete(ctx, "users/u1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := b.Get(ctx, "users/u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Deleting an absent document succeeds.
	if err := b.Delete(ctx, "users/u1"); err != nil {
		t.Errorf("Delete of absent document: %v", err)
	}
}

func TestMemoryInvalidPaths(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	// Document operations require an even number of segments.
	for _, path := range []string{"", "users", "users/u1/orders", "users//"} {
		t.Run("path "+path, func(t *testing.T) {
			if err := b.Put(ctx, path, nil); !errors.Is(err, ErrInvalidPath) {
				t.Errorf("Put: expected ErrInvalidPath, got %v", err)
			}
			if _, err := b.Get(ctx, path); !errors.Is(err, ErrInvalidPath) {
				t.Errorf("Get: expected ErrInvalidPath, got %v", err)
			}
			if err := b.Delete(ctx, path); !errors.Is(err, ErrInvalidPath) {
				t.Errorf("Delete: expected ErrInvalidPath, got %v", err)
			}
		})
	}

	// Queries require an odd number of segments.
	it := b.RunQuery(ctx, Query{Collection: "users/u1", Limit: -1})
	if _, err := it.Next(); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("RunQuery: expected ErrInvalidPath, got %v", err)
	}
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	mustPut(t, b, "users/u1", map[string]any{"nested": map[string]any{"k": "v"}})

	fields, err := b.Get(ctx, "users/u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	fields["nested"].(map[string]any)["k"] = "mutated"

	again, err := b.Get(ctx, "users/u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again["nested"].(map[string]any)["k"] != "v" {
		t.Error("caller mutations must not reach the stored document")
	}
}

func TestMemoryQueryDirectChildrenOnly(t *testing.T) {
	b := NewMemoryBackend()
	mustPut(t, b, "users/u1", map[string]any{"name": "a"})
	mustPut(t, b, "users/u2", map[string]any{"name": "b"})
	mustPut(t, b, "users/u1/orders/o1", map[string]any{"name": "nested"})
	mustPut(t, b, "accounts/a1", map[string]any{"name": "other"})

	docs := collectAll(t, b.RunQuery(context.Background(), Query{Collection: "users", Limit: -1}))
	if len(docs) != 2 {
		t.Errorf("expected only direct children of 'users', got %d", len(docs))
	}
}

func TestMemoryQueryFilters(t *testing.T) {
	b := NewMemoryBackend()
	mustPut(t, b, "products/p1", map[string]any{"stock": int64(0), "tags": []any{"new"}})
	mustPut(t, b, "products/p2", map[string]any{"stock": int64(5), "tags": []any{"new", "sale"}})
	mustPut(t, b, "products/p3", map[string]any{"stock": int64(10)})

	tests := []struct {
		name     string
		filters  []FieldFilter
		expected int
	}{
		{"equal", []FieldFilter{{Field: "stock", Op: OpEqual, Value: int64(5)}}, 1},
		{"not equal", []FieldFilter{{Field: "stock", Op: OpNotEqual, Value: int64(5)}}, 2},
		{"greater than", []FieldFilter{{Field: "stock", Op: OpGreaterThan, Value: int64(0)}}, 2},
		{"less or equal", []FieldFilter{{Field: "stock", Op: OpLessThanEqual, Value: int64(5)}}, 2},
		{"cross-type numeric", []FieldFilter{{Field: "stock", Op: OpEqual, Value: float64(5)}}, 1},
		{"in", []FieldFilter{{Field: "stock", Op: OpIn, Value: []any{int64(0), int64(10)}}}, 2},
		{"not in", []FieldFilter{{Field: "stock", Op: OpNotIn, Value: []any{int64(0)}}}, 2},
		// p3 has no tags field at all, so it never matches tag filters.
		{"array contains", []FieldFilter{{Field: "tags", Op: OpArrayContains, Value: "sale"}}, 1},
		{"array contains any", []FieldFilter{{Field: "tags", Op: OpArrayContainsAny, Value: []any{"new", "x"}}}, 2},
		{"conjunction", []FieldFilter{
			{Field: "stock", Op: OpGreaterThan, Value: int64(0)},
			{Field: "stock", Op: OpLessThan, Value: int64(10)},
		}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := collectAll(t, b.RunQuery(context.Background(),
				Query{Collection: "products", Filters: tt.filters, Limit: -1}))
			if len(docs) != tt.expected {
				t.Errorf("expected %d documents, got %d", tt.expected, len(docs))
			}
		})
	}
}

func TestMemoryQueryOrderAndWindow(t *testing.T) {
	b := NewMemoryBackend()
	mustPut(t, b, "products/p1", map[string]any{"price": 3.0})
	mustPut(t, b, "products/p2", map[string]any{"price": 1.0})
	mustPut(t, b, "products/p3", map[string]any{"price": 2.0})
	ctx := context.Background()

	t.Run("descending order", func(t *testing.T) {
		docs := collectAll(t, b.RunQuery(ctx, Query{
			Collection: "products",
			Orders:     []Order{{Field: "price", Direction: Descending}},
			Limit:      -1,
		}))
		if len(docs) != 3 || docs[0].Fields["price"] != 3.0 || docs[2].Fields["price"] != 1.0 {
			t.Errorf("unexpected order: %v", docs)
		}
	})

	t.Run("offset and limit", func(t *testing.T) {
		docs := collectAll(t, b.RunQuery(ctx, Query{
			Collection: "products",
			Orders:     []Order{{Field: "price", Direction: Ascending}},
			Offset:     1,
			Limit:      1,
		}))
		if len(docs) != 1 || docs[0].Fields["price"] != 2.0 {
			t.Errorf("expected the middle document, got %v", docs)
		}
	})

	t.Run("zero limit", func(t *testing.T) {
		docs := collectAll(t, b.RunQuery(ctx, Query{Collection: "products", Limit: 0}))
		if len(docs) != 0 {
			t.Errorf("expected no documents, got %d", len(docs))
		}
	})

	t.Run("documents missing the order field are dropped", func(t *testing.T) {
		mustPut(t, b, "products/p4", map[string]any{"other": true})
		docs := collectAll(t, b.RunQuery(ctx, Query{
			Collection: "products",
			Orders:     []Order{{Field: "price", Direction: Ascending}},
			Limit:      -1,
		}))
		if len(docs) != 3 {
			t.Errorf("expected 3 ordered documents, got %d", len(docs))
		}
	})

	t.Run("path tie-break", func(t *testing.T) {
		docs := collectAll(t, b.RunQuery(ctx, Query{Collection: "products", Limit: -1}))
		for i := 1; i < len(docs); i++ {
			if docs[i-1].Path >= docs[i].Path {
				t.Fatalf("expected path-ordered results, got %v", docs)
			}
		}
	})
}

func TestMemoryQueryIsSnapshot(t *testing.T) {
	b := NewMemoryBackend()
	mustPut(t, b, "users/u1", map[string]any{"name": "a"})
	ctx := context.Background()

	it := b.RunQuery(ctx, Query{Collection: "users", Limit: -1})
	defer it.Stop()
	mustPut(t, b, "users/u2", map[string]any{"name": "b"})

	docs := 0
	for {
		if _, err := it.Next(); err == iterator.Done {
			break
		} else if err != nil {
			t.Fatalf("Next: %v", err)
		}
		docs++
	}
	if docs != 1 {
		t.Errorf("iterator must serve the snapshot taken at query time, got %d docs", docs)
	}
}

func TestMemoryListCollections(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()
	mustPut(t, b, "users/u1", map[string]any{"name": "a"})
	mustPut(t, b, "users/u1/orders/o1", nil)
	mustPut(t, b, "users/u1/orders/o2", nil)
	mustPut(t, b, "users/u1/stats/s1", nil)
	mustPut(t, b, "users/u1/orders/o1/items/i1", nil)
	mustPut(t, b, "users/u2/orders/o3", nil)

	cols, err := b.ListCollections(ctx, "users/u1")
	if err != nil {
		t.Fatalf("ListCollections: %v", err)
	}
	expected := []string{"users/u1/orders", "users/u1/stats"}
	if len(cols) != 2 || cols[0] != expected[0] || cols[1] != expected[1] {
		t.Errorf("expected %v, got %v", expected, cols)
	}

	// A document without subcollections, and a document path that does not
	// exist, both yield nothing.
	if cols, _ := b.ListCollections(ctx, "users/u1/orders/o2"); len(cols) != 0 {
		t.Errorf("expected no subcollections, got %v", cols)
	}

	if _, err := b.ListCollections(ctx, "users"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
}

func TestMemoryTransactionCommit(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()
	mustPut(t, b, "counters/c1", map[string]any{"n": int64(1)})

	err := b.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		fields, err := tx.Get(ctx, "counters/c1")
		if err != nil {
			return err
		}
		fields["n"] = fields["n"].(int64) + 1
		return tx.Put("counters/c1", fields)
	})
	if err != nil {
		t.Fatalf("RunTransaction: %v", err)
	}

	fields, err := b.Get(ctx, "counters/c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fields["n"] != int64(2) {
		t.Errorf("expected n=2, got %v", fields["n"])
	}
}

func TestMemoryTransactionRetriesOnConflict(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()
	mustPut(t, b, "counters/c1", map[string]any{"n": int64(0)})

	attempts := 0
	err := b.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		attempts++
		fields, err := tx.Get(ctx, "counters/c1")
		if err != nil {
			return err
		}
		if attempts == 1 {
			// A concurrent writer bumps the document between read and
			// commit, invalidating the first attempt.
			mustPut(t, b, "counters/c1", map[string]any{"n": int64(100)})
		}
		fields["n"] = fields["n"].(int64) + 1
		return tx.Put("counters/c1", fields)
	})
	if err != nil {
		t.Fatalf("RunTransaction: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected exactly one retry, got %d attempts", attempts)
	}

	fields, err := b.Get(ctx, "counters/c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fields["n"] != int64(101) {
		t.Errorf("expected the retried increment on top of the concurrent write, got %v", fields["n"])
	}
}

func TestMemoryTransactionConflictBudget(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()
	mustPut(t, b, "counters/c1", map[string]any{"n": int64(0)})

	err := b.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Get(ctx, "counters/c1"); err != nil {
			return err
		}
		// Invalidate every attempt.
		mustPut(t, b, "counters/c1", map[string]any{"n": int64(0)})
		return tx.Put("counters/c1", map[string]any{"n": int64(1)})
	})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict after exhausting retries, got %v", err)
	}
}

func TestMemoryTransactionReadAfterWrite(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	err := b.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Put("users/u1", map[string]any{"name": "a"}); err != nil {
			return err
		}
		_, err := tx.Get(ctx, "users/u1")
		return err
	})
	if !errors.Is(err, ErrReadAfterWrite) {
		t.Errorf("expected ErrReadAfterWrite from Get, got %v", err)
	}

	err = b.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Delete("users/u1"); err != nil {
			return err
		}
		_, qerr := tx.RunQuery(ctx, Query{Collection: "users", Limit: -1}).Next()
		return qerr
	})
	if !errors.Is(err, ErrReadAfterWrite) {
		t.Errorf("expected ErrReadAfterWrite from RunQuery, got %v", err)
	}
}

func TestMemoryTransactionGuardsAbsentReads(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	attempts := 0
	err := b.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		attempts++
		_, err := tx.Get(ctx, "users/u1")
		if attempts == 1 {
			if !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("expected ErrNotFound, got %v", err)
			}
			// The document appearing after the read must invalidate the
			// commit even though the read found nothing.
			mustPut(t, b, "users/u1", map[string]any{"name": "raced"})
		} else if err != nil {
			return err
		}
		return tx.Put("users/u2", map[string]any{"name": "b"})
	})
	if err != nil {
		t.Fatalf("RunTransaction: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected a retry after the absent read was invalidated, got %d attempts", attempts)
	}
}

func TestMemoryFailureHook(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()
	boom := errors.New("injected")

	b.FailureHook = func(op, path string) error {
		if op == "put" && path == "users/u1" {
			return boom
		}
		return nil
	}

	if err := b.Put(ctx, "users/u1", nil); !errors.Is(err, boom) {
		t.Errorf("expected injected error, got %v", err)
	}
	if err := b.Put(ctx, "users/u2", nil); err != nil {
		t.Errorf("unhooked path must succeed: %v", err)
	}
}
