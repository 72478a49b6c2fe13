package store

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/iterator"

	"github.com/ioxiocom/firedantic/internal/pathutil"
)

// txMaxAttempts is the transaction retry budget, matching the Firestore
// client's default.
const txMaxAttempts = 5

type memDoc struct {
	fields  map[string]any
	version int64
}

// MemoryBackend is an in-memory implementation of Backend and Admin. It
// supports the full document hierarchy, queries and optimistic-concurrency
// transactions, and is intended for tests and local development.
type MemoryBackend struct {
	mu   sync.RWMutex
	docs map[string]*memDoc

	indexes map[string][]IndexDefinition
	ttl     map[string]TTLState

	// FailureHook, when set, is consulted before every Put, Get and
	// Delete with the operation name and path. A non-nil return is
	// surfaced as the operation's error. Tests use it to inject faults.
	FailureHook func(op, path string) error
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		docs:    make(map[string]*memDoc),
		indexes: make(map[string][]IndexDefinition),
		ttl:     make(map[string]TTLState),
	}
}

func (b *MemoryBackend) hookErr(op, path string) error {
	if b.FailureHook != nil {
		return b.FailureHook(op, path)
	}
	return nil
}

// Put creates or replaces the document at path.
func (b *MemoryBackend) Put(ctx context.Context, path string, fields map[string]any) error {
	if err := b.hookErr("put", path); err != nil {
		return err
	}
	if !pathutil.IsDocumentPath(path) {
		return fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.putLocked(path, fields)
	return nil
}

func (b *MemoryBackend) putLocked(path string, fields map[string]any) {
	doc, ok := b.docs[path]
	if !ok {
		doc = &memDoc{}
		b.docs[path] = doc
	}
	doc.fields = copyFields(fields)
	doc.version++
}

// Get returns a copy of the document fields at path, or ErrNotFound.
func (b *MemoryBackend) Get(ctx context.Context, path string) (map[string]any, error) {
	if err := b.hookErr("get", path); err != nil {
		return nil, err
	}
	if !pathutil.IsDocumentPath(path) {
		return nil, fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	doc, ok := b.docs[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return copyFields(doc.fields), nil
}

// Delete removes the document at path. Deleting a nonexistent document
// succeeds silently.
func (b *MemoryBackend) Delete(ctx context.Context, path string) error {
	if err := b.hookErr("delete", path); err != nil {
		return err
	}
	if !pathutil.IsDocumentPath(path) {
		return fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.docs, path)
	return nil
}

// RunQuery executes q against a snapshot of the current state.
func (b *MemoryBackend) RunQuery(ctx context.Context, q Query) DocumentIterator {
	b.mu.RLock()
	defer b.mu.RUnlock()
	docs, err := b.runQueryLocked(q, nil)
	return &memIterator{docs: docs, err: err}
}

// runQueryLocked evaluates q under the lock. When readVersions is non-nil
// the version of every matched document is recorded into it (transaction
// conflict tracking).
func (b *MemoryBackend) runQueryLocked(q Query, readVersions map[string]int64) ([]Document, error) {
	if !pathutil.IsCollectionPath(q.Collection) {
		return nil, fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, q.Collection)
	}

	var matched []Document
	for path, doc := range b.docs {
		if pathutil.Parent(path) != q.Collection {
			continue
		}
		ok, err := matchesFilters(doc.fields, q.Filters)
		if err != nil {
			return nil, err
		}
		if !ok || !hasOrderFields(doc.fields, q.Orders) {
			continue
		}
		matched = append(matched, Document{Path: path, Fields: copyFields(doc.fields)})
		if readVersions != nil {
			readVersions[path] = doc.version
		}
	}

	sortDocuments(matched, q.Orders)

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Offset:]
		}
	}
	if q.Limit >= 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// ListCollections returns the subcollection paths under the document at
// path, in sorted order.
func (b *MemoryBackend) ListCollections(ctx context.Context, path string) ([]string, error) {
	if !pathutil.IsDocumentPath(path) {
		return nil, fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	prefix := path + "/"
	seen := make(map[string]bool)
	var cols []string
	for docPath := range b.docs {
		if !strings.HasPrefix(docPath, prefix) {
			continue
		}
		rest := docPath[len(prefix):]
		i := strings.IndexByte(rest, '/')
		if i < 0 {
			continue
		}
		col := prefix + rest[:i]
		if !seen[col] {
			seen[col] = true
			cols = append(cols, col)
		}
	}
	sort.Strings(cols)
	return cols, nil
}

// RunTransaction runs fn with optimistic concurrency control. Reads record
// document versions; the commit re-checks them and re-executes fn from
// scratch when any read document changed in the meantime.
func (b *MemoryBackend) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	for attempt := 0; attempt < txMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx := &memTx{backend: b, readVersions: make(map[string]int64)}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if b.commit(tx) {
			return nil
		}
	}
	return ErrConflict
}

func (b *MemoryBackend) commit(tx *memTx) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for path, version := range tx.readVersions {
		var current int64
		if doc, ok := b.docs[path]; ok {
			current = doc.version
		}
		if current != version {
			return false
		}
	}

	for _, w := range tx.writes {
		if w.delete {
			delete(b.docs, w.path)
			continue
		}
		b.putLocked(w.path, w.fields)
	}
	return true
}

type txWrite struct {
	path   string
	fields map[string]any
	delete bool
}

type memTx struct {
	backend      *MemoryBackend
	readVersions map[string]int64
	writes       []txWrite
}

func (tx *memTx) Get(ctx context.Context, path string) (map[string]any, error) {
	if len(tx.writes) > 0 {
		return nil, ErrReadAfterWrite
	}
	if !pathutil.IsDocumentPath(path) {
		return nil, fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}

	tx.backend.mu.RLock()
	defer tx.backend.mu.RUnlock()
	doc, ok := tx.backend.docs[path]
	if !ok {
		tx.readVersions[path] = 0
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	tx.readVersions[path] = doc.version
	return copyFields(doc.fields), nil
}

func (tx *memTx) Put(path string, fields map[string]any) error {
	if !pathutil.IsDocumentPath(path) {
		return fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}
	tx.writes = append(tx.writes, txWrite{path: path, fields: copyFields(fields)})
	return nil
}

func (tx *memTx) Delete(path string) error {
	if !pathutil.IsDocumentPath(path) {
		return fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}
	tx.writes = append(tx.writes, txWrite{path: path, delete: true})
	return nil
}

func (tx *memTx) RunQuery(ctx context.Context, q Query) DocumentIterator {
	if len(tx.writes) > 0 {
		return &memIterator{err: ErrReadAfterWrite}
	}
	tx.backend.mu.RLock()
	defer tx.backend.mu.RUnlock()
	docs, err := tx.backend.runQueryLocked(q, tx.readVersions)
	return &memIterator{docs: docs, err: err}
}

type memIterator struct {
	docs []Document
	next int
	err  error
}

func (it *memIterator) Next() (Document, error) {
	if it.err != nil {
		return Document{}, it.err
	}
	if it.next >= len(it.docs) {
		return Document{}, iterator.Done
	}
	doc := it.docs[it.next]
	it.next++
	return doc, nil
}

func (it *memIterator) Stop() {}

// --- Admin implementation ---

// ListCompositeIndexes returns the composite indexes recorded for the
// collection group.
func (b *MemoryBackend) ListCompositeIndexes(ctx context.Context, collection string) ([]IndexDefinition, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]IndexDefinition(nil), b.indexes[collection]...), nil
}

// CreateCompositeIndex records a composite index for the collection group.
func (b *MemoryBackend) CreateCompositeIndex(ctx context.Context, collection string, index IndexDefinition) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.indexes[collection] = append(b.indexes[collection], index)
	return nil
}

// TTLPolicyState reports the recorded TTL policy state for a field.
func (b *MemoryBackend) TTLPolicyState(ctx context.Context, collection, field string) (TTLState, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ttl[collection+"/"+field], nil
}

// EnableTTLPolicy marks a field's TTL policy as creating.
func (b *MemoryBackend) EnableTTLPolicy(ctx context.Context, collection, field string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ttl[collection+"/"+field] = TTLStateCreating
	return nil
}

// --- Value helpers ---

func copyFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return copyFields(tv)
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

func matchesFilters(fields map[string]any, filters []FieldFilter) (bool, error) {
	for _, f := range filters {
		value, ok := fields[f.Field]
		if !ok {
			// Absent fields never match, mirroring Firestore.
			return false, nil
		}
		match, err := matchesFilter(value, f)
		if err != nil {
			return false, err
		}
		if !match {
			return false, nil
		}
	}
	return true, nil
}

func matchesFilter(value any, f FieldFilter) (bool, error) {
	switch f.Op {
	case OpEqual:
		return valuesEqual(value, f.Value), nil
	case OpNotEqual:
		return !valuesEqual(value, f.Value), nil
	case OpLessThan, OpLessThanEqual, OpGreaterThan, OpGreaterThanEqual:
		cmp, ok := compareValues(value, f.Value)
		if !ok {
			return false, nil
		}
		switch f.Op {
		case OpLessThan:
			return cmp < 0, nil
		case OpLessThanEqual:
			return cmp <= 0, nil
		case OpGreaterThan:
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	case OpIn:
		members, ok := f.Value.([]any)
		if !ok {
			return false, fmt.Errorf("store: %q operator requires a slice value", f.Op)
		}
		for _, m := range members {
			if valuesEqual(value, m) {
				return true, nil
			}
		}
		return false, nil
	case OpNotIn:
		members, ok := f.Value.([]any)
		if !ok {
			return false, fmt.Errorf("store: %q operator requires a slice value", f.Op)
		}
		for _, m := range members {
			if valuesEqual(value, m) {
				return false, nil
			}
		}
		return true, nil
	case OpArrayContains:
		elems, ok := value.([]any)
		if !ok {
			return false, nil
		}
		for _, e := range elems {
			if valuesEqual(e, f.Value) {
				return true, nil
			}
		}
		return false, nil
	case OpArrayContainsAny:
		elems, ok := value.([]any)
		if !ok {
			return false, nil
		}
		members, mok := f.Value.([]any)
		if !mok {
			return false, fmt.Errorf("store: %q operator requires a slice value", f.Op)
		}
		for _, e := range elems {
			for _, m := range members {
				if valuesEqual(e, m) {
					return true, nil
				}
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("store: unknown operator %q", f.Op)
	}
}

func valuesEqual(a, b any) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two values of a comparable kind. Numbers compare
// across int64/float64, as stores with a unified number type do.
func compareValues(a, b any) (int, bool) {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

func hasOrderFields(fields map[string]any, orders []Order) bool {
	for _, o := range orders {
		if _, ok := fields[o.Field]; !ok {
			return false
		}
	}
	return true
}

func sortDocuments(docs []Document, orders []Order) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, o := range orders {
			cmp, ok := compareValues(docs[i].Fields[o.Field], docs[j].Fields[o.Field])
			if !ok || cmp == 0 {
				continue
			}
			if o.Direction == Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		// Tie-break on path, the store's implicit document ordering.
		return docs[i].Path < docs[j].Path
	})
}
