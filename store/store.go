package store

import "context"

// Operator is a native query operator understood by a Backend.
type Operator string

const (
	OpEqual            Operator = "=="
	OpNotEqual         Operator = "!="
	OpLessThan         Operator = "<"
	OpLessThanEqual    Operator = "<="
	OpGreaterThan      Operator = ">"
	OpGreaterThanEqual Operator = ">="
	OpIn               Operator = "in"
	OpNotIn            Operator = "not-in"
	OpArrayContains    Operator = "array-contains"
	OpArrayContainsAny Operator = "array-contains-any"
)

// Direction is a sort direction for query ordering and index fields.
type Direction string

const (
	Ascending  Direction = "ASCENDING"
	Descending Direction = "DESCENDING"
)

// FieldFilter is a single field predicate. Multiple filters in a Query are
// conjoined with AND semantics.
type FieldFilter struct {
	Field string
	Op    Operator
	Value any
}

// Order is a single sort key. Multiple orders form a stable multi-key sort.
type Order struct {
	Field     string
	Direction Direction
}

// Query describes a collection query in the store's native representation.
type Query struct {
	// Collection is the full collection path, e.g. "users/u1/orders".
	Collection string

	Filters []FieldFilter
	Orders  []Order

	// Limit caps the number of results. A negative value means unbounded;
	// zero is a valid limit returning no documents.
	Limit int

	// Offset skips the first N results under the effective order.
	Offset int
}

// Document is a raw document returned from a query: its full path and its
// field payload.
type Document struct {
	Path   string
	Fields map[string]any
}

// DocumentIterator is a single-pass cursor over query results. Next returns
// iterator.Done (google.golang.org/api/iterator) when exhausted. Iterators
// are not safe for concurrent use.
type DocumentIterator interface {
	Next() (Document, error)
	Stop()
}

// Tx is a transaction handle. Reads go through the transaction's consistent
// snapshot; writes are buffered until commit. All reads must happen before
// any write or Get/RunQuery return ErrReadAfterWrite.
type Tx interface {
	Get(ctx context.Context, path string) (map[string]any, error)
	Put(path string, fields map[string]any) error
	Delete(path string) error
	RunQuery(ctx context.Context, q Query) DocumentIterator
}

// Backend is the document store capability consumed by the model layer.
//
// Paths are "/"-separated: an even number of segments addresses a document,
// an odd number a collection. Implementations own connection pooling and
// transport-level retries.
type Backend interface {
	// Put creates or replaces the document at path.
	Put(ctx context.Context, path string, fields map[string]any) error

	// Get returns the fields of the document at path, or ErrNotFound.
	Get(ctx context.Context, path string) (map[string]any, error)

	// Delete removes the document at path. Deleting a nonexistent
	// document succeeds silently.
	Delete(ctx context.Context, path string) error

	// RunQuery executes q. Errors, including an invalid collection path,
	// surface from the iterator's Next.
	RunQuery(ctx context.Context, q Query) DocumentIterator

	// ListCollections returns the full paths of the subcollections under
	// the document at path. A document can have subcollections whether or
	// not it exists itself.
	ListCollections(ctx context.Context, path string) ([]string, error)

	// RunTransaction runs fn inside a transaction and commits it. On a
	// write conflict the whole fn is re-executed up to the backend's
	// retry budget, after which ErrConflict (or the backend's aborted
	// error) is returned. fn must be safe to run more than once.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// IndexField is one field of a composite index.
type IndexField struct {
	Name  string
	Order Direction
}

// IndexDefinition is a declarative composite index specification.
type IndexDefinition struct {
	// QueryScope is either ScopeCollection or ScopeCollectionGroup.
	QueryScope string

	Fields []IndexField
}

const (
	ScopeCollection      = "COLLECTION"
	ScopeCollectionGroup = "COLLECTION_GROUP"
)

// TTLState is the lifecycle state of a TTL policy on a collection field.
type TTLState int

const (
	TTLStateUnspecified TTLState = iota
	TTLStateCreating
	TTLStateActive
	TTLStateNeedsRepair
)

func (s TTLState) String() string {
	switch s {
	case TTLStateCreating:
		return "CREATING"
	case TTLStateActive:
		return "ACTIVE"
	case TTLStateNeedsRepair:
		return "NEEDS_REPAIR"
	default:
		return "UNSPECIFIED"
	}
}

// Admin is the administrative index/TTL capability. It is separate from
// Backend because index management typically requires elevated credentials
// and is only exercised during provisioning.
type Admin interface {
	// ListCompositeIndexes returns the composite indexes that already
	// exist for the collection group.
	ListCompositeIndexes(ctx context.Context, collection string) ([]IndexDefinition, error)

	// CreateCompositeIndex starts creation of a composite index. Index
	// builds are long-running on real stores; this call does not wait
	// for completion.
	CreateCompositeIndex(ctx context.Context, collection string, index IndexDefinition) error

	// TTLPolicyState reports the state of the TTL policy on a field.
	TTLPolicyState(ctx context.Context, collection, field string) (TTLState, error)

	// EnableTTLPolicy starts enabling automatic expiry on a timestamp
	// field of the collection group.
	EnableTTLPolicy(ctx context.Context, collection, field string) error
}
