package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ioxiocom/firedantic/internal/pathutil"
)

// FirestoreBackend adapts a Cloud Firestore client to the Backend
// interface.
type FirestoreBackend struct {
	client *firestore.Client
}

// NewFirestoreBackend creates a FirestoreBackend on top of an existing
// client. The caller keeps ownership of the client and is responsible for
// closing it.
func NewFirestoreBackend(client *firestore.Client) *FirestoreBackend {
	return &FirestoreBackend{client: client}
}

// Client returns the underlying Firestore client.
func (b *FirestoreBackend) Client() *firestore.Client {
	return b.client
}

func (b *FirestoreBackend) docRef(path string) (*firestore.DocumentRef, error) {
	if !pathutil.IsDocumentPath(path) {
		return nil, fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}
	return b.client.Doc(path), nil
}

// Put creates or replaces the document at path.
func (b *FirestoreBackend) Put(ctx context.Context, path string, fields map[string]any) error {
	ref, err := b.docRef(path)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, fields)
	return translateFirestoreErr(err, path)
}

// Get returns the fields of the document at path, or ErrNotFound.
func (b *FirestoreBackend) Get(ctx context.Context, path string) (map[string]any, error) {
	ref, err := b.docRef(path)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return nil, translateFirestoreErr(err, path)
	}
	return snap.Data(), nil
}

// Delete removes the document at path. Firestore deletes are silently
// successful for nonexistent documents.
func (b *FirestoreBackend) Delete(ctx context.Context, path string) error {
	ref, err := b.docRef(path)
	if err != nil {
		return err
	}
	_, err = ref.Delete(ctx)
	return translateFirestoreErr(err, path)
}

// RunQuery executes q. Errors surface from the iterator's Next.
func (b *FirestoreBackend) RunQuery(ctx context.Context, q Query) DocumentIterator {
	if !pathutil.IsCollectionPath(q.Collection) {
		return &memIterator{err: fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, q.Collection)}
	}
	return &fsIterator{
		collection: q.Collection,
		iter:       buildFirestoreQuery(b.client.Collection(q.Collection), q).Documents(ctx),
	}
}

// ListCollections returns the subcollection paths under the document at
// path.
func (b *FirestoreBackend) ListCollections(ctx context.Context, path string) ([]string, error) {
	ref, err := b.docRef(path)
	if err != nil {
		return nil, err
	}

	var cols []string
	it := ref.Collections(ctx)
	for {
		col, err := it.Next()
		if err == iterator.Done {
			return cols, nil
		}
		if err != nil {
			return nil, translateFirestoreErr(err, path)
		}
		cols = append(cols, pathutil.Join(path, col.ID))
	}
}

// RunTransaction delegates to the Firestore client, which retries aborted
// transactions up to its own budget before surfacing the error.
func (b *FirestoreBackend) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	err := b.client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		return fn(ctx, &fsTx{backend: b, tx: t})
	})
	if status.Code(err) == codes.Aborted {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func buildFirestoreQuery(col *firestore.CollectionRef, q Query) firestore.Query {
	fq := col.Query
	for _, f := range q.Filters {
		fq = fq.WhereEntity(firestore.PropertyFilter{
			Path:     f.Field,
			Operator: string(f.Op),
			Value:    f.Value,
		})
	}
	for _, o := range q.Orders {
		dir := firestore.Asc
		if o.Direction == Descending {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(o.Field, dir)
	}
	if q.Limit >= 0 {
		fq = fq.Limit(q.Limit)
	}
	if q.Offset > 0 {
		fq = fq.Offset(q.Offset)
	}
	return fq
}

type fsTx struct {
	backend *FirestoreBackend
	tx      *firestore.Transaction
}

func (t *fsTx) Get(ctx context.Context, path string) (map[string]any, error) {
	ref, err := t.backend.docRef(path)
	if err != nil {
		return nil, err
	}
	snap, err := t.tx.Get(ref)
	if err != nil {
		return nil, translateFirestoreErr(err, path)
	}
	return snap.Data(), nil
}

func (t *fsTx) Put(path string, fields map[string]any) error {
	ref, err := t.backend.docRef(path)
	if err != nil {
		return err
	}
	return t.tx.Set(ref, fields)
}

func (t *fsTx) Delete(path string) error {
	ref, err := t.backend.docRef(path)
	if err != nil {
		return err
	}
	return t.tx.Delete(ref)
}

func (t *fsTx) RunQuery(ctx context.Context, q Query) DocumentIterator {
	if !pathutil.IsCollectionPath(q.Collection) {
		return &memIterator{err: fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, q.Collection)}
	}
	col := t.backend.client.Collection(q.Collection)
	return &fsIterator{
		collection: q.Collection,
		iter:       t.tx.Documents(buildFirestoreQuery(col, q)),
	}
}

type fsIterator struct {
	collection string
	iter       *firestore.DocumentIterator
}

func (it *fsIterator) Next() (Document, error) {
	snap, err := it.iter.Next()
	if err != nil {
		// iterator.Done passes through untouched.
		return Document{}, err
	}
	return Document{
		Path:   pathutil.Join(it.collection, snap.Ref.ID),
		Fields: snap.Data(),
	}, nil
}

func (it *fsIterator) Stop() {
	it.iter.Stop()
}

// translateFirestoreErr maps Firestore transport errors onto the package's
// sentinel errors. Absence and malformed-path errors become ErrNotFound and
// ErrInvalidPath so callers never see grpc status codes.
func translateFirestoreErr(err error, path string) error {
	switch status.Code(err) {
	case codes.OK:
		return nil
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s: %v", ErrInvalidPath, path, err)
	default:
		return err
	}
}
