package model

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/ioxiocom/firedantic/internal/pathutil"
	"github.com/ioxiocom/firedantic/store"
)

// defaultTruncateBatchSize is the enumeration batch size used by
// TruncateCollection.
const defaultTruncateBatchSize = 128

// Manager provides the persistence operations for one model type. It is
// stateless apart from its configuration and may be shared freely between
// goroutines; per-operation state lives in the call.
//
// T must be a struct type implementing either Model (fixed collection) or
// SubModel (template-based subcollection). A subcollection manager must be
// bound with ForParent before issuing operations.
type Manager[T any] struct {
	cfg      *Config
	mapper   *mapper
	typeName string

	// template is non-nil for subcollection models.
	template *PathTemplate

	// collection is the resolved collection path without the prefix.
	// For subcollection models it is empty until ForParent binds it.
	collection string
}

// ClientOption selects the configuration a Manager or transaction uses.
type ClientOption func(*clientSettings)

type clientSettings struct {
	name string
	cfg  *Config
}

// WithClient selects a named configuration registered with ConfigureNamed.
func WithClient(name string) ClientOption {
	return func(s *clientSettings) { s.name = name }
}

// WithConfig uses an explicit configuration, bypassing the process-wide
// registry entirely.
func WithConfig(cfg *Config) ClientOption {
	return func(s *clientSettings) { s.cfg = cfg }
}

func resolveConfig(opts []ClientOption) (*Config, error) {
	s := &clientSettings{name: DefaultName}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg != nil {
		cfg := *s.cfg
		cfg.validate()
		return &cfg, nil
	}
	return getConfig(s.name)
}

// NewManager creates a Manager for T using the default (or selected)
// configuration. It fails when T declares no collection, when a declared
// template does not parse, or when the document ID field is missing.
func NewManager[T any](opts ...ClientOption) (*Manager[T], error) {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, err
	}

	t := reflect.TypeOf((*T)(nil)).Elem()
	m := &Manager[T]{cfg: cfg, typeName: t.Name()}

	idName := defaultIDField
	if namer, ok := metaValue[T, CustomIDField](); ok {
		idName = namer.DocumentIDField()
	}
	m.mapper, err = newMapper(t, idName)
	if err != nil {
		return nil, err
	}

	switch {
	case hasMeta[T, Model]():
		mdl, _ := metaValue[T, Model]()
		if mdl.Collection() == "" {
			return nil, fmt.Errorf("%w: %s returns an empty collection name", ErrCollectionNotDefined, m.typeName)
		}
		m.collection = mdl.Collection()
	case hasMeta[T, SubModel]():
		sub, _ := metaValue[T, SubModel]()
		m.template, err = ParsePathTemplate(sub.CollectionTemplate())
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s implements neither Model nor SubModel", ErrCollectionNotDefined, m.typeName)
	}

	return m, nil
}

// metaValue returns T's metadata interface M, checking both the value and
// pointer method sets.
func metaValue[T any, M any]() (M, bool) {
	var zero T
	if m, ok := any(zero).(M); ok {
		return m, true
	}
	m, ok := any(&zero).(M)
	return m, ok
}

func hasMeta[T any, M any]() bool {
	_, ok := metaValue[T, M]()
	return ok
}

// CollectionName returns the fully-qualified collection path, with the
// configured prefix applied. For subcollection models it requires a bound
// manager.
func (m *Manager[T]) CollectionName() (string, error) {
	if m.collection == "" {
		return "", fmt.Errorf("%w: %s must be bound with ForParent before use", ErrCollectionNotDefined, m.typeName)
	}
	return m.cfg.Prefix + m.collection, nil
}

// ForParent returns a copy of the manager bound to the subcollection under
// parent. The parent's field values are snapshotted at bind time; mutating
// the parent afterwards does not re-resolve the path.
func (m *Manager[T]) ForParent(parent any) (*Manager[T], error) {
	if m.template == nil {
		return nil, fmt.Errorf("%w: %s is not a subcollection model", ErrCollectionNotDefined, m.typeName)
	}
	values, err := parentFieldValues(parent)
	if err != nil {
		return nil, err
	}
	resolved, err := m.template.Resolve(values)
	if err != nil {
		return nil, err
	}

	bound := *m
	bound.collection = resolved
	return &bound, nil
}

// parentFieldValues serializes a parent model's fields, document ID
// included, for template substitution.
func parentFieldValues(parent any) (map[string]any, error) {
	v := reflect.ValueOf(parent)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("%w: nil parent", ErrCollectionNotDefined)
		}
		v = v.Elem()
	}
	spec, err := specForType(v.Type())
	if err != nil {
		return nil, err
	}

	values := make(map[string]any, len(spec.fields))
	for _, f := range spec.fields {
		values[f.name] = encodeValue(v.FieldByIndex(f.index))
	}
	return values, nil
}

// Save upserts the model. A model without a document ID gets a generated
// one, which is written back to the model on success; a caller-supplied ID
// is validated first.
func (m *Manager[T]) Save(ctx context.Context, model *T, opts ...Option) error {
	s := applyOptions(opts)
	col, err := m.CollectionName()
	if err != nil {
		return err
	}

	v := reflect.ValueOf(model).Elem()
	id := m.mapper.documentID(v)
	generated := false
	if id == "" {
		id = uuid.NewString()
		generated = true
	} else if err := validateDocumentID(id); err != nil {
		return err
	}

	fields := m.mapper.toDocument(v, s.omitZero)
	path := pathutil.Join(col, id)

	if s.tx != nil {
		err = s.tx.raw.Put(path, fields)
	} else {
		err = m.cfg.Backend.Put(ctx, path, fields)
	}
	if err != nil {
		return err
	}

	if generated {
		m.mapper.setDocumentID(v, id)
	}
	return nil
}

// Delete removes the model's document. The store treats deleting an absent
// document as success, but the model must carry a valid ID.
func (m *Manager[T]) Delete(ctx context.Context, model *T, opts ...Option) error {
	s := applyOptions(opts)
	col, err := m.CollectionName()
	if err != nil {
		return err
	}

	id := m.mapper.documentID(reflect.ValueOf(model).Elem())
	if err := validateDocumentID(id); err != nil {
		return err
	}
	path := pathutil.Join(col, id)

	if s.tx != nil {
		return s.tx.raw.Delete(path)
	}
	return m.cfg.Backend.Delete(ctx, path)
}

// Reload overwrites the in-memory model with the persisted state,
// preserving its identity.
func (m *Manager[T]) Reload(ctx context.Context, model *T, opts ...Option) error {
	v := reflect.ValueOf(model).Elem()
	id := m.mapper.documentID(v)
	if id == "" {
		return fmt.Errorf("%w: cannot reload unsaved %s", ErrModelNotFound, m.typeName)
	}

	fresh, err := m.GetByDocID(ctx, id, opts...)
	if err != nil {
		return err
	}
	v.Set(reflect.ValueOf(fresh).Elem())
	return nil
}

// GetByID fetches a model by its document ID. Absence, an empty ID and a
// structurally invalid ID all report ErrModelNotFound; transport errors for
// malformed paths never leak.
func (m *Manager[T]) GetByID(ctx context.Context, id string, opts ...Option) (*T, error) {
	return m.GetByDocID(ctx, id, opts...)
}

// GetByDocID fetches a model by its raw document-path segment.
func (m *Manager[T]) GetByDocID(ctx context.Context, docID string, opts ...Option) (*T, error) {
	s := applyOptions(opts)
	col, err := m.CollectionName()
	if err != nil {
		return nil, err
	}
	if err := validateDocumentID(docID); err != nil {
		return nil, m.notFoundErr(docID, err)
	}
	path := pathutil.Join(col, docID)

	var fields map[string]any
	if s.tx != nil {
		fields, err = s.tx.raw.Get(ctx, path)
	} else {
		fields, err = m.cfg.Backend.Get(ctx, path)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidPath) {
			return nil, m.notFoundErr(docID, err)
		}
		return nil, err
	}

	return m.decodeDocument(store.Document{Path: path, Fields: fields})
}

// Find returns a lazy iterator over the models matching filter, in the
// order given by OrderBy options. The iterator is single-pass: each
// document is decoded once and partial consumption is valid.
func (m *Manager[T]) Find(ctx context.Context, filter Filter, opts ...Option) *Iterator[T] {
	s := applyOptions(opts)
	col, err := m.CollectionName()
	if err != nil {
		return &Iterator[T]{err: err}
	}
	q, err := buildQuery(col, filter, s)
	if err != nil {
		return &Iterator[T]{err: err}
	}

	var src store.DocumentIterator
	if s.tx != nil {
		src = s.tx.raw.RunQuery(ctx, q)
	} else {
		src = m.cfg.Backend.RunQuery(ctx, q)
	}
	return &Iterator[T]{manager: m, src: src}
}

// FindOne returns the first model matching filter under the declared order,
// or ErrModelNotFound when nothing matches.
func (m *Manager[T]) FindOne(ctx context.Context, filter Filter, opts ...Option) (*T, error) {
	it := m.Find(ctx, filter, append(opts, WithLimit(1))...)
	defer it.Stop()

	model, err := it.Next()
	if err == iterator.Done {
		return nil, fmt.Errorf("%w: no %s matches the filter", ErrModelNotFound, m.typeName)
	}
	if err != nil {
		return nil, err
	}
	return model, nil
}

// TruncateCollection deletes every document currently enumerable in the
// collection and returns the number removed. It is non-transactional and
// best-effort: a failure partway leaves the collection partially truncated,
// and concurrent writers can race with the enumeration. Intended for tests
// and maintenance.
func (m *Manager[T]) TruncateCollection(ctx context.Context, opts ...Option) (int, error) {
	s := applyOptions(opts)
	col, err := m.CollectionName()
	if err != nil {
		return 0, err
	}

	count := 0
	for {
		paths, err := m.listDocumentPaths(ctx, col, s.batchSize)
		if err != nil {
			return count, err
		}
		for _, path := range paths {
			if err := m.cfg.Backend.Delete(ctx, path); err != nil {
				return count, err
			}
			count++
		}
		m.cfg.Logger.Debug("truncate batch removed",
			"collection", col, "batch", len(paths), "total", count)
		if len(paths) < s.batchSize {
			return count, nil
		}
	}
}

func (m *Manager[T]) listDocumentPaths(ctx context.Context, col string, limit int) ([]string, error) {
	src := m.cfg.Backend.RunQuery(ctx, store.Query{Collection: col, Limit: limit})
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

// TTLField returns the model type's declared expiry field, or "".
func (m *Manager[T]) TTLField() string {
	if holder, ok := metaValue[T, TTLFielder](); ok {
		return holder.TTLField()
	}
	return ""
}

// CompositeIndexes returns the model type's declared composite indexes.
func (m *Manager[T]) CompositeIndexes() []store.IndexDefinition {
	if indexer, ok := metaValue[T, CompositeIndexer](); ok {
		return indexer.CompositeIndexes()
	}
	return nil
}

func (m *Manager[T]) decodeDocument(doc store.Document) (*T, error) {
	docID := decodeDocumentID(doc.Path)
	if conflicting, ok := doc.Fields[m.mapper.idName]; ok {
		m.cfg.Logger.Warn("document payload contains conflicting identifier field",
			"model", m.typeName, "doc_id", docID,
			"field", m.mapper.idName, "payload_value", conflicting)
	}

	model := new(T)
	v := reflect.ValueOf(model).Elem()
	if err := m.mapper.fromDocument(doc.Fields, docID, v); err != nil {
		return nil, fmt.Errorf("firedantic: decoding %s %q: %w", m.typeName, docID, err)
	}
	return model, nil
}

func (m *Manager[T]) notFoundErr(docID string, cause error) error {
	return fmt.Errorf("%w: no %s with %s %q: %v",
		ErrModelNotFound, m.typeName, m.mapper.idName, docID, cause)
}
