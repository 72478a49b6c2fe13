package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/ioxiocom/firedantic/store"
)

// ModelDescriptor is the type-erased view of a Manager used by the
// administrative setup helpers, which iterate managers of different model
// types.
type ModelDescriptor interface {
	CollectionName() (string, error)
	TTLField() string
	CompositeIndexes() []store.IndexDefinition
}

// Ascending builds an ascending index field.
func Ascending(name string) store.IndexField {
	return store.IndexField{Name: name, Order: store.Ascending}
}

// Descending builds a descending index field.
func Descending(name string) store.IndexField {
	return store.IndexField{Name: name, Order: store.Descending}
}

// CollectionIndex builds a composite index scoped to a single collection.
func CollectionIndex(fields ...store.IndexField) store.IndexDefinition {
	return store.IndexDefinition{QueryScope: store.ScopeCollection, Fields: fields}
}

// CollectionGroupIndex builds a composite index scoped to a collection
// group: every collection with the same name at any depth.
func CollectionGroupIndex(fields ...store.IndexField) store.IndexDefinition {
	return store.IndexDefinition{QueryScope: store.ScopeCollectionGroup, Fields: fields}
}

// SetUpCompositeIndexes creates the composite indexes declared by the given
// models. Indexes that already exist are skipped; models declaring no
// indexes are a no-op. Index builds are long-running and are not waited
// for.
func SetUpCompositeIndexes(ctx context.Context, models []ModelDescriptor, opts ...ClientOption) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	if cfg.Admin == nil {
		return fmt.Errorf("firedantic: no admin capability configured")
	}

	for _, m := range models {
		indexes := m.CompositeIndexes()
		if len(indexes) == 0 {
			continue
		}
		collection, err := m.CollectionName()
		if err != nil {
			return err
		}

		existing, err := cfg.Admin.ListCompositeIndexes(ctx, collection)
		if err != nil {
			return err
		}
		known := make(map[string]bool, len(existing))
		for _, def := range existing {
			known[indexKey(def)] = true
		}

		for _, def := range indexes {
			if known[indexKey(def)] {
				cfg.Logger.Debug("composite index already exists",
					"collection", collection, "index", indexKey(def))
				continue
			}
			cfg.Logger.Info("creating composite index",
				"collection", collection, "index", indexKey(def))
			if err := cfg.Admin.CreateCompositeIndex(ctx, collection, def); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetUpCompositeIndexesAndTTLPolicies runs both provisioning steps for the
// given models.
func SetUpCompositeIndexesAndTTLPolicies(ctx context.Context, models []ModelDescriptor, opts ...ClientOption) error {
	if err := SetUpCompositeIndexes(ctx, models, opts...); err != nil {
		return err
	}
	return SetUpTTLPolicies(ctx, models, opts...)
}

// indexKey renders an index definition into a comparable form.
func indexKey(def store.IndexDefinition) string {
	parts := make([]string, 0, len(def.Fields)+1)
	parts = append(parts, def.QueryScope)
	for _, f := range def.Fields {
		parts = append(parts, f.Name+":"+string(f.Order))
	}
	return strings.Join(parts, ",")
}
