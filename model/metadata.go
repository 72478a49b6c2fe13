package model

import "github.com/ioxiocom/firedantic/store"

// Model is the interface for top-level model types. The collection name is
// fixed and declared on the value type, so a zero value is enough to
// inspect it.
type Model interface {
	// Collection returns the collection name, without the configured
	// prefix.
	Collection() string
}

// SubModel is the interface for models stored in a subcollection. The
// template contains {field} placeholders resolved from a parent model's
// field values, e.g. "users/{id}/orders".
type SubModel interface {
	// CollectionTemplate returns the subcollection path template.
	CollectionTemplate() string
}

// CustomIDField is implemented by model types whose document ID lives in a
// field other than "id". The returned name refers to the serialized field
// name (the firedantic tag alias, or the Go field name when untagged).
type CustomIDField interface {
	DocumentIDField() string
}

// TTLFielder is implemented by model types with an automatic-expiry field.
// The store deletes documents once the timestamp in that field passes.
type TTLFielder interface {
	// TTLField returns the serialized name of the expiry timestamp field.
	TTLField() string
}

// CompositeIndexer is implemented by model types that declare composite
// indexes, created during provisioning by SetUpCompositeIndexes.
type CompositeIndexer interface {
	CompositeIndexes() []store.IndexDefinition
}

// defaultIDField is the document ID field name used when a model type does
// not implement CustomIDField.
const defaultIDField = "id"
