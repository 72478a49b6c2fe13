package model

import "errors"

var (
	// ErrModelNotFound is returned when no document exists for the
	// requested identifier or filter. Structurally invalid identifiers
	// passed to lookups are reported as not found as well, so transport
	// errors for malformed paths never leak to callers.
	ErrModelNotFound = errors.New("firedantic: model not found")

	// ErrInvalidDocumentID is returned when a document ID fails
	// structural validation, for example at save time.
	ErrInvalidDocumentID = errors.New("firedantic: invalid document ID")

	// ErrCollectionNotDefined is returned when a model type declares
	// neither a collection name nor a resolvable subcollection template.
	ErrCollectionNotDefined = errors.New("firedantic: collection not defined")

	// ErrInvalidFilterOperator is returned when a find filter uses an
	// operator symbol that is not in the supported set.
	ErrInvalidFilterOperator = errors.New("firedantic: invalid filter operator")

	// ErrConfigurationNotFound is returned when a named configuration has
	// not been registered with Configure or ConfigureNamed.
	ErrConfigurationNotFound = errors.New("firedantic: configuration not found")

	// ErrInvalidModel is returned when a type cannot be used as a model,
	// for example when its document ID field is missing or not a string.
	ErrInvalidModel = errors.New("firedantic: invalid model type")
)
