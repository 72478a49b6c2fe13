package model

import (
	"google.golang.org/api/iterator"

	"github.com/ioxiocom/firedantic/store"
)

// Iterator is a lazy, single-pass cursor over find results. Each document
// is decoded on demand and exactly once; consuming the iterator issues no
// further queries, and stopping early is valid. Not safe for concurrent
// use.
type Iterator[T any] struct {
	manager *Manager[T]
	src     store.DocumentIterator
	err     error
}

// Next returns the next model. It returns iterator.Done
// (google.golang.org/api/iterator) once the results are exhausted.
func (it *Iterator[T]) Next() (*T, error) {
	if it.err != nil {
		return nil, it.err
	}

	doc, err := it.src.Next()
	if err != nil {
		// iterator.Done passes through untouched.
		return nil, err
	}
	return it.manager.decodeDocument(doc)
}

// Stop releases the iterator's resources. It is safe to call Stop more
// than once or after Next returned iterator.Done.
func (it *Iterator[T]) Stop() {
	if it.src != nil {
		it.src.Stop()
	}
}

// All drains the iterator into a slice and stops it.
func (it *Iterator[T]) All() ([]*T, error) {
	defer it.Stop()

	var models []*T
	for {
		model, err := it.Next()
		if err == iterator.Done {
			return models, nil
		}
		if err != nil {
			return nil, err
		}
		models = append(models, model)
	}
}
