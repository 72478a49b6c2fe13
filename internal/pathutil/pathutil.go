// Package pathutil provides helpers for hierarchical document paths.
//
// A path is a "/"-separated sequence of non-empty segments. Paths with an
// odd number of segments address collections ("users", "users/u1/orders"),
// paths with an even number address documents ("users/u1").
package pathutil

import "strings"

// Split splits a path into its segments. An empty path yields nil.
func Split(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// Join joins segments into a path.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// IsDocumentPath reports whether path addresses a document
// (non-empty, an even number of segments, no empty segments).
func IsDocumentPath(path string) bool {
	segments := Split(path)
	if len(segments) == 0 || len(segments)%2 != 0 {
		return false
	}
	for _, s := range segments {
		if s == "" {
			return false
		}
	}
	return true
}

// IsCollectionPath reports whether path addresses a collection
// (non-empty, an odd number of segments, no empty segments).
func IsCollectionPath(path string) bool {
	segments := Split(path)
	if len(segments) == 0 || len(segments)%2 != 1 {
		return false
	}
	for _, s := range segments {
		if s == "" {
			return false
		}
	}
	return true
}

// Parent returns the path with its last segment removed. The parent of a
// document path is its collection, and vice versa. Returns "" for a
// single-segment path.
func Parent(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return ""
	}
	return path[:i]
}

// LastSegment returns the final segment of a path. For a document path this
// is the document ID.
func LastSegment(path string) string {
	i := strings.LastIndexByte(path, '/')
	return path[i+1:]
}
