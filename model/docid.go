package model

import (
	"fmt"
	"strings"

	"github.com/ioxiocom/firedantic/internal/pathutil"
)

// maxDocumentIDBytes is the store's document ID size limit.
const maxDocumentIDBytes = 1500

// validateDocumentID checks that id is a legal single document-path
// segment. A segment containing a separator would silently address a
// different collection level, so it is rejected outright.
func validateDocumentID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: must not be an empty string", ErrInvalidDocumentID)
	}
	if len(id) > maxDocumentIDBytes {
		return fmt.Errorf("%w: must be no longer than %d bytes", ErrInvalidDocumentID, maxDocumentIDBytes)
	}
	if strings.ContainsRune(id, '/') {
		return fmt.Errorf("%w: must not contain a forward slash (/)", ErrInvalidDocumentID)
	}
	if id == "." || id == ".." {
		return fmt.Errorf("%w: must not consist solely of a single or double period", ErrInvalidDocumentID)
	}
	if len(id) >= 4 && strings.HasPrefix(id, "__") && strings.HasSuffix(id, "__") {
		return fmt.Errorf("%w: must not match __.*__", ErrInvalidDocumentID)
	}
	return nil
}

// decodeDocumentID recovers the document ID from a full document path, as
// returned by query enumeration.
func decodeDocumentID(path string) string {
	return pathutil.LastSegment(path)
}
