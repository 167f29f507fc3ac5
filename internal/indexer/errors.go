package indexer

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexMissing is returned when the index directory or one of its files does not exist.
	ErrIndexMissing = errors.New("index not found")
	// ErrDimensionMismatch is returned when the index was built with embeddings of a
	// different size than the configured embedding model produces.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrModelMismatch is returned when the index was built with a different embedding model.
	ErrModelMismatch = errors.New("embedding model mismatch")
)

// IndexLoadError reports an index directory that is missing, corrupt, or
// incompatible with the configured embedding model.
type IndexLoadError struct {
	Dir string
	Err error
}

func (e *IndexLoadError) Error() string {
	return fmt.Sprintf("load index %s: %v", e.Dir, e.Err)
}

func (e *IndexLoadError) Unwrap() error { return e.Err }
