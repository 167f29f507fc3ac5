// Package vector provides the similarity-searchable store of chunk embeddings.
package vector

import (
	"context"
	"errors"
	"sort"
)

// ErrDimensionMismatch is returned when a vector or a persisted index does
// not have the dimensionality the index was created with.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// VectorIndex stores embeddings by chunk ID. It is filled once at build time,
// persisted, and only searched after loading.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	// Search returns up to k hits ordered by descending score. Equal scores
	// keep insertion order.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	// Save writes the index to files whose names start with path.
	Save(path string) error
	// Load replaces the contents with the index saved at path. A missing file
	// or a different dimensionality is an error.
	Load(path string) error
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// VectorResult is a single vector search hit. ID is the chunk ID.
type VectorResult struct {
	ID    string
	Score float64 // Inner product; cosine similarity for normalized vectors
}

type scored struct {
	pos   int
	score float64
}

// topK returns the k best positions by descending score, ties broken by position.
func topK(scores []scored, k int) []scored {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].pos < scores[j].pos
	})
	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k]
}
