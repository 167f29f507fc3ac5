// Package embedding maps text to dense vectors. The same Embedder must be
// used at index build time and at query time.
package embedding

import (
	"context"
	"fmt"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// checkDimensions rejects vectors whose length differs from the configured dimensionality.
func checkDimensions(vecs [][]float32, dims int) error {
	for i, v := range vecs {
		if len(v) != dims {
			return fmt.Errorf("embedding %d has %d dimensions, expected %d", i, len(v), dims)
		}
	}
	return nil
}
