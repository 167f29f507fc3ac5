// Package retriever wraps the vector index with the fixed similarity search policy.
package retriever

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/healthrag/internal/models"
)

// DefaultK is the number of chunks retrieved per question.
const DefaultK = 5

// QueryEmbedder embeds a question with the model the index was built with.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkSearcher searches chunk embeddings. *indexer.Index implements it.
type ChunkSearcher interface {
	Search(ctx context.Context, query []float32, k int) ([]*models.ScoredChunk, error)
}

// RetrievalError reports an embedding or search failure for a single question.
type RetrievalError struct {
	Op  string // "embed" or "search"
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval %s: %v", e.Op, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// Retriever embeds questions and returns the k nearest chunks.
type Retriever struct {
	embedder QueryEmbedder
	index    ChunkSearcher
	k        int
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithK overrides the number of chunks returned. Values <= 0 are ignored.
func WithK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.k = k
		}
	}
}

// WithLogger sets a logger for retrieval debug output.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// New creates a retriever over index using embedder for questions.
func New(embedder QueryEmbedder, index ChunkSearcher, opts ...Option) (*Retriever, error) {
	if embedder == nil {
		return nil, errors.New("retriever: embedder must not be nil")
	}
	if index == nil {
		return nil, errors.New("retriever: index must not be nil")
	}
	r := &Retriever{embedder: embedder, index: index, k: DefaultK, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// K returns the number of chunks retrieved per question.
func (r *Retriever) K() int { return r.k }

// Retrieve returns up to k chunks for question, most relevant first. A
// question that matches nothing yields an empty slice and no error.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]*models.ScoredChunk, error) {
	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, &RetrievalError{Op: "embed", Err: err}
	}
	hits, err := r.index.Search(ctx, vec, r.k)
	if err != nil {
		return nil, &RetrievalError{Op: "search", Err: err}
	}
	if hits == nil {
		hits = []*models.ScoredChunk{}
	}
	r.logger.Debug("retrieved chunks", zap.Int("count", len(hits)), zap.Int("k", r.k))
	return hits, nil
}
