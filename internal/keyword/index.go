// Package keyword provides a full-text index over corpus documents so operators
// can browse what the assistant knows about a topic.
package keyword

import (
	"context"

	"github.com/hyperjump/healthrag/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// TitleBoost multiplies the score contribution of title matches. Values <= 0 use DefaultTitleBoost.
	TitleBoost float64
	// Category restricts hits to documents with exactly this category.
	Category string
	// Fuzzy tolerates one edit per term.
	Fuzzy bool
}

// DefaultTitleBoost ranks a match in a document title above a match in its body.
const DefaultTitleBoost = 3.0

// KeywordIndex defines keyword search operations.
type KeywordIndex interface {
	IndexBatch(ctx context.Context, docs []*models.Document) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit. ID is the document ID.
type KeywordResult struct {
	ID    string
	Score float64
}
