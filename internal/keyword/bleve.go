package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/healthrag/internal/models"
)

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

func documentMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	// Standard analyzer (lowercase + tokenize, no stemming) so drug and
	// condition names match exactly.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", text)
	docMapping.AddFieldMappingsAt("content", text)

	exact := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("source", exact)
	docMapping.AddFieldMappingsAt("category", exact)

	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates a new, empty Bleve index at path. The path must not exist.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("keyword index already exists at %s", path)
	}
	index, err := bleve.New(path, documentMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// OpenBleveIndex opens an existing Bleve index read-only.
func OpenBleveIndex(path string) (*BleveIndex, error) {
	index, err := bleve.OpenUsing(path, map[string]interface{}{"read_only": true})
	if err != nil {
		return nil, fmt.Errorf("failed to open Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// IndexBatch indexes documents by their ID in one batch.
func (b *BleveIndex) IndexBatch(ctx context.Context, docs []*models.Document) error {
	batch := b.index.NewBatch()
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := batch.Index(d.ID, map[string]interface{}{
			"title":    d.Title,
			"content":  d.Content,
			"source":   d.Source,
			"category": d.Category,
		})
		if err != nil {
			return fmt.Errorf("failed to index document %s: %w", d.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to write keyword batch: %w", err)
	}
	return nil
}

// Search matches query against titles and content and returns up to limit hits.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return []*KeywordResult{}, nil
	}
	if opts == nil {
		opts = &SearchOptions{}
	}
	boost := opts.TitleBoost
	if boost <= 0 {
		boost = DefaultTitleBoost
	}

	title := bleve.NewMatchQuery(query)
	title.SetField("title")
	title.SetBoost(boost)
	content := bleve.NewMatchQuery(query)
	content.SetField("content")
	if opts.Fuzzy {
		title.SetFuzziness(1)
		content.SetFuzziness(1)
	}

	var q blevequery.Query = bleve.NewDisjunctionQuery(title, content)
	if opts.Category != "" {
		cat := bleve.NewTermQuery(opts.Category)
		cat.SetField("category")
		q = bleve.NewConjunctionQuery(q, cat)
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &KeywordResult{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// DocCount returns the number of indexed documents.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
