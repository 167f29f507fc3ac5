package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/healthrag/internal/embedding"
	"github.com/hyperjump/healthrag/internal/keyword"
	"github.com/hyperjump/healthrag/internal/models"
	"github.com/hyperjump/healthrag/internal/storage"
	"github.com/hyperjump/healthrag/internal/vector"
)

// Index is a loaded, read-only index directory. It is safe for concurrent searches.
type Index struct {
	dir      string
	manifest *Manifest
	vectors  vector.VectorIndex
	store    storage.Storage
	keywords keyword.KeywordIndex
}

// Stats summarizes a loaded index.
type Stats struct {
	Manifest  *Manifest `json:"manifest"`
	Documents int64     `json:"documents"`
	Chunks    int64     `json:"chunks"`
	Vectors   int       `json:"vectors"`
	DiskBytes int64     `json:"disk_bytes"`
}

type openOptions struct {
	model  string
	logger *zap.Logger
}

// OpenOption configures Open.
type OpenOption func(*openOptions)

// WithExpectedModel rejects indexes built with a different embedding model.
// Indexes that did not record a model are accepted.
func WithExpectedModel(model string) OpenOption {
	return func(o *openOptions) { o.model = model }
}

// WithOpenLogger sets a logger for load events.
func WithOpenLogger(l *zap.Logger) OpenOption {
	return func(o *openOptions) { o.logger = l }
}

// Open loads the index in dir for querying with embedder. Every failure is an
// *IndexLoadError; a dimensionality that differs from the embedder's wraps
// ErrDimensionMismatch. A nil embedder skips the compatibility checks; such an
// index serves keyword browsing and stats only.
func Open(dir string, embedder embedding.Embedder, opts ...OpenOption) (*Index, error) {
	o := &openOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	ix, err := open(dir, embedder, o)
	if err != nil {
		return nil, &IndexLoadError{Dir: dir, Err: err}
	}
	o.logger.Info("index loaded",
		zap.String("dir", dir),
		zap.String("build_id", ix.manifest.BuildID),
		zap.String("type", ix.manifest.IndexType),
		zap.Int("chunks", ix.manifest.ChunkCount),
	)
	return ix, nil
}

func open(dir string, embedder embedding.Embedder, o *openOptions) (_ *Index, err error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrIndexMissing
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	if embedder != nil && m.Dimensions != embedder.Dimensions() {
		return nil, fmt.Errorf("%w: index built with %d-dimension embeddings, embedding model produces %d",
			ErrDimensionMismatch, m.Dimensions, embedder.Dimensions())
	}
	if embedder != nil && o.model != "" && m.EmbeddingModel != "" && o.model != m.EmbeddingModel {
		return nil, fmt.Errorf("%w: index built with %q, configured %q", ErrModelMismatch, m.EmbeddingModel, o.model)
	}

	ix := &Index{dir: dir, manifest: m}
	defer func() {
		if err != nil {
			_ = ix.Close()
		}
	}()

	ix.vectors, err = vector.NewVectorIndex(m.IndexType, m.Dimensions)
	if err != nil {
		return nil, err
	}
	if err := ix.vectors.Load(filepath.Join(dir, vector.FileName(m.IndexType))); err != nil {
		if errors.Is(err, vector.ErrDimensionMismatch) {
			return nil, fmt.Errorf("%w: %w", ErrDimensionMismatch, err)
		}
		return nil, fmt.Errorf("load vectors: %w", err)
	}
	if ix.vectors.Size() != m.ChunkCount {
		return nil, fmt.Errorf("vector count %d does not match manifest chunk count %d", ix.vectors.Size(), m.ChunkCount)
	}

	store, err := storage.OpenSQLiteStorageReadOnly(filepath.Join(dir, CorpusDBFile))
	if err != nil {
		return nil, err
	}
	ix.store = store
	n, err := store.CountChunks(context.Background())
	if err != nil {
		return nil, err
	}
	if int(n) != m.ChunkCount {
		return nil, fmt.Errorf("stored chunk count %d does not match manifest chunk count %d", n, m.ChunkCount)
	}

	kw, err := keyword.OpenBleveIndex(filepath.Join(dir, KeywordDir))
	if err != nil {
		return nil, err
	}
	ix.keywords = kw
	return ix, nil
}

// Manifest returns the manifest the index was built with.
func (ix *Index) Manifest() *Manifest { return ix.manifest }

// Size returns the number of indexed chunks.
func (ix *Index) Size() int { return ix.vectors.Size() }

// Dimensions returns the embedding dimensionality of the index.
func (ix *Index) Dimensions() int { return ix.manifest.Dimensions }

// Search returns up to k chunks nearest to query, most similar first. An
// empty index yields an empty slice.
func (ix *Index) Search(ctx context.Context, query []float32, k int) ([]*models.ScoredChunk, error) {
	hits, err := ix.vectors.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return []*models.ScoredChunk{}, nil
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	chunks, err := ix.store.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve chunks: %w", err)
	}
	out := make([]*models.ScoredChunk, len(hits))
	for i, h := range hits {
		out[i] = &models.ScoredChunk{Chunk: chunks[i], Score: h.Score}
	}
	return out, nil
}

// SearchDocuments runs a keyword search over corpus titles and content.
func (ix *Index) SearchDocuments(ctx context.Context, query string, limit int, opts *keyword.SearchOptions) ([]*models.ScoredDocument, error) {
	hits, err := ix.keywords.Search(ctx, query, limit, opts)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	docs, err := ix.store.GetDocuments(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	out := make([]*models.ScoredDocument, 0, len(hits))
	for _, h := range hits {
		if d, ok := byID[h.ID]; ok {
			out = append(out, &models.ScoredDocument{Document: d, Score: h.Score})
		}
	}
	return out, nil
}

// Document returns a corpus document by ID.
func (ix *Index) Document(ctx context.Context, id string) (*models.Document, error) {
	return ix.store.GetDocument(ctx, id)
}

// Stats reports counts and disk usage of the index.
func (ix *Index) Stats(ctx context.Context) (*Stats, error) {
	docs, err := ix.store.CountDocuments(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := ix.store.CountChunks(ctx)
	if err != nil {
		return nil, err
	}
	disk, err := storage.DiskUsageBytes(ix.dir)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Manifest:  ix.manifest,
		Documents: docs,
		Chunks:    chunks,
		Vectors:   ix.vectors.Size(),
		DiskBytes: disk,
	}, nil
}

// Close releases the vector index, store and keyword index.
func (ix *Index) Close() error {
	var errs []error
	if ix.vectors != nil {
		errs = append(errs, ix.vectors.Close())
	}
	if ix.store != nil {
		errs = append(errs, ix.store.Close())
	}
	if ix.keywords != nil {
		errs = append(errs, ix.keywords.Close())
	}
	return errors.Join(errs...)
}
