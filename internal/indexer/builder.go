package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/healthrag/internal/embedding"
	"github.com/hyperjump/healthrag/internal/keyword"
	"github.com/hyperjump/healthrag/internal/models"
	"github.com/hyperjump/healthrag/internal/storage"
	"github.com/hyperjump/healthrag/internal/vector"
)

const defaultBatchSize = 32

// Builder chunks and embeds a corpus and writes a complete index directory.
type Builder struct {
	embedder  embedding.Embedder
	chunker   *Chunker
	indexType string
	batchSize int
	model     string
	logger    *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets a logger for build progress.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// WithIndexType selects the vector index implementation ("memory" or "faiss").
func WithIndexType(t string) BuilderOption {
	return func(b *Builder) { b.indexType = t }
}

// WithBatchSize sets how many chunks are embedded per call.
func WithBatchSize(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithEmbeddingModel records the embedding model identifier in the manifest.
func WithEmbeddingModel(model string) BuilderOption {
	return func(b *Builder) { b.model = model }
}

// NewBuilder creates a builder that embeds chunks produced by chunker.
func NewBuilder(embedder embedding.Embedder, chunker *Chunker, opts ...BuilderOption) *Builder {
	b := &Builder{
		embedder:  embedder,
		chunker:   chunker,
		indexType: string(vector.IndexTypeMemory),
		batchSize: defaultBatchSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build writes the index for docs to dir, replacing any index already there.
// The index is assembled in a sibling directory and renamed into place, so
// readers never observe a partial build. Document IDs are assigned in place.
func (b *Builder) Build(ctx context.Context, docs []*models.Document, dir string) (*Manifest, error) {
	start := time.Now()
	dir = filepath.Clean(dir)
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return nil, fmt.Errorf("create index parent: %w", err)
	}
	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+".build-")
	if err != nil {
		return nil, fmt.Errorf("create build directory: %w", err)
	}
	done := false
	defer func() {
		if !done {
			_ = os.RemoveAll(tmp)
		}
	}()

	AssignDocumentIDs(docs)
	chunks := b.chunker.ChunkAll(docs)
	if len(chunks) == 0 {
		b.logger.Warn("corpus produced no chunks; index will be empty", zap.Int("documents", len(docs)))
	}

	if err := b.writeStore(ctx, tmp, docs, chunks); err != nil {
		return nil, err
	}
	if err := b.writeVectors(ctx, tmp, chunks); err != nil {
		return nil, err
	}
	if err := b.writeKeywords(ctx, tmp, docs); err != nil {
		return nil, err
	}

	m := &Manifest{
		FormatVersion:  FormatVersion,
		BuildID:        uuid.NewString(),
		EmbeddingModel: b.model,
		Dimensions:     b.embedder.Dimensions(),
		IndexType:      b.indexType,
		ChunkSize:      b.chunker.chunkSize,
		ChunkOverlap:   b.chunker.chunkOverlap,
		DocumentCount:  len(docs),
		ChunkCount:     len(chunks),
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
	}
	if err := m.Write(tmp); err != nil {
		return nil, err
	}
	if err := replaceDir(tmp, dir); err != nil {
		return nil, fmt.Errorf("install index: %w", err)
	}
	done = true

	b.logger.Info("index built",
		zap.String("dir", dir),
		zap.String("build_id", m.BuildID),
		zap.Int("documents", m.DocumentCount),
		zap.Int("chunks", m.ChunkCount),
		zap.Duration("elapsed", time.Since(start)),
	)
	return m, nil
}

func (b *Builder) writeStore(ctx context.Context, dir string, docs []*models.Document, chunks []*models.Chunk) error {
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, CorpusDBFile))
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.BatchCreateDocuments(ctx, docs); err != nil {
		return fmt.Errorf("store documents: %w", err)
	}
	if err := store.BatchCreateChunks(ctx, chunks); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}
	return store.Finalize(ctx)
}

func (b *Builder) writeVectors(ctx context.Context, dir string, chunks []*models.Chunk) error {
	vi, err := vector.NewVectorIndex(b.indexType, b.embedder.Dimensions())
	if err != nil {
		return err
	}
	defer vi.Close()

	for i := 0; i < len(chunks); i += b.batchSize {
		end := min(i+b.batchSize, len(chunks))
		batch := chunks[i:end]
		texts := make([]string, len(batch))
		ids := make([]string, len(batch))
		for j, ch := range batch {
			texts[j] = ch.Content
			ids[j] = ch.ID
		}
		vecs, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks %d-%d: %w", i, end, err)
		}
		if err := vi.Add(ctx, ids, vecs); err != nil {
			return fmt.Errorf("index chunks %d-%d: %w", i, end, err)
		}
		b.logger.Debug("embedded batch", zap.Int("done", end), zap.Int("total", len(chunks)))
	}
	return vi.Save(filepath.Join(dir, vector.FileName(b.indexType)))
}

func (b *Builder) writeKeywords(ctx context.Context, dir string, docs []*models.Document) error {
	kw, err := keyword.NewBleveIndex(filepath.Join(dir, KeywordDir))
	if err != nil {
		return err
	}
	if err := kw.IndexBatch(ctx, docs); err != nil {
		_ = kw.Close()
		return err
	}
	return kw.Close()
}

// replaceDir moves src to dst. An existing dst is moved aside first and
// restored if the swap fails.
func replaceDir(src, dst string) error {
	var old string
	if _, err := os.Stat(dst); err == nil {
		old = fmt.Sprintf("%s.old-%d", dst, time.Now().UnixNano())
		if err := os.Rename(dst, old); err != nil {
			return err
		}
	}
	if err := os.Rename(src, dst); err != nil {
		if old != "" {
			_ = os.Rename(old, dst)
		}
		return err
	}
	if old != "" {
		return os.RemoveAll(old)
	}
	return nil
}
