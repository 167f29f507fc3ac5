package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/hyperjump/healthrag/pkg/utils"
)

// OllamaEmbedder embeds text with an embedding model served by a local Ollama daemon.
type OllamaEmbedder struct {
	embedder   embeddings.Embedder
	dimensions int
}

// NewOllamaEmbedder connects to the Ollama server at serverURL and uses model.
// dimensions must match what the model returns; every response is checked.
func NewOllamaEmbedder(serverURL, model string, dimensions, batchSize int) (*OllamaEmbedder, error) {
	llm, err := ollama.New(ollama.WithServerURL(serverURL), ollama.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return newOllamaEmbedder(llm, dimensions, batchSize)
}

func newOllamaEmbedder(client embeddings.EmbedderClient, dimensions, batchSize int) (*OllamaEmbedder, error) {
	opts := []embeddings.Option{embeddings.WithStripNewLines(false)}
	if batchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(batchSize))
	}
	e, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return &OllamaEmbedder{embedder: e, dimensions: dimensions}, nil
}

// Embed returns the unit-length embedding for a query text. Ollama returns
// raw vectors; they are normalized so inner product ranks by cosine similarity.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if err := checkDimensions([][]float32{v}, e.dimensions); err != nil {
		return nil, err
	}
	utils.NormalizeL2(v)
	return v, nil
}

// EmbedBatch embeds documents in batches, normalized like Embed.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama embed batch: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d texts", len(vecs), len(texts))
	}
	if err := checkDimensions(vecs, e.dimensions); err != nil {
		return nil, err
	}
	for _, v := range vecs {
		utils.NormalizeL2(v)
	}
	return vecs, nil
}

// Dimensions returns the configured embedding dimension.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the HTTP client holds no resources.
func (e *OllamaEmbedder) Close() error {
	return nil
}
