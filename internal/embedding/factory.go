package embedding

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/healthrag/internal/config"
)

// New builds the embedder selected by cfg.Provider, wrapped in an LRU cache
// when cfg.CacheSize is positive. An unknown provider or a provider that
// fails to start is an error; there is no fallback to another provider.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case "onnx":
		logger.Warn("onnx provider uses hashed word tokens; embeddings approximate the model",
			zap.String("model_path", cfg.ModelPath))
		e, err = NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	case "ollama":
		e, err = NewOllamaEmbedder(cfg.OllamaURL, cfg.Model, cfg.Dimensions, 0)
	case "hash":
		e = NewHashEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to start %s embedder: %w", cfg.Provider, err)
	}
	logger.Info("embedding model ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Int("dimensions", e.Dimensions()))

	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(e, cfg.CacheSize), nil
	}
	return e, nil
}
