package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/healthrag/internal/cache"
	"github.com/hyperjump/healthrag/internal/config"
	"github.com/hyperjump/healthrag/internal/embedding"
	"github.com/hyperjump/healthrag/internal/indexer"
	"github.com/hyperjump/healthrag/internal/llm"
	"github.com/hyperjump/healthrag/internal/prompt"
	"github.com/hyperjump/healthrag/internal/rag"
	"github.com/hyperjump/healthrag/internal/retriever"
	"github.com/hyperjump/healthrag/pkg/utils"
)

// Components holds everything the query path needs. It is built once at
// startup and passed down explicitly.
type Components struct {
	Embedder embedding.Embedder
	Index    *indexer.Index
	Guard    *llm.Guard
	Pipeline *rag.Pipeline
	Cache    *cache.RedisCache
}

// Close releases all components.
func (c *Components) Close() {
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
}

// initializeComponents loads the embedding model and index and wires the
// query pipeline. Failing to load the index is fatal to the caller.
func initializeComponents(ctx context.Context, cfg *config.Config, policy utils.LogPolicy, logger *zap.Logger) (_ *Components, err error) {
	c := &Components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	c.Embedder, err = embedding.New(cfg.Embedding, policy.Component(logger, "embedding"))
	if err != nil {
		return nil, err
	}

	c.Index, err = indexer.Open(cfg.Index.Dir, c.Embedder,
		indexer.WithExpectedModel(cfg.Embedding.Model),
		indexer.WithOpenLogger(policy.Component(logger, "vector")),
	)
	if err != nil {
		return nil, err
	}

	ret, err := retriever.New(c.Embedder, c.Index,
		retriever.WithK(cfg.Retrieval.K),
		retriever.WithLogger(policy.Component(logger, "vector")),
	)
	if err != nil {
		return nil, err
	}

	prompts := prompt.NewBuilder(
		prompt.WithTokenBudget(cfg.Generation.ContextWindow-cfg.Generation.MaxTokens),
		prompt.WithLogger(logger.Named("prompt")),
	)

	gen, err := llm.NewOllamaGenerator(cfg.Generation)
	if err != nil {
		return nil, err
	}
	c.Guard = llm.NewGuard(gen,
		llm.WithQueueSize(cfg.Generation.QueueSize),
		llm.WithTimeout(cfg.Generation.Timeout),
		llm.WithBreaker(cfg.Generation.BreakerFailures, cfg.Generation.BreakerCooldown),
		llm.WithGuardLogger(policy.Component(logger, "llm")),
	)

	opts := []rag.Option{
		rag.WithOmitSourcesOnRefusal(cfg.RAG.OmitSourcesOnRefusal),
		rag.WithLogger(logger.Named("rag")),
	}
	if cfg.Cache.RedisURL != "" {
		rc, cacheErr := cache.NewRedisCache(ctx, cfg.Cache.RedisURL, cfg.Cache.TTL)
		if cacheErr != nil {
			logger.Warn("answer cache disabled", zap.Error(cacheErr))
		} else {
			c.Cache = rc
			opts = append(opts, rag.WithCache(rc, c.Index.Manifest().BuildID))
		}
	}
	c.Pipeline = rag.NewPipeline(ret, prompts, c.Guard, opts...)

	logger.Info("components initialized",
		zap.String("index_dir", cfg.Index.Dir),
		zap.String("generation_model", cfg.Generation.Model),
		zap.Int("k", ret.K()),
		zap.Bool("answer_cache", c.Cache != nil),
	)
	return c, nil
}

// describeStartupError adds an operator hint to index load failures.
func describeStartupError(err error) string {
	var le *indexer.IndexLoadError
	switch {
	case errors.Is(err, indexer.ErrIndexMissing):
		return fmt.Sprintf("%v (run `healthrag build` first)", err)
	case errors.Is(err, indexer.ErrDimensionMismatch), errors.Is(err, indexer.ErrModelMismatch):
		return fmt.Sprintf("%v (rebuild the index with the configured embedding model)", err)
	case errors.As(err, &le):
		return fmt.Sprintf("%v (the index may be corrupt; rebuild it)", err)
	default:
		return err.Error()
	}
}
