package embedding

import (
	"testing"

	"github.com/hyperjump/healthrag/internal/config"
)

func TestNew(t *testing.T) {
	e, err := New(config.EmbeddingConfig{Provider: "hash", Dimensions: 32, CacheSize: 10}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if _, ok := e.(*CachedEmbedder); !ok {
		t.Errorf("expected cached embedder, got %T", e)
	}
	if e.Dimensions() != 32 {
		t.Errorf("Dimensions = %d", e.Dimensions())
	}

	plain, err := New(config.EmbeddingConfig{Provider: "hash", Dimensions: 8}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := plain.(*HashEmbedder); !ok {
		t.Errorf("expected bare hash embedder without cache, got %T", plain)
	}
}

func TestNew_unknownProvider(t *testing.T) {
	if _, err := New(config.EmbeddingConfig{Provider: "word2vec", Dimensions: 8}, nil); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNew_onnxMissingModelFails(t *testing.T) {
	_, err := New(config.EmbeddingConfig{Provider: "onnx", ModelPath: "/nonexistent/model.onnx", Dimensions: 384, MaxTokens: 16}, nil)
	if err == nil {
		t.Error("expected error instead of a silent fallback")
	}
}

func TestNew_defaultProviderIsOllama(t *testing.T) {
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	if cfg.Embedding.Provider != "ollama" || cfg.Embedding.Model != "all-minilm" || cfg.Embedding.Dimensions != 384 {
		t.Fatalf("embedding defaults = %+v", cfg.Embedding)
	}
	e, err := New(cfg.Embedding, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	cached, ok := e.(*CachedEmbedder)
	if !ok {
		t.Fatalf("expected cached embedder, got %T", e)
	}
	if _, ok := cached.Embedder.(*OllamaEmbedder); !ok {
		t.Errorf("default provider built %T, want *OllamaEmbedder", cached.Embedder)
	}
}
