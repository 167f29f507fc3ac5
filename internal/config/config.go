// Package config provides configuration loading and structs for the health assistant.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Index      IndexConfig      `yaml:"index"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Generation GenerationConfig `yaml:"generation"`
	RAG        RAGConfig        `yaml:"rag"`
	Cache      CacheConfig      `yaml:"cache"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// RateLimit is the sustained /query rate per second; 0 disables limiting.
	RateLimit      float64       `yaml:"rate_limit"`
	RateBurst      int           `yaml:"rate_burst"`
	// RequestTimeout bounds the status and document routes; /query is bounded
	// by generation.timeout instead.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// CorpusConfig lists the JSON corpus files merged into one collection at build time.
type CorpusConfig struct {
	Files []string `yaml:"files"`
}

// IndexConfig holds the index directory and chunking settings.
type IndexConfig struct {
	Dir          string `yaml:"dir"`
	Type         string `yaml:"type"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	BatchSize    int    `yaml:"batch_size"`
}

// EmbeddingConfig selects and configures the embedding model.
type EmbeddingConfig struct {
	// Provider is one of "ollama" (default), "onnx" or "hash". The onnx
	// provider tokenizes with hashed word IDs, so its vectors only
	// approximate the exported model.
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	OllamaURL  string `yaml:"ollama_url"`
}

// RetrievalConfig holds the similarity search policy.
type RetrievalConfig struct {
	K int `yaml:"k"`
}

// GenerationConfig holds the generative model and decoding settings.
type GenerationConfig struct {
	Model         string        `yaml:"model"`
	OllamaURL     string        `yaml:"ollama_url"`
	Temperature   float64       `yaml:"temperature"`
	TopP          float64       `yaml:"top_p"`
	RepeatPenalty float64       `yaml:"repeat_penalty"`
	MaxTokens     int           `yaml:"max_tokens"`
	ContextWindow int           `yaml:"context_window"`
	Threads       int           `yaml:"threads"`
	Stop          []string      `yaml:"stop"`
	Timeout       time.Duration `yaml:"timeout"`
	QueueSize     int           `yaml:"queue_size"`
	// BreakerFailures consecutive backend failures open the circuit for BreakerCooldown.
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

// RAGConfig holds answer assembly options.
type RAGConfig struct {
	OmitSourcesOnRefusal bool `yaml:"omit_sources_on_refusal"`
}

// CacheConfig configures the optional Redis answer cache. An empty RedisURL disables it.
type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// LogConfig holds the process-wide logging policy.
type LogConfig struct {
	Level         string   `yaml:"level"`
	QuietBackends []string `yaml:"quiet_backends"`
}

// Load reads and parses the config file at path, applies defaults and
// HEALTHRAG_* environment overrides, expands paths, and validates the result.
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	var cfg Config
	// Defaults go in before decoding so explicit zeros in the file
	// (chunk_overlap: 0, queue_size: 0, temperature: 0) are kept.
	applyDefaultValues(&cfg)
	configDir := "."
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		configDir = filepath.Dir(path)
	}

	applyDerivedDefaults(&cfg)
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	cfg.Index.Dir = expandPath(cfg.Index.Dir, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Corpus.Files {
		cfg.Corpus.Files[i] = expandPath(cfg.Corpus.Files[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads environment variables from the given .env files. Missing
// files are ignored; variables already set in the environment win.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Index.ChunkSize <= 0 {
		return fmt.Errorf("index.chunk_size must be positive, got %d", c.Index.ChunkSize)
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return fmt.Errorf("index.chunk_overlap must be in [0, chunk_size), got %d", c.Index.ChunkOverlap)
	}
	if c.Retrieval.K <= 0 {
		return fmt.Errorf("retrieval.k must be positive, got %d", c.Retrieval.K)
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("generation.temperature must be in [0, 2], got %g", c.Generation.Temperature)
	}
	if c.Generation.MaxTokens <= 0 {
		return fmt.Errorf("generation.max_tokens must be positive, got %d", c.Generation.MaxTokens)
	}
	if c.Generation.MaxTokens >= c.Generation.ContextWindow {
		return fmt.Errorf("generation.max_tokens (%d) must be smaller than context_window (%d)",
			c.Generation.MaxTokens, c.Generation.ContextWindow)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	switch c.Embedding.Provider {
	case "onnx", "ollama", "hash":
	default:
		return fmt.Errorf("unknown embedding.provider %q", c.Embedding.Provider)
	}
	switch c.Index.Type {
	case "memory", "faiss":
	default:
		return fmt.Errorf("unknown index.type %q", c.Index.Type)
	}
	return nil
}

// expandPath resolves relative paths against configDir and "~/" against the
// home directory. Empty and absolute paths are returned unchanged.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	return filepath.Join(configDir, path)
}
