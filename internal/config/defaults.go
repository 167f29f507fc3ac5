package config

import "time"

// DefaultStopSequences end generation when the model starts a new turn.
var DefaultStopSequences = []string{"\n\n", "\nSources:", "Answer:", "Context:"}

// ApplyDefaults sets default values for any zero values in cfg. Load applies
// the same values before decoding the file, so there a zero written in YAML
// is kept rather than replaced.
func ApplyDefaults(cfg *Config) {
	applyDefaultValues(cfg)
	applyDerivedDefaults(cfg)
}

// applyDerivedDefaults fills settings that default to another setting.
func applyDerivedDefaults(cfg *Config) {
	if cfg.Generation.OllamaURL == "" {
		cfg.Generation.OllamaURL = cfg.Embedding.OllamaURL
	}
}

func applyDefaultValues(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = 4
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 180 * time.Second
	}
	if cfg.Index.Dir == "" {
		cfg.Index.Dir = "./data/index"
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "memory"
	}
	if cfg.Index.ChunkSize == 0 {
		cfg.Index.ChunkSize = 1000
	}
	if cfg.Index.ChunkOverlap == 0 {
		cfg.Index.ChunkOverlap = 200
	}
	if cfg.Index.BatchSize == 0 {
		cfg.Index.BatchSize = 32
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "ollama"
	}
	if cfg.Embedding.Model == "" {
		// Ollama's packaging of sentence-transformers/all-MiniLM-L6-v2.
		cfg.Embedding.Model = "all-minilm"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "./data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.OllamaURL == "" {
		cfg.Embedding.OllamaURL = "http://localhost:11434"
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = 5
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "mistral:7b-instruct-v0.1-q4_K_M"
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = 0.1
	}
	if cfg.Generation.TopP == 0 {
		cfg.Generation.TopP = 0.95
	}
	if cfg.Generation.RepeatPenalty == 0 {
		cfg.Generation.RepeatPenalty = 1.1
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 1024
	}
	if cfg.Generation.ContextWindow == 0 {
		cfg.Generation.ContextWindow = 4096
	}
	if cfg.Generation.Threads == 0 {
		cfg.Generation.Threads = 4
	}
	if cfg.Generation.Stop == nil {
		cfg.Generation.Stop = append([]string(nil), DefaultStopSequences...)
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 120 * time.Second
	}
	if cfg.Generation.QueueSize == 0 {
		cfg.Generation.QueueSize = 8
	}
	if cfg.Generation.BreakerFailures == 0 {
		cfg.Generation.BreakerFailures = 5
	}
	if cfg.Generation.BreakerCooldown == 0 {
		cfg.Generation.BreakerCooldown = 30 * time.Second
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 24 * time.Hour
	}
	if cfg.Log.QuietBackends == nil {
		cfg.Log.QuietBackends = []string{"embedding", "llm", "vector"}
	}
}
