package config

import (
	"fmt"
	"strconv"
	"strings"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "HEALTHRAG_"

// ApplyEnv overrides cfg with HEALTHRAG_* variables found through lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}
	setInt := func(key string, dst *int) error {
		v, ok := get(key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}

	if v, ok := get("MODEL"); ok {
		cfg.Generation.Model = v
	}
	if v, ok := get("EMBEDDING_MODEL"); ok {
		cfg.Embedding.Model = v
	}
	if v, ok := get("INDEX_DIR"); ok {
		cfg.Index.Dir = v
	}
	if v, ok := get("OLLAMA_URL"); ok {
		cfg.Embedding.OllamaURL = v
		cfg.Generation.OllamaURL = v
	}
	if v, ok := get("REDIS_URL"); ok {
		cfg.Cache.RedisURL = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := get("STOP_SEQUENCES"); ok {
		cfg.Generation.Stop = parseStopSequences(v)
	}
	if v, ok := get("TEMPERATURE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %sTEMPERATURE: %w", EnvPrefix, err)
		}
		cfg.Generation.Temperature = f
	}

	for key, dst := range map[string]*int{
		"EMBEDDING_DIMENSIONS": &cfg.Embedding.Dimensions,
		"CHUNK_SIZE":           &cfg.Index.ChunkSize,
		"CHUNK_OVERLAP":        &cfg.Index.ChunkOverlap,
		"RETRIEVAL_K":          &cfg.Retrieval.K,
		"MAX_TOKENS":           &cfg.Generation.MaxTokens,
		"CONTEXT_WINDOW":       &cfg.Generation.ContextWindow,
	} {
		if err := setInt(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// parseStopSequences splits a comma separated list, turning the two-character
// escape \n into a newline so blank-line stops can be expressed in a variable.
func parseStopSequences(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.ReplaceAll(part, `\n`, "\n")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
