package indexer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Files and directories inside an index directory.
const (
	ManifestFile = "manifest.yaml"
	CorpusDBFile = "corpus.db"
	KeywordDir   = "keyword"
)

// FormatVersion is bumped whenever the on-disk layout changes.
const FormatVersion = 1

// Manifest describes a built index so it can be checked against the running
// configuration before use.
type Manifest struct {
	FormatVersion  int       `yaml:"format_version" json:"format_version"`
	BuildID        string    `yaml:"build_id" json:"build_id"`
	EmbeddingModel string    `yaml:"embedding_model" json:"embedding_model"`
	Dimensions     int       `yaml:"dimensions" json:"dimensions"`
	IndexType      string    `yaml:"index_type" json:"index_type"`
	ChunkSize      int       `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap   int       `yaml:"chunk_overlap" json:"chunk_overlap"`
	DocumentCount  int       `yaml:"document_count" json:"document_count"`
	ChunkCount     int       `yaml:"chunk_count" json:"chunk_count"`
	CreatedAt      time.Time `yaml:"created_at" json:"created_at"`
}

// ReadManifest reads the manifest of the index in dir.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no %s in %s", ErrIndexMissing, ManifestFile, dir)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("unsupported index format version %d (want %d)", m.FormatVersion, FormatVersion)
	}
	if m.Dimensions <= 0 {
		return nil, fmt.Errorf("manifest has invalid dimensions %d", m.Dimensions)
	}
	return &m, nil
}

// Write writes the manifest into dir.
func (m *Manifest) Write(dir string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
