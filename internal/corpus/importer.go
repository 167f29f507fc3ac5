package corpus

import (
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/healthrag/internal/models"
)

// TextExtractor returns the plain text of a local file.
type TextExtractor interface {
	Supports(path string) bool
	Extract(path string) (string, error)
}

// Importer turns local files into corpus documents.
type Importer struct {
	extractor TextExtractor
	source    string
	category  string
	logger    *zap.Logger
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithImportLogger sets the logger.
func WithImportLogger(l *zap.Logger) ImporterOption {
	return func(i *Importer) { i.logger = l }
}

// NewImporter returns an Importer that stamps every document with source and category.
func NewImporter(extractor TextExtractor, source, category string, opts ...ImporterOption) *Importer {
	i := &Importer{extractor: extractor, source: source, category: category, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import reads each path. Directories are walked recursively and files with
// unsupported extensions inside them are skipped; an explicitly named
// unsupported file is an error. Files with no extractable text are skipped.
func (i *Importer) Import(paths ...string) ([]*models.Document, error) {
	files, err := i.collect(paths)
	if err != nil {
		return nil, err
	}
	var docs []*models.Document
	for _, path := range files {
		text, err := i.extractor.Extract(path)
		if err != nil {
			return nil, &IngestionError{Path: path, Record: -1, Err: err}
		}
		doc := Normalize(&models.Document{
			Title:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Content:  text,
			URL:      fileURL(path),
			Source:   i.source,
			Category: i.category,
		})
		if doc.Content == "" {
			i.logger.Warn("skipping file with no text", zap.String("path", path))
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (i *Importer) collect(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if !i.extractor.Supports(path) {
				if path == abs {
					return fmt.Errorf("unsupported file type: %s", path)
				}
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, &IngestionError{Path: p, Record: -1, Err: err}
		}
	}
	sort.Strings(files)
	return files, nil
}

func fileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
