// Package corpus loads, validates, and merges the JSON document collections
// the index is built from.
package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hyperjump/healthrag/internal/models"
)

// IngestionError reports malformed or unreadable corpus input. Record is the
// zero-based array position of the offending record, or -1 for file-level failures.
type IngestionError struct {
	Path   string
	Record int
	Err    error
}

func (e *IngestionError) Error() string {
	if e.Record >= 0 {
		return fmt.Sprintf("ingest %s: record %d: %v", e.Path, e.Record, e.Err)
	}
	return fmt.Sprintf("ingest %s: %v", e.Path, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// record mirrors the ingestion JSON. Absent fields decode as empty strings.
type record struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	URL      string `json:"url"`
	Source   string `json:"source"`
	Category string `json:"category"`
}

// Load decodes a JSON array of documents from r. name identifies the input in errors.
// Records are normalized; a record with neither title nor content is rejected.
func Load(r io.Reader, name string) ([]*models.Document, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, &IngestionError{Path: name, Record: -1, Err: fmt.Errorf("expected a JSON array of documents: %w", err)}
	}

	docs := make([]*models.Document, 0, len(raw))
	for i, msg := range raw {
		if bytes.Equal(bytes.TrimSpace(msg), []byte("null")) {
			return nil, &IngestionError{Path: name, Record: i, Err: fmt.Errorf("record is null")}
		}
		var rec record
		if err := json.Unmarshal(msg, &rec); err != nil {
			return nil, &IngestionError{Path: name, Record: i, Err: err}
		}
		doc := Normalize(&models.Document{
			Title:    rec.Title,
			Content:  rec.Content,
			URL:      rec.URL,
			Source:   rec.Source,
			Category: rec.Category,
		})
		if doc.Title == "" && doc.Content == "" {
			return nil, &IngestionError{Path: name, Record: i, Err: fmt.Errorf("record has neither title nor content")}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// LoadFile reads one corpus file.
func LoadFile(path string) ([]*models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IngestionError{Path: path, Record: -1, Err: err}
	}
	defer f.Close()
	return Load(f, path)
}

// LoadFiles reads and concatenates corpus files in the given order.
// The first failing file aborts the load.
func LoadFiles(paths ...string) ([]*models.Document, error) {
	if len(paths) == 0 {
		return nil, &IngestionError{Path: "", Record: -1, Err: fmt.Errorf("no corpus files given")}
	}
	var all []*models.Document
	for _, p := range paths {
		docs, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		all = append(all, docs...)
	}
	return all, nil
}

// Write encodes docs as an indented JSON array. Document IDs are not written.
func Write(w io.Writer, docs []*models.Document) error {
	out := make([]record, len(docs))
	for i, d := range docs {
		out[i] = record{Title: d.Title, Content: d.Content, URL: d.URL, Source: d.Source, Category: d.Category}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

// WriteFile writes docs to path, creating parent directories.
func WriteFile(path string, docs []*models.Document) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create corpus file: %w", err)
	}
	if err := Write(f, docs); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write corpus file: %w", err)
	}
	return f.Close()
}

// Merge loads every input file and writes the concatenation to out.
func Merge(out string, inputs ...string) (int, error) {
	docs, err := LoadFiles(inputs...)
	if err != nil {
		return 0, err
	}
	if err := WriteFile(out, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}
