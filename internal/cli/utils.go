// Package cli provides output helpers for the healthrag command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/healthrag/internal/indexer"
	"github.com/hyperjump/healthrag/internal/models"
	"github.com/hyperjump/healthrag/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --format flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (supported: text, json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// WriteAnswer writes an answer to w in the given format.
func WriteAnswer(w io.Writer, res *models.QueryResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "\nQuestion: %s\n\n", res.Question)
	fmt.Fprintln(w, "Response:")
	fmt.Fprintln(w, res.Response)
	if len(res.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, s := range res.Sources {
			fmt.Fprintf(w, " - %s\n", s)
		}
	}
	return nil
}

// WriteDocuments writes keyword search hits to w in the given format.
func WriteDocuments(w io.Writer, query string, docs []*models.ScoredDocument, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"query": query, "results": docs})
	}
	fmt.Fprintf(w, "\nFound %d documents for %q\n\n", len(docs), query)
	for i, d := range docs {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%d. %s | Score: %.4f\n", i+1, d.Document.Title, d.Score)
		if d.Document.Source != "" || d.Document.Category != "" {
			fmt.Fprintf(w, "Source: %s | Category: %s\n", d.Document.Source, d.Document.Category)
		}
		if d.Document.URL != "" {
			fmt.Fprintf(w, "URL: %s\n", d.Document.URL)
		}
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(d.Document.Content, 200))
	}
	return nil
}

// WriteStats writes index statistics to w in the given format.
func WriteStats(w io.Writer, stats *indexer.Stats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	m := stats.Manifest
	fmt.Fprintf(w, "Build:           %s (%s)\n", m.BuildID, m.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Embedding model: %s (%d dims)\n", m.EmbeddingModel, m.Dimensions)
	fmt.Fprintf(w, "Vector index:    %s, %d vectors\n", m.IndexType, stats.Vectors)
	fmt.Fprintf(w, "Chunking:        %d / %d overlap\n", m.ChunkSize, m.ChunkOverlap)
	fmt.Fprintf(w, "Documents:       %d\n", stats.Documents)
	fmt.Fprintf(w, "Chunks:          %d\n", stats.Chunks)
	fmt.Fprintf(w, "Disk usage:      %s\n", FormatBytes(stats.DiskBytes))
	return nil
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
