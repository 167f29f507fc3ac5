// Package models defines core data structures for corpus documents, chunks, and answers.
package models

// Document is one normalized corpus record. Missing fields are empty strings.
type Document struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	URL      string `json:"url"`
	Source   string `json:"source"`
	Category string `json:"category"`
}

// Text returns the text that is chunked and embedded: the title, a blank line,
// then the content.
func (d *Document) Text() string {
	return d.Title + "\n\n" + d.Content
}

// Chunk is a contiguous span of a Document's Text, carrying the parent's metadata.
// Start is the byte offset of Content within the parent's Text.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Index      int       `json:"chunk_index"`
	Start      int       `json:"start"`
	Content    string    `json:"content"`
	URL        string    `json:"url"`
	Source     string    `json:"source"`
	Category   string    `json:"category"`
	Embedding  []float32 `json:"-"`
}

// ScoredChunk is a chunk returned by similarity search. Higher Score is more similar.
type ScoredChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}

// ScoredDocument is a corpus document returned by keyword search.
type ScoredDocument struct {
	Document *Document `json:"document"`
	Score    float64   `json:"score"`
}
