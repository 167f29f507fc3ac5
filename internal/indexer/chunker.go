// Package indexer splits corpus documents into chunks, builds the persisted
// index directory, and loads it back for the query path.
package indexer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hyperjump/healthrag/internal/models"
)

// DefaultSeparators are tried in order: paragraph, line, sentence, word.
// The trailing empty separator means a hard cut at the window size.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

var (
	documentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("healthrag/document"))
	chunkNamespace    = uuid.NewSHA1(uuid.NameSpaceURL, []byte("healthrag/chunk"))
)

// Chunker splits document text into overlapping windows measured in characters.
// Windows are assembled from pieces cut at the highest-level separator that
// makes them fit, so words are only severed when no boundary exists.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewChunker creates a chunker with the given window size and overlap (in characters).
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", chunkSize, chunkOverlap)
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
	}, nil
}

// span is a byte range of the source text with its length in runes.
type span struct {
	start, end, size int
}

// Chunk splits a document's Text into chunks carrying its metadata. A document
// with blank content yields no chunks.
func (c *Chunker) Chunk(doc *models.Document) []*models.Chunk {
	if strings.TrimSpace(doc.Content) == "" {
		return nil
	}
	text := doc.Text()
	windows := c.merge(c.split(text, 0, len(text), 0, nil))

	chunks := make([]*models.Chunk, len(windows))
	for i, w := range windows {
		chunks[i] = &models.Chunk{
			ID:         ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			Index:      i,
			Start:      w.start,
			Content:    text[w.start:w.end],
			URL:        doc.URL,
			Source:     doc.Source,
			Category:   doc.Category,
		}
	}
	return chunks
}

// ChunkAll chunks every document in order.
func (c *Chunker) ChunkAll(docs []*models.Document) []*models.Chunk {
	var all []*models.Chunk
	for _, d := range docs {
		all = append(all, c.Chunk(d)...)
	}
	return all
}

// split cuts text[start:end] into pieces no longer than chunkSize. Each
// separator stays attached to the piece before it so pieces tile the input.
func (c *Chunker) split(text string, start, end, level int, out []span) []span {
	n := utf8.RuneCountInString(text[start:end])
	if n <= c.chunkSize {
		if n > 0 {
			out = append(out, span{start, end, n})
		}
		return out
	}
	if level >= len(c.separators) || c.separators[level] == "" {
		return c.hardCut(text, start, end, out)
	}
	sep := c.separators[level]
	for segStart := start; segStart < end; {
		segEnd := end
		if i := strings.Index(text[segStart:end], sep); i >= 0 {
			segEnd = segStart + i + len(sep)
		}
		out = c.split(text, segStart, segEnd, level+1, out)
		segStart = segEnd
	}
	return out
}

func (c *Chunker) hardCut(text string, start, end int, out []span) []span {
	pieceStart, count := start, 0
	for i := range text[start:end] {
		if count == c.chunkSize {
			out = append(out, span{pieceStart, start + i, count})
			pieceStart, count = start+i, 0
		}
		count++
	}
	return append(out, span{pieceStart, end, count})
}

// merge packs consecutive pieces into windows of at most chunkSize runes.
// When a window is emitted, trailing pieces totalling at most chunkOverlap
// runes are carried into the next window.
func (c *Chunker) merge(pieces []span) []span {
	var windows []span
	var cur []span
	total := 0
	for _, p := range pieces {
		if len(cur) > 0 && total+p.size > c.chunkSize {
			windows = append(windows, span{cur[0].start, cur[len(cur)-1].end, total})
			for len(cur) > 0 && (total > c.chunkOverlap || total+p.size > c.chunkSize) {
				total -= cur[0].size
				cur = cur[1:]
			}
		}
		cur = append(cur, p)
		total += p.size
	}
	if len(cur) > 0 {
		windows = append(windows, span{cur[0].start, cur[len(cur)-1].end, total})
	}
	return windows
}

// AssignDocumentIDs gives every document a deterministic ID derived from its
// position in the corpus, its URL and its title.
func AssignDocumentIDs(docs []*models.Document) {
	for i, d := range docs {
		name := fmt.Sprintf("%d\x00%s\x00%s", i, d.URL, d.Title)
		d.ID = uuid.NewSHA1(documentNamespace, []byte(name)).String()
	}
}

// ChunkID returns the deterministic ID of the index-th chunk of a document.
func ChunkID(docID string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s/%d", docID, index))).String()
}
