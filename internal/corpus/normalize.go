package corpus

import (
	"strings"

	"github.com/hyperjump/healthrag/internal/models"
)

// Normalize cleans a document in place and returns it. Metadata fields are
// trimmed. Content keeps its line structure: CRLF becomes LF, trailing
// spaces on each line are dropped, and runs of blank lines collapse to one.
func Normalize(doc *models.Document) *models.Document {
	doc.Title = cleanLine(doc.Title)
	doc.URL = strings.TrimSpace(doc.URL)
	doc.Source = cleanLine(doc.Source)
	doc.Category = cleanLine(doc.Category)
	doc.Content = cleanText(doc.Content)
	return doc
}

func cleanLine(s string) string {
	return strings.Join(strings.Fields(strings.ToValidUTF8(s, "")), " ")
}

func cleanText(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\x00", "")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
