package corpus

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/healthrag/internal/extract"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_missingOptionalFields(t *testing.T) {
	docs, err := Load(strings.NewReader(`[
		{"title": "Diabetes", "content": "Symptoms include thirst.", "url": "https://who.int/diabetes", "source": "WHO", "category": "Fact sheet"},
		{"title": "Asthma", "content": "Airways narrow.", "extra": 1}
	]`), "inline")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	if docs[0].Source != "WHO" || docs[0].URL != "https://who.int/diabetes" {
		t.Errorf("unexpected first doc %+v", docs[0])
	}
	if docs[1].URL != "" || docs[1].Source != "" || docs[1].Category != "" {
		t.Errorf("missing fields should default to empty: %+v", docs[1])
	}
}

func TestLoad_errors(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantRecord int
	}{
		{"not json", `{{{`, -1},
		{"object not array", `{"title": "x"}`, -1},
		{"null record", `[{"title": "a"}, null]`, 1},
		{"wrong field type", `[{"title": 42}]`, 0},
		{"empty record", `[{"title": "ok"}, {"url": "https://x"}]`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.input), "bad.json")
			var ie *IngestionError
			if !errors.As(err, &ie) {
				t.Fatalf("expected *IngestionError, got %v", err)
			}
			if ie.Record != tt.wantRecord {
				t.Errorf("record = %d, want %d", ie.Record, tt.wantRecord)
			}
			if ie.Path != "bad.json" {
				t.Errorf("path = %q", ie.Path)
			}
		})
	}
}

func TestLoadFiles_mergesInOrder(t *testing.T) {
	dir := t.TempDir()
	who := writeFile(t, dir, "who.json", `[{"title": "Malaria", "content": "Spread by mosquitoes.", "source": "WHO"}]`)
	mayo := writeFile(t, dir, "mayo.json", `[{"title": "Migraine", "content": "Throbbing pain.", "source": "Mayo Clinic"}]`)

	docs, err := LoadFiles(who, mayo)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 || docs[0].Source != "WHO" || docs[1].Source != "Mayo Clinic" {
		t.Errorf("unexpected merge result %+v", docs)
	}

	if _, err := LoadFiles(who, filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadFiles(); err == nil {
		t.Error("expected error with no files")
	}
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", `[{"title": "A", "content": "a"}]`)
	b := writeFile(t, dir, "b.json", `[{"title": "B", "content": "b"}, {"title": "C", "content": "c"}]`)
	out := filepath.Join(dir, "out", "combined.json")

	n, err := Merge(out, a, b)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("merged %d, want 3", n)
	}
	docs, err := LoadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 3 || docs[2].Title != "C" {
		t.Errorf("unexpected merged docs %+v", docs)
	}
}

func TestWrite_omitsIDs(t *testing.T) {
	docs, _ := Load(strings.NewReader(`[{"title": "T", "content": "<b>c</b>"}]`), "x")
	docs[0].ID = "abc"
	var buf bytes.Buffer
	if err := Write(&buf, docs); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "abc") {
		t.Error("document IDs should not be written")
	}
	if !strings.Contains(buf.String(), "<b>c</b>") {
		t.Errorf("HTML should not be escaped: %s", buf.String())
	}
}

func TestNormalize(t *testing.T) {
	docs, err := Load(strings.NewReader(`[{"title": "  Heat   stroke\n", "content": "Line one  \r\n\r\n\r\n\r\nLine two\u0000\n", "source": " WHO "}]`), "x")
	if err != nil {
		t.Fatal(err)
	}
	d := docs[0]
	if d.Title != "Heat stroke" {
		t.Errorf("title = %q", d.Title)
	}
	if d.Content != "Line one\n\nLine two" {
		t.Errorf("content = %q", d.Content)
	}
	if d.Source != "WHO" {
		t.Errorf("source = %q", d.Source)
	}
}

func TestImporter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hand-washing.txt", "Wash hands for 20 seconds.")
	writeFile(t, dir, "notes.json", `{"ignored": true}`)
	writeFile(t, dir, "empty.md", "   \n")

	imp := NewImporter(extract.NewExtractor(), "Clinic leaflets", "Prevention")
	docs, err := imp.Import(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc, got %d: %+v", len(docs), docs)
	}
	d := docs[0]
	if d.Title != "hand-washing" || d.Source != "Clinic leaflets" || d.Category != "Prevention" {
		t.Errorf("unexpected doc %+v", d)
	}
	if !strings.HasPrefix(d.URL, "file://") || !strings.HasSuffix(d.URL, "hand-washing.txt") {
		t.Errorf("url = %q", d.URL)
	}

	if _, err := imp.Import(filepath.Join(dir, "notes.json")); err == nil {
		t.Error("expected error for explicitly named unsupported file")
	}
}
