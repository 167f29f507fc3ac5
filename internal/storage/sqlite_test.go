package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/healthrag/internal/models"
)

func seedStore(t *testing.T, path string) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	docs := []*models.Document{
		{ID: "d1", Title: "Diabetes", Content: "High blood sugar.", URL: "https://who.int/d", Source: "WHO", Category: "Fact sheet"},
		{ID: "d2", Title: "Asthma", Content: "Narrow airways.", Source: "Mayo Clinic"},
	}
	if err := store.BatchCreateDocuments(ctx, docs); err != nil {
		t.Fatal(err)
	}
	chunks := []*models.Chunk{
		{ID: "c1", DocumentID: "d1", Index: 0, Start: 0, Content: "Diabetes\n\nHigh"},
		{ID: "c2", DocumentID: "d1", Index: 1, Start: 10, Content: "High blood sugar."},
		{ID: "c3", DocumentID: "d2", Index: 0, Start: 0, Content: "Asthma\n\nNarrow airways."},
	}
	if err := store.BatchCreateChunks(ctx, chunks); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestSQLiteStorage_documents(t *testing.T) {
	store := seedStore(t, filepath.Join(t.TempDir(), "corpus.db"))
	defer store.Close()
	ctx := context.Background()

	got, err := store.GetDocument(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Diabetes" || got.Source != "WHO" || got.URL != "https://who.int/d" {
		t.Errorf("got %+v", got)
	}

	if _, err := store.GetDocument(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	list, err := store.ListDocuments(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "d1" || list[1].ID != "d2" {
		t.Errorf("list should follow corpus order: %+v", list)
	}

	docs, err := store.GetDocuments(ctx, []string{"d2", "nope", "d1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 || docs[0].ID != "d2" || docs[1].ID != "d1" {
		t.Errorf("GetDocuments order: %+v", docs)
	}

	n, _ := store.CountDocuments(ctx)
	if n != 2 {
		t.Errorf("CountDocuments = %d", n)
	}
}

func TestSQLiteStorage_chunks(t *testing.T) {
	store := seedStore(t, filepath.Join(t.TempDir(), "corpus.db"))
	defer store.Close()
	ctx := context.Background()

	chunks, err := store.GetChunks(ctx, []string{"c3", "c1"})
	if err != nil {
		t.Fatal(err)
	}
	if chunks[0].ID != "c3" || chunks[1].ID != "c1" {
		t.Errorf("GetChunks should keep requested order: %s %s", chunks[0].ID, chunks[1].ID)
	}
	if chunks[0].Source != "Mayo Clinic" || chunks[1].Source != "WHO" {
		t.Errorf("chunks should carry parent metadata: %+v %+v", chunks[0], chunks[1])
	}

	if _, err := store.GetChunks(ctx, []string{"c1", "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing chunk, got %v", err)
	}

	byDoc, err := store.GetChunksByDocumentID(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(byDoc) != 2 || byDoc[1].Start != 10 {
		t.Errorf("unexpected chunks for d1: %+v", byDoc)
	}

	c, err := store.GetChunk(ctx, "c2")
	if err != nil {
		t.Fatal(err)
	}
	if c.Content != "High blood sugar." || c.Category != "Fact sheet" {
		t.Errorf("got %+v", c)
	}

	n, _ := store.CountChunks(ctx)
	if n != 3 {
		t.Errorf("CountChunks = %d", n)
	}
}

func TestSQLiteStorage_readOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.db")
	store := seedStore(t, path)
	if err := store.Finalize(context.Background()); err != nil {
		t.Fatal(err)
	}
	store.Close()

	ro, err := OpenSQLiteStorageReadOnly(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ro.Close()

	n, err := ro.CountChunks(context.Background())
	if err != nil || n != 3 {
		t.Errorf("CountChunks = %d, %v", n, err)
	}
	if err := ro.BatchCreateDocuments(context.Background(), []*models.Document{{ID: "x"}}); err == nil {
		t.Error("read-only store should reject writes")
	}

	if _, err := OpenSQLiteStorageReadOnly(filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Error("expected error for missing database")
	}
}
