package vector

import (
	"context"
	"testing"
)

func TestNewVectorIndex(t *testing.T) {
	for _, typ := range []string{"memory", ""} {
		idx, err := NewVectorIndex(typ, 3)
		if err != nil {
			t.Fatalf("NewVectorIndex(%q): %v", typ, err)
		}
		if err := idx.Add(context.Background(), []string{"a"}, [][]float32{{1, 0, 0}}); err != nil {
			t.Fatalf("Add: %v", err)
		}
		if idx.Size() != 1 || idx.Dimensions() != 3 || idx.Type() != "memory" {
			t.Errorf("unexpected index %s size=%d dims=%d", idx.Type(), idx.Size(), idx.Dimensions())
		}
		idx.Close()
	}
}

func TestNewVectorIndex_Unknown(t *testing.T) {
	if _, err := NewVectorIndex("hnsw", 3); err == nil {
		t.Error("expected error for unknown index type")
	}
}

func TestNewVectorIndex_InvalidDimension(t *testing.T) {
	if _, err := NewVectorIndex("memory", 0); err == nil {
		t.Error("expected error for zero dimension")
	}
}

func TestNewVectorIndex_FAISS(t *testing.T) {
	idx, err := NewVectorIndex("faiss", 3)
	if !IsFAISSAvailable() {
		if err == nil {
			t.Error("expected error when FAISS is not compiled in")
		}
		return
	}
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	if idx.Type() != "faiss" {
		t.Errorf("Type = %s", idx.Type())
	}
}

func TestFileName(t *testing.T) {
	if FileName("memory") != "vectors.bin" || FileName("faiss") != "vectors" {
		t.Errorf("unexpected file names %q %q", FileName("memory"), FileName("faiss"))
	}
}
