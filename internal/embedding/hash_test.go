package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/hyperjump/healthrag/internal/vector"
)

func TestHashEmbedder_deterministicUnitVectors(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()
	a, err := e.Embed(ctx, "What are the symptoms of diabetes?")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.Embed(ctx, "What are the symptoms of diabetes?")
	var norm float64
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("embedding should be deterministic")
		}
		norm += float64(a[i]) * float64(a[i])
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("expected unit norm, got %f", norm)
	}
	if len(a) != e.Dimensions() {
		t.Errorf("len = %d", len(a))
	}
}

func TestHashEmbedder_sharedWordsAreCloser(t *testing.T) {
	e := NewHashEmbedder(384)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "diabetes symptoms")
	related, _ := e.Embed(ctx, "Diabetes\n\nSymptoms of diabetes include thirst.")
	unrelated, _ := e.Embed(ctx, "Malaria is spread by mosquito bites.")
	if vector.InnerProduct(q, related) <= vector.InnerProduct(q, unrelated) {
		t.Error("text sharing words with the query should score higher")
	}
}

func TestHashEmbedder_emptyText(t *testing.T) {
	v, err := NewHashEmbedder(4).Embed(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	for _, x := range v {
		if x != 0 {
			t.Fatal("empty text should embed to the zero vector")
		}
	}
}

func TestHashEmbedder_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHashEmbedder(4).Embed(ctx, "x"); err == nil {
		t.Error("expected context error")
	}
}
