package benchmark

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/hyperjump/healthrag/internal/embedding"
	"github.com/hyperjump/healthrag/internal/indexer"
	"github.com/hyperjump/healthrag/internal/models"
	"github.com/hyperjump/healthrag/internal/prompt"
	"github.com/hyperjump/healthrag/internal/vector"
)

func BenchmarkChunker(b *testing.B) {
	chunker, _ := indexer.NewChunker(500, 50)
	para := "Malaria is a life-threatening disease spread to humans by some types of mosquitoes. " +
		"It is mostly found in tropical countries. It is preventable and curable.\n\n"
	doc := &models.Document{ID: "d1", Title: "Malaria", Content: strings.Repeat(para, 200), Source: "WHO"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = chunker.Chunk(doc)
	}
}

func BenchmarkMemoryIndexSearch(b *testing.B) {
	idx, _ := vector.NewMemoryIndex(384)
	ctx := context.Background()
	vecs := make([][]float32, 1000)
	ids := make([]string, 1000)
	for i := 0; i < 1000; i++ {
		vecs[i] = make([]float32, 384)
		vecs[i][0] = float32(i) / 1000
		ids[i] = fmt.Sprintf("d%d#%d", i/10, i%10)
	}
	_ = idx.Add(ctx, ids, vecs)
	query := make([]float32, 384)
	query[0] = 1.0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search(ctx, query, 5)
	}
}

func BenchmarkHashEmbedder_Embed(b *testing.B) {
	e := embedding.NewHashEmbedder(384)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "what are the symptoms of diabetes")
	}
}

func BenchmarkPromptBuild(b *testing.B) {
	chunks := make([]*models.ScoredChunk, 5)
	for i := range chunks {
		chunks[i] = &models.ScoredChunk{
			Chunk: &models.Chunk{Content: strings.Repeat("Symptoms include thirst and fatigue. ", 20), Source: "WHO"},
			Score: float64(5 - i),
		}
	}
	pb := prompt.NewBuilder(prompt.WithTokenBudget(1536))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = pb.Build("What are the symptoms of diabetes?", chunks)
	}
}
