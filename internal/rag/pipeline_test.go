package rag

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/healthrag/internal/llm"
	"github.com/hyperjump/healthrag/internal/models"
	"github.com/hyperjump/healthrag/internal/prompt"
	"github.com/hyperjump/healthrag/internal/retriever"
)

type fakeRetriever struct {
	chunks []*models.ScoredChunk
	err    error
	calls  int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string) ([]*models.ScoredChunk, error) {
	f.calls++
	return f.chunks, f.err
}

type fakeGenerator struct {
	reply  string
	err    error
	calls  int
	prompt string
}

func (f *fakeGenerator) Generate(_ context.Context, p string) (string, error) {
	f.calls++
	f.prompt = p
	return f.reply, f.err
}

type mapCache struct {
	entries map[string]*models.QueryResult
	err     error
}

func (m *mapCache) Get(_ context.Context, key string) (*models.QueryResult, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	r, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

func (m *mapCache) Set(_ context.Context, key string, res *models.QueryResult) error {
	if m.err != nil {
		return m.err
	}
	cp := *res
	m.entries[key] = &cp
	return nil
}

func chunk(content, source string) *models.ScoredChunk {
	return &models.ScoredChunk{Chunk: &models.Chunk{Content: content, Source: source}}
}

func TestAnswer_greetingShortcut(t *testing.T) {
	for _, q := range []string{"hi", "  Hi ", "HELLO", "hey", "Good Morning", "good evening\n", "good afternoon"} {
		r := &fakeRetriever{}
		g := &fakeGenerator{reply: "should not be used"}
		var states []State
		p := NewPipeline(r, prompt.NewBuilder(), g, WithStateHook(func(s State) { states = append(states, s) }))

		res, err := p.Answer(context.Background(), q)
		if err != nil {
			t.Fatalf("%q: %v", q, err)
		}
		if res.Response != GreetingResponse {
			t.Errorf("%q: response = %q", q, res.Response)
		}
		if res.Sources == nil || len(res.Sources) != 0 {
			t.Errorf("%q: sources = %v, want empty", q, res.Sources)
		}
		if res.Question != q {
			t.Errorf("question should be echoed verbatim, got %q", res.Question)
		}
		if r.calls != 0 || g.calls != 0 {
			t.Errorf("%q: retrieval=%d generation=%d, want no calls", q, r.calls, g.calls)
		}
		want := []State{StateReceived, StateGreeting, StateAssembled}
		if !reflect.DeepEqual(states, want) {
			t.Errorf("%q: states = %v, want %v", q, states, want)
		}
	}
}

func TestAnswer_notAGreeting(t *testing.T) {
	for _, q := range []string{"hi there", "hello?", "hey doctor, is aspirin safe?"} {
		r := &fakeRetriever{}
		g := &fakeGenerator{reply: prompt.RefusalText}
		if _, err := NewPipeline(r, prompt.NewBuilder(), g).Answer(context.Background(), q); err != nil {
			t.Fatal(err)
		}
		if r.calls != 1 || g.calls != 1 {
			t.Errorf("%q must go through retrieval and generation", q)
		}
	}
}

func TestAnswer_fullPipeline(t *testing.T) {
	r := &fakeRetriever{chunks: []*models.ScoredChunk{
		chunk("Diabetes\n\nSymptoms include thirst.", "WHO"),
		chunk("Diabetes can cause blurred vision.", "Mayo Clinic"),
	}}
	g := &fakeGenerator{reply: "\n  Thirst and blurred vision.  \n"}
	var states []State
	p := NewPipeline(r, prompt.NewBuilder(), g, WithStateHook(func(s State) { states = append(states, s) }))

	res, err := p.Answer(context.Background(), "What are the symptoms of diabetes?")
	if err != nil {
		t.Fatal(err)
	}
	if res.Response != "Thirst and blurred vision." {
		t.Errorf("response not trimmed: %q", res.Response)
	}
	if !reflect.DeepEqual(res.Sources, []string{"WHO", "Mayo Clinic"}) {
		t.Errorf("sources = %v", res.Sources)
	}
	if !strings.Contains(g.prompt, "Symptoms include thirst.\n\nDiabetes can cause blurred vision.") {
		t.Error("prompt should contain retrieved context in rank order")
	}
	want := []State{StateReceived, StateRetrieving, StatePrompting, StateGenerating, StateAssembled}
	if !reflect.DeepEqual(states, want) {
		t.Errorf("states = %v, want %v", states, want)
	}
}

func TestAnswer_sourceDedup(t *testing.T) {
	r := &fakeRetriever{chunks: []*models.ScoredChunk{
		chunk("a", "WHO"), chunk("b", "Mayo Clinic"), chunk("c", "WHO"), chunk("d", "Mayo Clinic"), chunk("e", "WHO"),
	}}
	res, err := NewPipeline(r, prompt.NewBuilder(), &fakeGenerator{reply: "answer"}).Answer(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Sources, []string{"WHO", "Mayo Clinic"}) {
		t.Errorf("sources = %v, want [WHO Mayo Clinic]", res.Sources)
	}
}

func TestAnswer_emptyRetrieval(t *testing.T) {
	g := &fakeGenerator{reply: prompt.RefusalText}
	res, err := NewPipeline(&fakeRetriever{chunks: []*models.ScoredChunk{}}, prompt.NewBuilder(), g).
		Answer(context.Background(), "Who is the president of the US?")
	if err != nil {
		t.Fatal(err)
	}
	if g.calls != 1 {
		t.Error("generation must run with empty context")
	}
	if res.Response != prompt.RefusalText {
		t.Errorf("response = %q", res.Response)
	}
	if res.Sources == nil || len(res.Sources) != 0 {
		t.Errorf("sources = %v, want empty", res.Sources)
	}
}

func TestAnswer_refusalSourcesPolicy(t *testing.T) {
	chunks := []*models.ScoredChunk{chunk("malaria", "WHO")}
	tests := []struct {
		name string
		omit bool
		want []string
	}{
		{"kept by default", false, []string{"WHO"}},
		{"omitted when configured", true, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline(&fakeRetriever{chunks: chunks}, prompt.NewBuilder(),
				&fakeGenerator{reply: `"` + prompt.RefusalText + `"`}, WithOmitSourcesOnRefusal(tt.omit))
			res, err := p.Answer(context.Background(), "Who is the president?")
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(res.Sources, tt.want) {
				t.Errorf("sources = %v, want %v", res.Sources, tt.want)
			}
		})
	}
}

func TestAnswer_errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewPipeline(&fakeRetriever{}, prompt.NewBuilder(), &fakeGenerator{}).Answer(ctx, "   ")
	var ve *models.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("blank question: expected ValidationError, got %v", err)
	}

	re := &retriever.RetrievalError{Op: "embed", Err: errors.New("model crashed")}
	g := &fakeGenerator{}
	_, err = NewPipeline(&fakeRetriever{err: re}, prompt.NewBuilder(), g).Answer(ctx, "q")
	var gotRE *retriever.RetrievalError
	if !errors.As(err, &gotRE) {
		t.Errorf("expected RetrievalError, got %v", err)
	}
	if g.calls != 0 {
		t.Error("generation must not run after a retrieval failure")
	}

	genErr := &llm.GenerationError{Kind: llm.KindUnavailable, Err: errors.New("connection refused")}
	_, err = NewPipeline(&fakeRetriever{}, prompt.NewBuilder(), &fakeGenerator{err: genErr}).Answer(ctx, "q")
	var ge *llm.GenerationError
	if !errors.As(err, &ge) || ge.Kind != llm.KindUnavailable {
		t.Errorf("expected GenerationError, got %v", err)
	}
}

func TestAnswer_cache(t *testing.T) {
	c := &mapCache{entries: map[string]*models.QueryResult{}}
	r := &fakeRetriever{chunks: []*models.ScoredChunk{chunk("x", "WHO")}}
	g := &fakeGenerator{reply: "Rest and fluids."}
	p := NewPipeline(r, prompt.NewBuilder(), g, WithCache(c, "build-1"))
	ctx := context.Background()

	first, err := p.Answer(ctx, "How to treat flu?")
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached {
		t.Error("first answer should not be cached")
	}
	second, err := p.Answer(ctx, "  how to treat FLU?")
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached || second.Response != "Rest and fluids." || second.Question != "  how to treat FLU?" {
		t.Errorf("unexpected cached answer %+v", second)
	}
	if r.calls != 1 || g.calls != 1 {
		t.Errorf("cache hit should skip the pipeline: retrieval=%d generation=%d", r.calls, g.calls)
	}

	if _, err := p.Answer(ctx, "hi"); err != nil {
		t.Fatal(err)
	}
	if len(c.entries) != 1 {
		t.Errorf("greetings must not be cached, entries=%d", len(c.entries))
	}

	other := NewPipeline(r, prompt.NewBuilder(), g, WithCache(c, "build-2"))
	if res, _ := other.Answer(ctx, "How to treat flu?"); res.Cached {
		t.Error("a new build namespace must not reuse cached answers")
	}
}

func TestAnswer_cacheFailureIgnored(t *testing.T) {
	c := &mapCache{err: errors.New("redis down")}
	p := NewPipeline(&fakeRetriever{}, prompt.NewBuilder(), &fakeGenerator{reply: "ok"}, WithCache(c, "b"))
	res, err := p.Answer(context.Background(), "q")
	if err != nil || res.Response != "ok" {
		t.Errorf("cache errors must not fail the answer: %v %+v", err, res)
	}
}

func TestUniqueSources(t *testing.T) {
	got := UniqueSources([]*models.ScoredChunk{
		chunk("a", ""), chunk("b", " WHO "), nil, chunk("c", "WHO"), chunk("d", "CDC"),
	})
	if !reflect.DeepEqual(got, []string{"WHO", "CDC"}) {
		t.Errorf("UniqueSources = %v", got)
	}
}
