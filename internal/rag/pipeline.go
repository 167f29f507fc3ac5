// Package rag answers health questions: greetings are answered directly, all
// other questions go through retrieval, prompting and generation.
package rag

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/healthrag/internal/cache"
	"github.com/hyperjump/healthrag/internal/llm"
	"github.com/hyperjump/healthrag/internal/models"
	"github.com/hyperjump/healthrag/internal/prompt"
	"github.com/hyperjump/healthrag/pkg/utils"
)

// GreetingResponse is returned for greetings without consulting the corpus.
const GreetingResponse = "Hello! 👋 I'm your Health Assistant. You can ask me anything related to medical topics or healthcare."

var greetings = map[string]struct{}{
	"hi":             {},
	"hello":          {},
	"hey":            {},
	"good morning":   {},
	"good evening":   {},
	"good afternoon": {},
}

// IsGreeting reports whether a normalized question is exactly one of the greeting phrases.
func IsGreeting(normalized string) bool {
	_, ok := greetings[normalized]
	return ok
}

// IsRefusal reports whether a response is the model declining to answer.
func IsRefusal(response string) bool {
	return strings.Trim(strings.TrimSpace(response), `"`) == prompt.RefusalText
}

// State is a step of answering a question.
type State string

const (
	StateReceived   State = "received"
	StateGreeting   State = "greeting_shortcut"
	StateRetrieving State = "retrieving"
	StatePrompting  State = "prompting"
	StateGenerating State = "generating"
	StateAssembled  State = "assembled"
)

// Retriever returns the chunks most relevant to a question, best first.
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]*models.ScoredChunk, error)
}

// PromptBuilder renders the grounding prompt.
type PromptBuilder interface {
	Build(question string, chunks []*models.ScoredChunk) (*prompt.Prompt, error)
}

// Cache stores answers by key.
type Cache interface {
	Get(ctx context.Context, key string) (*models.QueryResult, bool, error)
	Set(ctx context.Context, key string, res *models.QueryResult) error
}

// Pipeline is the query orchestrator. It holds no per-question state and is
// safe for concurrent use; generation is serialized by the Generator.
type Pipeline struct {
	retriever            Retriever
	prompts              PromptBuilder
	generator            llm.Generator
	cache                Cache
	namespace            string
	omitSourcesOnRefusal bool
	onState              func(State)
	logger               *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCache enables the answer cache. namespace is mixed into every key; pass
// the index build ID so a rebuild invalidates old answers.
func WithCache(c Cache, namespace string) Option {
	return func(p *Pipeline) {
		p.cache = c
		p.namespace = namespace
	}
}

// WithOmitSourcesOnRefusal clears sources when the model declines to answer.
func WithOmitSourcesOnRefusal(omit bool) Option {
	return func(p *Pipeline) { p.omitSourcesOnRefusal = omit }
}

// WithStateHook calls fn on every state transition.
func WithStateHook(fn func(State)) Option {
	return func(p *Pipeline) { p.onState = fn }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline wires the orchestrator from its collaborators.
func NewPipeline(r Retriever, pb PromptBuilder, g llm.Generator, opts ...Option) *Pipeline {
	p := &Pipeline{
		retriever: r,
		prompts:   pb,
		generator: g,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) enter(s State) {
	if p.onState != nil {
		p.onState(s)
	}
}

// Answer answers question. Failures are returned as the typed error of the
// stage that failed: *models.ValidationError, *retriever.RetrievalError,
// *llm.GenerationError, or a prompt rendering error.
func (p *Pipeline) Answer(ctx context.Context, question string) (*models.QueryResult, error) {
	req := models.QueryRequest{Question: question}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	p.enter(StateReceived)

	normalized := utils.NormalizeQuestion(question)
	if IsGreeting(normalized) {
		p.enter(StateGreeting)
		p.enter(StateAssembled)
		return &models.QueryResult{Question: question, Response: GreetingResponse, Sources: []string{}}, nil
	}

	var key string
	if p.cache != nil {
		key = cache.Key(p.namespace, normalized)
		if res, ok := p.cachedAnswer(ctx, key); ok {
			res.Question = question
			p.enter(StateAssembled)
			return res, nil
		}
	}

	p.enter(StateRetrieving)
	chunks, err := p.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		p.logger.Debug("no chunks retrieved; answering with empty context")
	}

	p.enter(StatePrompting)
	pr, err := p.prompts.Build(question, chunks)
	if err != nil {
		return nil, err
	}

	p.enter(StateGenerating)
	raw, err := p.generator.Generate(ctx, pr.Text)
	if err != nil {
		return nil, err
	}

	response := strings.TrimSpace(raw)
	sources := UniqueSources(chunks)
	refused := IsRefusal(response)
	if refused && p.omitSourcesOnRefusal {
		sources = []string{}
	}
	res := &models.QueryResult{Question: question, Response: response, Sources: sources}
	p.enter(StateAssembled)

	p.logger.Info("question answered",
		zap.Int("chunks", len(chunks)),
		zap.Int("context_chunks", pr.Chunks),
		zap.Strings("sources", sources),
		zap.Bool("refused", refused),
		zap.Duration("elapsed", time.Since(start)),
	)

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, res); err != nil {
			p.logger.Warn("answer cache write failed", zap.Error(err))
		}
	}
	return res, nil
}

func (p *Pipeline) cachedAnswer(ctx context.Context, key string) (*models.QueryResult, bool) {
	res, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		p.logger.Warn("answer cache read failed", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if res.Sources == nil {
		res.Sources = []string{}
	}
	res.Cached = true
	return res, true
}

// UniqueSources returns the distinct non-empty source names of chunks in the
// order they first appear.
func UniqueSources(chunks []*models.ScoredChunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	out := []string{}
	for _, c := range chunks {
		if c == nil || c.Chunk == nil {
			continue
		}
		s := strings.TrimSpace(c.Chunk.Source)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
