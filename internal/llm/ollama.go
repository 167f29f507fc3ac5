package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/hyperjump/healthrag/internal/config"
	"github.com/hyperjump/healthrag/internal/prompt"
)

// ModelGenerator completes prompts with a langchaingo model.
type ModelGenerator struct {
	model    llms.Model
	decoding Decoding
}

// NewOllamaGenerator connects to a model served by Ollama.
func NewOllamaGenerator(cfg config.GenerationConfig) (*ModelGenerator, error) {
	opts := []ollama.Option{
		ollama.WithModel(cfg.Model),
		ollama.WithRunnerNumCtx(cfg.ContextWindow),
	}
	if cfg.OllamaURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.OllamaURL))
	}
	if cfg.Threads > 0 {
		opts = append(opts, ollama.WithRunnerNumThread(cfg.Threads))
	}
	model, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	return NewModelGenerator(model, DecodingFromConfig(cfg)), nil
}

// NewModelGenerator wraps any langchaingo model.
func NewModelGenerator(model llms.Model, d Decoding) *ModelGenerator {
	return &ModelGenerator{model: model, decoding: d}
}

// DecodingFromConfig extracts decoding settings from the generation config.
func DecodingFromConfig(cfg config.GenerationConfig) Decoding {
	return Decoding{
		Temperature:   cfg.Temperature,
		TopP:          cfg.TopP,
		RepeatPenalty: cfg.RepeatPenalty,
		MaxTokens:     cfg.MaxTokens,
		ContextWindow: cfg.ContextWindow,
		Stop:          cfg.Stop,
	}
}

// Generate completes p. It fails with KindContextOverflow before calling the
// backend when the estimated prompt plus MaxTokens exceeds the context window.
func (g *ModelGenerator) Generate(ctx context.Context, p string) (string, error) {
	d := g.decoding
	if d.ContextWindow > 0 {
		need := prompt.EstimateTokens(p) + d.MaxTokens
		if need > d.ContextWindow {
			return "", &GenerationError{
				Kind: KindContextOverflow,
				Err: fmt.Errorf("%w: ~%d prompt tokens + %d max tokens > %d",
					ErrContextOverflow, need-d.MaxTokens, d.MaxTokens, d.ContextWindow),
			}
		}
	}

	opts := []llms.CallOption{
		llms.WithTemperature(d.Temperature),
		llms.WithMaxTokens(d.MaxTokens),
	}
	if d.TopP > 0 {
		opts = append(opts, llms.WithTopP(d.TopP))
	}
	if d.RepeatPenalty > 0 {
		opts = append(opts, llms.WithRepetitionPenalty(d.RepeatPenalty))
	}
	if len(d.Stop) > 0 {
		opts = append(opts, llms.WithStopWords(d.Stop))
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, g.model, p, opts...)
	if err != nil {
		if ctx.Err() != nil {
			return "", contextError(ctx)
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return "", &GenerationError{Kind: KindUnavailable, Err: err}
		}
		return "", &GenerationError{Kind: KindDecoding, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &GenerationError{Kind: KindDecoding, Err: errors.New("model returned an empty completion")}
	}
	return text, nil
}
