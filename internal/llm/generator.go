// Package llm invokes the local generative model under bounded decoding
// settings and guards it against concurrent use and backend failures.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Generator completes a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Kind classifies a generation failure.
type Kind string

const (
	KindUnavailable     Kind = "unavailable"
	KindContextOverflow Kind = "context_overflow"
	KindDecoding        Kind = "decoding"
	KindBusy            Kind = "busy"
	KindTimeout         Kind = "timeout"
	KindCanceled        Kind = "canceled"
)

var (
	// ErrQueueFull is returned when too many callers are already waiting for the model.
	ErrQueueFull = errors.New("generation queue full")
	// ErrContextOverflow is returned when prompt plus generated tokens cannot fit the context window.
	ErrContextOverflow = errors.New("prompt exceeds context window")
)

// GenerationError reports that no answer could be generated.
type GenerationError struct {
	Kind Kind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Decoding holds the sampling and length limits for one completion.
type Decoding struct {
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
	MaxTokens     int
	ContextWindow int
	Stop          []string
}

// contextError converts a finished context into a GenerationError.
func contextError(ctx context.Context) *GenerationError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &GenerationError{Kind: KindTimeout, Err: ctx.Err()}
	}
	return &GenerationError{Kind: KindCanceled, Err: ctx.Err()}
}
