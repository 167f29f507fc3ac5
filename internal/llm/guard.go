package llm

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Guard serializes calls to a Generator. At most one completion runs at a
// time, at most queueSize callers wait behind it, and every call is bounded
// by a timeout. Repeated backend failures open a circuit breaker so callers
// fail fast until the cooldown elapses.
type Guard struct {
	next      Generator
	slot      chan struct{}
	pending   atomic.Int64
	queueSize int
	timeout   time.Duration
	breaker   *gobreaker.CircuitBreaker
	logger    *zap.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*guardSettings)

type guardSettings struct {
	queueSize int
	timeout   time.Duration
	failures  uint32
	cooldown  time.Duration
	logger    *zap.Logger
}

// WithQueueSize sets how many callers may wait for the model. Zero rejects
// any caller while a completion is running.
func WithQueueSize(n int) GuardOption {
	return func(s *guardSettings) {
		if n >= 0 {
			s.queueSize = n
		}
	}
}

// WithTimeout bounds each call, including time spent waiting in the queue.
func WithTimeout(d time.Duration) GuardOption {
	return func(s *guardSettings) { s.timeout = d }
}

// WithBreaker opens the circuit after failures consecutive backend failures
// and keeps it open for cooldown.
func WithBreaker(failures int, cooldown time.Duration) GuardOption {
	return func(s *guardSettings) {
		if failures > 0 {
			s.failures = uint32(failures)
		}
		if cooldown > 0 {
			s.cooldown = cooldown
		}
	}
}

// WithGuardLogger sets a logger for breaker state changes and rejections.
func WithGuardLogger(l *zap.Logger) GuardOption {
	return func(s *guardSettings) { s.logger = l }
}

// NewGuard wraps next.
func NewGuard(next Generator, opts ...GuardOption) *Guard {
	s := &guardSettings{
		queueSize: 8,
		failures:  5,
		cooldown:  30 * time.Second,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	g := &Guard{
		next:      next,
		slot:      make(chan struct{}, 1),
		queueSize: s.queueSize,
		timeout:   s.timeout,
		logger:    s.logger,
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 1,
		Timeout:     s.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// Only backend trouble counts against the breaker.
		IsSuccessful: func(err error) bool {
			var ge *GenerationError
			if errors.As(err, &ge) {
				return ge.Kind != KindUnavailable && ge.Kind != KindTimeout
			}
			return err == nil
		},
	})
	return g
}

// Generate runs the wrapped generator once the model is free.
func (g *Guard) Generate(ctx context.Context, p string) (string, error) {
	if n := g.pending.Add(1); n > int64(g.queueSize)+1 {
		g.pending.Add(-1)
		g.logger.Warn("generation rejected, queue full", zap.Int("queue_size", g.queueSize))
		return "", &GenerationError{Kind: KindBusy, Err: ErrQueueFull}
	}
	defer g.pending.Add(-1)

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return "", contextError(ctx)
	}
	defer func() { <-g.slot }()

	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.next.Generate(ctx, p)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", &GenerationError{Kind: KindUnavailable, Err: fmt.Errorf("model backend circuit open: %w", err)}
		}
		var ge *GenerationError
		if errors.As(err, &ge) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", contextError(ctx)
		}
		return "", &GenerationError{Kind: KindUnavailable, Err: err}
	}
	return out.(string), nil
}

// State reports the circuit breaker state: "closed", "half-open" or "open".
func (g *Guard) State() string {
	return g.breaker.State().String()
}

// Pending returns the number of calls running or waiting.
func (g *Guard) Pending() int {
	return int(g.pending.Load())
}
