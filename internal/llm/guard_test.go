package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type funcGenerator func(ctx context.Context, p string) (string, error)

func (f funcGenerator) Generate(ctx context.Context, p string) (string, error) { return f(ctx, p) }

func TestGuard_serializes(t *testing.T) {
	var mu sync.Mutex
	running, maxRunning := 0, 0
	gen := funcGenerator(func(ctx context.Context, p string) (string, error) {
		mu.Lock()
		running++
		if running > maxRunning {
			maxRunning = running
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return "ok", nil
	})
	g := NewGuard(gen, WithQueueSize(10))

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Generate(context.Background(), "p"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if maxRunning != 1 {
		t.Errorf("max concurrent generations = %d, want 1", maxRunning)
	}
}

func TestGuard_queueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	gen := funcGenerator(func(ctx context.Context, p string) (string, error) {
		started <- struct{}{}
		<-release
		return "ok", nil
	})
	g := NewGuard(gen, WithQueueSize(0))

	done := make(chan error, 1)
	go func() {
		_, err := g.Generate(context.Background(), "first")
		done <- err
	}()
	<-started

	_, err := g.Generate(context.Background(), "second")
	var ge *GenerationError
	if !errors.As(err, &ge) || ge.Kind != KindBusy || !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected busy, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("first call failed: %v", err)
	}
	if g.Pending() != 0 {
		t.Errorf("Pending = %d after completion", g.Pending())
	}
}

func TestGuard_timeout(t *testing.T) {
	gen := funcGenerator(func(ctx context.Context, p string) (string, error) {
		<-ctx.Done()
		return "", contextError(ctx)
	})
	g := NewGuard(gen, WithTimeout(10*time.Millisecond))
	_, err := g.Generate(context.Background(), "p")
	var ge *GenerationError
	if !errors.As(err, &ge) || ge.Kind != KindTimeout {
		t.Errorf("expected timeout, got %v", err)
	}
}

func TestGuard_breakerOpens(t *testing.T) {
	calls := 0
	gen := funcGenerator(func(ctx context.Context, p string) (string, error) {
		calls++
		return "", &GenerationError{Kind: KindUnavailable, Err: errors.New("connection refused")}
	})
	g := NewGuard(gen, WithBreaker(2, time.Minute))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = g.Generate(ctx, "p")
	}
	if g.State() != "open" {
		t.Fatalf("breaker state = %s, want open", g.State())
	}
	_, err := g.Generate(ctx, "p")
	var ge *GenerationError
	if !errors.As(err, &ge) || ge.Kind != KindUnavailable {
		t.Errorf("expected unavailable, got %v", err)
	}
	if calls != 2 {
		t.Errorf("backend called %d times, want 2 (open breaker fails fast)", calls)
	}
}

func TestGuard_overflowDoesNotTrip(t *testing.T) {
	gen := funcGenerator(func(ctx context.Context, p string) (string, error) {
		return "", &GenerationError{Kind: KindContextOverflow, Err: ErrContextOverflow}
	})
	g := NewGuard(gen, WithBreaker(1, time.Minute))
	for i := 0; i < 3; i++ {
		_, err := g.Generate(context.Background(), "p")
		if !errors.Is(err, ErrContextOverflow) {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if g.State() != "closed" {
		t.Errorf("caller errors should not open the breaker, state = %s", g.State())
	}
}
