package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestWatcher_debouncesChanges(t *testing.T) {
	dir := t.TempDir()
	corpus := filepath.Join(dir, "who.json")
	if err := os.WriteFile(corpus, []byte("[]"), 0644); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	w, err := NewWatcher([]string{corpus}, func() { calls.Add(1) }, WithDebounce(100*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(corpus, []byte(`[{"title":"x"}]`), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if !waitFor(t, func() bool { return calls.Load() >= 1 }) {
		t.Fatal("onChange was not called")
	}
	time.Sleep(300 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("onChange called %d times, want 1 for one burst", n)
	}
}

func TestWatcher_ignoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	corpus := filepath.Join(dir, "who.json")
	if err := os.WriteFile(corpus, []byte("[]"), 0644); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	w, err := NewWatcher([]string{corpus}, func() { calls.Add(1) }, WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if calls.Load() != 0 {
		t.Error("changes to unwatched files must be ignored")
	}
}

func TestWatcher_replacedByRename(t *testing.T) {
	dir := t.TempDir()
	corpus := filepath.Join(dir, "mayo.json")
	if err := os.WriteFile(corpus, []byte("[]"), 0644); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	w, _ := NewWatcher([]string{corpus}, func() { calls.Add(1) }, WithDebounce(50*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	tmp := filepath.Join(dir, ".mayo.json.tmp")
	if err := os.WriteFile(tmp, []byte(`[{"title":"y"}]`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, corpus); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { return calls.Load() == 1 }) {
		t.Errorf("onChange calls = %d, want 1", calls.Load())
	}
}

func TestWatcher_stopCancelsPending(t *testing.T) {
	dir := t.TempDir()
	corpus := filepath.Join(dir, "c.json")
	_ = os.WriteFile(corpus, []byte("[]"), 0644)

	var calls atomic.Int32
	w, _ := NewWatcher([]string{corpus}, func() { calls.Add(1) }, WithDebounce(200*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	_ = os.WriteFile(corpus, []byte("[ ]"), 0644)
	time.Sleep(50 * time.Millisecond)
	w.Stop()
	w.Stop()
	time.Sleep(300 * time.Millisecond)
	if calls.Load() != 0 {
		t.Error("Stop should cancel the pending callback")
	}
}

func TestNewWatcher_noFiles(t *testing.T) {
	if _, err := NewWatcher(nil, func() {}); err == nil {
		t.Error("expected error")
	}
}
