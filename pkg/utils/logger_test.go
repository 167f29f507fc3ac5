package utils

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	t.Run("debug mode returns development logger", func(t *testing.T) {
		logger, err := NewLogger(true)
		if err != nil {
			t.Fatalf("NewLogger(true) error: %v", err)
		}
		if logger == nil {
			t.Fatal("NewLogger(true) returned nil logger")
		}
		_ = logger.Sync()
	})

	t.Run("production mode returns production logger", func(t *testing.T) {
		logger, err := NewLogger(false)
		if err != nil {
			t.Fatalf("NewLogger(false) error: %v", err)
		}
		if logger == nil {
			t.Fatal("NewLogger(false) returned nil logger")
		}
		_ = logger.Sync()
	})
}

func TestNewLoggerWithPolicy(t *testing.T) {
	logger, err := NewLoggerWithPolicy(LogPolicy{Level: "warn"})
	if err != nil {
		t.Fatal(err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("error should be enabled at warn level")
	}

	if _, err := NewLoggerWithPolicy(LogPolicy{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLogPolicy_Component(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	root := zap.New(core)
	p := LogPolicy{QuietBackends: []string{"llm"}}

	p.Component(root, "llm").Info("token stream")
	p.Component(root, "llm").Warn("slow")
	p.Component(root, "retriever").Info("retrieved")

	if logs.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", logs.Len())
	}
	if logs.All()[0].LoggerName != "llm" || logs.All()[0].Level != zapcore.WarnLevel {
		t.Errorf("unexpected first entry %+v", logs.All()[0])
	}
}
