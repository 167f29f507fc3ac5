package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("ménière's disease", 7); got != "ménière..." {
		t.Errorf("rune-aware truncate got %q", got)
	}
}

func TestNormalizeQuestion(t *testing.T) {
	if got := NormalizeQuestion("  Good Morning \n"); got != "good morning" {
		t.Errorf("got %q", got)
	}
}
