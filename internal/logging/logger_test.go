package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "assistant.log")
	l, closer, err := New(Config{Level: "info", File: path})
	if err != nil {
		t.Fatal(err)
	}
	l.Debug().Msg("hidden")
	l.Info().Str("component", "test").Msg("visible")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, `"message":"visible"`) || strings.Contains(out, "hidden") {
		t.Fatalf("unexpected log contents: %s", out)
	}
	if !strings.Contains(out, `"app":"assistant"`) {
		t.Fatalf("missing app field: %s", out)
	}
}

func TestNewFallbackFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.jsonl")
	l, closer, err := NewFallback(path)
	if err != nil {
		t.Fatal(err)
	}
	l.Error().Str("audit_id", "abc").Msg("audit fallback")
	closer.Close()

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"channel":"audit_fallback"`) {
		t.Fatalf("unexpected fallback contents: %s", data)
	}
}
