package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	for _, cfg := range []Config{
		DefaultConfig(),
		{Level: "debug", Format: "json"},
		{Level: "warn", Format: "text"},
		{},
	} {
		l, err := New(cfg)
		if err != nil {
			t.Fatalf("New(%+v) error = %v", cfg, err)
		}
		if l == nil {
			t.Fatalf("New(%+v) returned nil logger", cfg)
		}
	}
}

func TestNew_Rejects(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("New accepted level loud")
	}
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("New accepted format xml")
	}
}

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "debug", Format: "json", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	l.With("rank", 3).Info("checkpoint written", "checkpoint", 7)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "checkpoint written" || entry["rank"] != float64(3) || entry["checkpoint"] != float64(7) {
		t.Fatalf("entry = %v", entry)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "warn", Format: "text", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	l.Debug("debug")
	l.Info("info")
	if buf.Len() != 0 {
		t.Fatalf("unexpected output %q", buf.String())
	}
	l.Warn("warn")
	if !strings.Contains(buf.String(), "warn") {
		t.Fatalf("missing warn entry: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}
