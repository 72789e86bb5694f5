package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestCheckpointFromContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := CheckpointFromContext(ctx); ok {
		t.Fatal("checkpoint present in empty context")
	}
	ctx = WithCheckpoint(ctx, 12)
	if n, ok := CheckpointFromContext(ctx); !ok || n != 12 {
		t.Fatalf("CheckpointFromContext = %d, %v", n, ok)
	}
}

func TestFor(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	For(context.Background(), base).Info("fresh")
	if strings.Contains(buf.String(), "checkpoint=") {
		t.Fatalf("unexpected checkpoint attribute: %q", buf.String())
	}
	buf.Reset()

	For(WithCheckpoint(context.Background(), 9), base.With("rank", 2)).Info("restored")
	out := buf.String()
	if !strings.Contains(out, "rank=2") || !strings.Contains(out, "checkpoint=9") {
		t.Fatalf("output = %q", out)
	}
}
