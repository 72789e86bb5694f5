package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const checkpointKey contextKey = "pebbl.checkpoint"

// WithCheckpoint records the checkpoint number being written or restored.
func WithCheckpoint(ctx context.Context, number int) context.Context {
	return context.WithValue(ctx, checkpointKey, number)
}

// CheckpointFromContext returns the number stored by WithCheckpoint.
func CheckpointFromContext(ctx context.Context) (int, bool) {
	n, ok := ctx.Value(checkpointKey).(int)
	return n, ok
}

// For returns base with the checkpoint number from ctx attached, or base
// itself when ctx carries none.
func For(ctx context.Context, base *slog.Logger) *slog.Logger {
	if n, ok := CheckpointFromContext(ctx); ok {
		return base.With("checkpoint", n)
	}
	return base
}
