package comm

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// LoggingInterceptor logs transport RPCs. Successful deliveries are logged
// at debug level; failures at warn.
type LoggingInterceptor struct {
	logger *slog.Logger
}

// NewLoggingInterceptor creates a new logging interceptor.
func NewLoggingInterceptor(logger *slog.Logger) *LoggingInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingInterceptor{logger: logger}
}

// WrapUnary implements connect.Interceptor.
func (i *LoggingInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		duration := time.Since(start)

		side := "server"
		if req.Spec().IsClient {
			side = "client"
		}
		if err != nil {
			i.logger.Warn("comm rpc error",
				"side", side,
				"method", req.Spec().Procedure,
				"peer", req.Peer().Addr,
				"duration_ms", duration.Milliseconds(),
				"error", err)
		} else {
			i.logger.Debug("comm rpc",
				"side", side,
				"method", req.Spec().Procedure,
				"peer", req.Peer().Addr,
				"duration_ms", duration.Milliseconds())
		}
		return resp, err
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (i *LoggingInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler implements connect.Interceptor.
func (i *LoggingInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
