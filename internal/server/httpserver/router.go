package httpserver

import (
	"log/slog"
	"net/http"
)

// RouterConfig holds the handlers served by a process.
type RouterConfig struct {
	Rank   int
	Logger *slog.Logger

	// TransportPath and Transport serve peer messages. Optional.
	TransportPath string
	Transport     http.Handler

	// Metrics serves /metrics. Optional.
	Metrics http.Handler
}

// NewRouter builds the process mux.
func NewRouter(cfg *RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "rank": cfg.Rank})
		}),
		RequestID(),
		Recover(logger),
	))

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics, RequestID(), Recover(logger)))
	}

	if cfg.Transport != nil {
		mux.Handle(cfg.TransportPath, Chain(
			cfg.Transport,
			RequestID(),
			Recover(logger),
			AccessLog(logger, slog.LevelDebug),
		))
	}
	return mux
}
