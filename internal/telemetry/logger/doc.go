// Package logger builds the slog loggers pebbl processes log through.
//
//   - logger.go: handler and level configuration
//   - context.go: the checkpoint number a call runs under, carried in the
//     context and added to log lines by For
package logger
