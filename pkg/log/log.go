// Package log configures the process-wide slog logger shared by the
// zapflow binaries.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the default text logger at the given level. Unrecognized
// levels fall back to info rather than failing startup.
func Setup(logLevel string) {
	var level slog.Level

	err := level.UnmarshalText([]byte(strings.ToUpper(logLevel)))
	if err != nil {
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule scopes the default logger to one service or package.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}

// WithZap scopes a logger to one Zap. Every log line along a run's path
// carries the zap_id attribute under the same key.
func WithZap(logger *slog.Logger, zapID string) *slog.Logger {
	return logger.With("zap_id", zapID)
}
