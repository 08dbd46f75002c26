package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Production always emits JSON for the
// log pipeline; elsewhere the format follows LOG_FORMAT, defaulting to text.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler
	if cfg != nil && (cfg.LogFormat == "json" || cfg.IsProduction()) {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With(slog.String("service", "upkeep"))
}
