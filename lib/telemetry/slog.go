package telemetry

import (
	"log/slog"
	"os"
)

// InitSlog installs the default text handler. With verbose set, debug
// logs (including per-request scrape logging) are enabled.
func InitSlog(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}
