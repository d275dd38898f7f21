package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/codekiln/langstar/internal/config"
)

// NewLogger creates a structured zerolog.Logger tagged with the service name
// and the workspace being operated on. Output is human-readable when w is a
// terminal and JSON otherwise.
func NewLogger(cfg *config.Config, service string, w io.Writer) zerolog.Logger {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		w = zerolog.ConsoleWriter{Out: f, TimeFormat: time.Kitchen}
	}

	ctx := zerolog.New(w).With().Timestamp()

	if service != "" {
		ctx = ctx.Str("service", service)
	}
	if cfg.WorkspaceID != "" {
		ctx = ctx.Str("workspace_id", cfg.WorkspaceID)
	}

	logger := ctx.Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}
