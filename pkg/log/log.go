// Package log configures process-wide structured logging for the runops
// binaries. Handlers write to stderr; set LOG_FORMAT=json for machine
// readable output.
package log

import (
	"log/slog"
	"os"
)

// Setup installs the process-default logger. Level strings are parsed
// case-insensitively ("debug", "info", "warn", "error"); anything
// unparseable falls back to info.
func Setup(logLevel string) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// WithModule returns a logger tagged with the originating module.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}

// ForMission returns a logger scoped to a single mission run.
func ForMission(module, missionID, workflowID string) *slog.Logger {
	return WithModule(module).With("mission_id", missionID, "workflow_id", workflowID)
}
