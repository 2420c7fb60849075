package logging

import (
	"log/slog"
	"os"
)

// Setup initializes the global slog logger with JSON output to stdout.
// Development environments also get DEBUG records.
func Setup(appEnv string) {
	level := slog.LevelInfo
	if appEnv == "development" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(NewStdoutHandler(level)))
}

func NewStdoutHandler(level slog.Level) slog.Handler {
	return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
}
