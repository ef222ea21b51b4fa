package main

import (
	"errors"
	"io"
	"log/slog"
	"os"
)

// configureLogger sets the default slog logger from a level name and an
// optional file path, grounded on the teacher's
// internal/utils/configurelogger.go. Returns the open file (if any), so
// the caller can close it on shutdown.
func configureLogger(logLevel, logFile string) (*os.File, error) {
	var level slog.Level
	switch logLevel {
	case "none":
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return nil, nil
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "info":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	default:
		return nil, errors.New("config: unrecognized log level " + logLevel)
	}

	opts := &slog.HandlerOptions{Level: level}

	if logFile == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, opts)))
		return nil, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(f, opts)))
	return f, nil
}
