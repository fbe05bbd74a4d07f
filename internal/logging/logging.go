// Package logging builds the process-wide slog logger. Output goes to
// stdout, optionally tee'd to a size-rotated file.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes the desired logging configuration.
type Config struct {
	Level    string `json:"level"`
	Format   string `json:"format"` // "json" (default) or "text"
	FilePath string `json:"file_path,omitempty"`
}

// Manager owns the logger lifecycle, closing the rotated file writer on
// shutdown when one is configured.
type Manager struct {
	closer io.Closer
}

// NewManager creates a Manager and a ready-to-use logger.
func NewManager(cfg Config) (*Manager, *slog.Logger) {
	writer, closer := buildWriter(cfg)

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}

	return &Manager{closer: closer}, slog.New(handler)
}

// Close releases the log file writer, if any.
func (m *Manager) Close() error {
	if m.closer != nil {
		err := m.closer.Close()
		m.closer = nil
		return err
	}
	return nil
}

// parseLevel converts a string to slog.Level, defaulting to Info.
func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildWriter creates the log output writer. With a file path configured
// it returns stdout tee'd into a lumberjack writer, which is also the
// closer.
func buildWriter(cfg Config) (io.Writer, io.Closer) {
	if cfg.FilePath == "" {
		return os.Stdout, nil
	}

	lj := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    50, // MB
		MaxBackups: 3,
		MaxAge:     30, // days
	}
	return io.MultiWriter(os.Stdout, lj), lj
}
