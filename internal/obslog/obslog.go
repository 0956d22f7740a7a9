// Package obslog provides structured logging for the engine via
// github.com/rs/zerolog, writing to an XDG-state-directory log file so
// job ids, batch ids, and tool source tags are queryable fields rather
// than interpolated text.
package obslog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// DefaultLogDir returns the XDG state directory for engine logs.
func DefaultLogDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "ffgo", "logs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "ffgo", "logs")
	}
	return filepath.Join(home, ".local", "state", "ffgo", "logs")
}

// Setup creates the log directory, opens ffgo.log in it for appending,
// and returns a zerolog.Logger writing to both the file and stderr, plus
// a close function. Passing verbose raises the logger's level (console
// and file alike) to debug.
func Setup(logDir string, verbose bool, noLog bool) (zerolog.Logger, func() error, error) {
	consoleLevel := zerolog.InfoLevel
	if verbose {
		consoleLevel = zerolog.DebugLevel
	}
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}

	if noLog {
		logger := zerolog.New(console).Level(consoleLevel).With().Timestamp().Logger()
		return logger, func() error { return nil }, nil
	}

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("create log directory: %w", err)
	}
	path := filepath.Join(logDir, "ffgo.log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("open log file: %w", err)
	}

	multi := zerolog.MultiLevelWriter(console, f)
	logger := zerolog.New(multi).Level(consoleLevel).With().Timestamp().Logger()
	return logger, f.Close, nil
}
