// Package ffgo re-exports the internal Reporter interface and related
// types so callers can receive engine-wide events directly.
package ffgo

import (
	"github.com/rs/zerolog"

	"github.com/five82/ffgo/internal/reporter"
)

// Reporter defines the interface for receiving engine events. Implement
// this to stream queue-state and Smart Scan progress updates.
type Reporter = reporter.Reporter

// NullReporter discards all events.
type NullReporter = reporter.NullReporter

// CompositeReporter fans events out to multiple reporters in order.
type CompositeReporter = reporter.CompositeReporter

// NewCompositeReporter returns a Reporter forwarding to each of rs in order.
func NewCompositeReporter(rs ...Reporter) *CompositeReporter {
	return reporter.NewCompositeReporter(rs...)
}

// NewTerminalReporter returns a Reporter that prints colored progress
// to the terminal.
func NewTerminalReporter() Reporter {
	return reporter.NewTerminalReporter()
}

// NewLogReporter returns a Reporter that writes structured log entries
// through logger.
func NewLogReporter(logger zerolog.Logger) Reporter {
	return reporter.NewLogReporter(logger)
}
