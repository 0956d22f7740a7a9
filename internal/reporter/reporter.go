// Package reporter defines the listener fan-out interface for the
// job-store-wide queue-state and Smart Scan progress events this engine
// emits.
package reporter

import "github.com/five82/ffgo/internal/domain"

// Reporter receives engine-wide events. Implementations must return
// quickly; long-running work should hand off to its own goroutine.
type Reporter interface {
	QueueState(state domain.QueueState)
	SmartScanProgress(rootPath, batchID string, filesScanned, candidates, processed int)
	Warning(message string)
	Error(title, message, context string)
}

// NullReporter discards all events.
type NullReporter struct{}

func (NullReporter) QueueState(domain.QueueState)                                {}
func (NullReporter) SmartScanProgress(string, string, int, int, int)             {}
func (NullReporter) Warning(string)                                              {}
func (NullReporter) Error(string, string, string)                                {}

// CompositeReporter fans events out to multiple reporters in order.
type CompositeReporter struct {
	reporters []Reporter
}

// NewCompositeReporter returns a Reporter that forwards every event to
// each of rs in order.
func NewCompositeReporter(rs ...Reporter) *CompositeReporter {
	return &CompositeReporter{reporters: rs}
}

func (c *CompositeReporter) QueueState(state domain.QueueState) {
	for _, r := range c.reporters {
		r.QueueState(state)
	}
}

func (c *CompositeReporter) SmartScanProgress(rootPath, batchID string, filesScanned, candidates, processed int) {
	for _, r := range c.reporters {
		r.SmartScanProgress(rootPath, batchID, filesScanned, candidates, processed)
	}
}

func (c *CompositeReporter) Warning(message string) {
	for _, r := range c.reporters {
		r.Warning(message)
	}
}

func (c *CompositeReporter) Error(title, message, context string) {
	for _, r := range c.reporters {
		r.Error(title, message, context)
	}
}
