// Package ffgo provides the transcode engine's public surface: job
// submission, Smart Scan control, and the event types delivered to
// registered listeners.
package ffgo

import (
	"time"

	"github.com/five82/ffgo/internal/domain"
)

// Event types emitted to registered listeners.
const (
	EventTypeQueueState    = "queue_state"
	EventTypeSmartScan     = "smart_scan_progress"
	EventTypeWarning       = "warning"
	EventTypeError         = "error"
)

// Event is the interface for all engine events.
type Event interface {
	Type() string
	Timestamp() int64
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType string `json:"type"`
	Time      int64  `json:"timestamp"`
}

func (e BaseEvent) Type() string     { return e.EventType }
func (e BaseEvent) Timestamp() int64 { return e.Time }

// QueueStateEvent carries the full queue snapshot after any store mutation.
type QueueStateEvent struct {
	BaseEvent
	State domain.QueueState `json:"state"`
}

// SmartScanProgressEvent reports Smart Scan batch counters.
type SmartScanProgressEvent struct {
	BaseEvent
	RootPath   string `json:"rootPath"`
	BatchID    string `json:"batchId"`
	FilesScanned int  `json:"filesScanned"`
	Candidates int    `json:"candidates"`
	Processed  int    `json:"processed"`
}

// WarningEvent represents a non-fatal warning message.
type WarningEvent struct {
	BaseEvent
	Message string `json:"message"`
}

// ErrorEvent represents an error surfaced to listeners.
type ErrorEvent struct {
	BaseEvent
	Title      string `json:"title"`
	Message    string `json:"message"`
	Context    string `json:"context,omitempty"`
}

// EventHandler is called for every emitted event. A handler is expected
// to return quickly; long-running listener work should hand off to its
// own goroutine.
type EventHandler func(Event) error

// NewTimestamp returns the current Unix timestamp in milliseconds.
func NewTimestamp() int64 {
	return time.Now().UnixMilli()
}
