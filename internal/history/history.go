// Package history exports supervision lifecycle events to external
// analytics/audit systems.
package history

import (
	"context"
	"log/slog"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart   EventType = "start"
	EventStop    EventType = "stop"
	EventRestart EventType = "restart"
	EventError   EventType = "error"
)

// Event is a single supervision event. Detail carries the error message
// for EventError and is empty otherwise.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	PID        int       `json:"pid"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for supervision events. Implementations must be
// safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// Recorder fans an event out to a set of sinks. Sink failures are logged
// and never propagate: losing an audit row must not disturb supervision.
type Recorder struct {
	sinks []Sink
}

func NewRecorder(sinks ...Sink) *Recorder {
	return &Recorder{sinks: sinks}
}

func (r *Recorder) Record(ctx context.Context, typ EventType, pid int, detail string) {
	if r == nil || len(r.sinks) == 0 {
		return
	}
	e := Event{Type: typ, OccurredAt: time.Now().UTC(), PID: pid, Detail: detail}
	for _, s := range r.sinks {
		if err := s.Send(ctx, e); err != nil {
			slog.Warn("history sink send failed", "type", typ, "error", err)
		}
	}
}

func (r *Recorder) Close() {
	if r == nil {
		return
	}
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			slog.Warn("history sink close failed", "error", err)
		}
	}
}
