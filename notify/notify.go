// Package notify broadcasts pipeline progress and completion events to
// external subscribers.
//
// The ingestion pipeline publishes fire-and-forget: a publish failure is
// logged by the implementation and never reaches the caller, and with no
// subscribers publishing is a no-op.
package notify

import (
	"context"
	"log/slog"
)

// Publisher delivers one named event for a job to a backend.
type Publisher interface {
	Publish(ctx context.Context, event, jobID string, payload any)
}

// Discard is a Publisher that drops every event.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(context.Context, string, string, any) {}

// Slog is a Publisher that logs events at debug level. Useful as a
// development subscriber and in tests.
type Slog struct {
	Logger *slog.Logger
}

// NewSlog creates a Slog publisher. A nil logger uses slog.Default.
func NewSlog(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{Logger: logger}
}

// Publish implements Publisher.
func (s *Slog) Publish(_ context.Context, event, jobID string, payload any) {
	s.Logger.Debug("event", "name", event, "job_id", jobID, "payload", payload)
}

// Fanout delivers each event to every registered publisher in order.
type Fanout struct {
	subs []Publisher
}

// NewFanout creates a Fanout over the given publishers.
func NewFanout(subs ...Publisher) *Fanout {
	return &Fanout{subs: subs}
}

// Add registers another publisher.
func (f *Fanout) Add(p Publisher) {
	f.subs = append(f.subs, p)
}

// Publish implements Publisher.
func (f *Fanout) Publish(ctx context.Context, event, jobID string, payload any) {
	for _, p := range f.subs {
		p.Publish(ctx, event, jobID, payload)
	}
}
