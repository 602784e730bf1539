// Package notify is an optional failure-notification sink, mirroring
// the teacher's pkg/notification/delivery.Service shape (a small
// Deliver-style interface with one concrete implementation wired in)
// but redirected at ingestion polling failures instead of remediation
// actions.
package notify

import "context"

// Event is one notifiable occurrence: a polling tick, module import,
// or metadata sync that failed.
type Event struct {
	Release string
	Module  string
	Reason  string
}

// Sink delivers an Event somewhere. NoopSink is the implementation
// that silently drops every event.
type Sink interface {
	Notify(ctx context.Context, ev Event) error
}

// NoopSink is the default Sink when no channel is configured.
type NoopSink struct{}

func (NoopSink) Notify(context.Context, Event) error { return nil }
