// Package events delivers "a tweet changed" notifications to subscribers.
//
// A Sink receives events synchronously. The moderation service is handed one
// Sink at construction; fan-out to several subscribers (log, NATS, websocket
// clients) is a Dispatcher, which is itself a Sink.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/sakif/tweetsync/internal/model"
)

// TypeApprovalChanged is published after a moderation write commits.
const TypeApprovalChanged = "tweet.approval_changed"

// Event carries the full record as it is after the change.
type Event struct {
	Type  string      `json:"type"`
	Tweet model.Tweet `json:"tweet"`
	At    time.Time   `json:"at"`
}

// Sink receives events.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event) error

func (f SinkFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) error { return nil })

// Dispatcher publishes to every sink in order. One failing sink does not stop
// the rest; all failures are joined into the returned error.
type Dispatcher struct {
	sinks []Sink
}

func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks}
}

// Add appends a sink. Not safe to call while events are being published.
func (d *Dispatcher) Add(s Sink) {
	d.sinks = append(d.sinks, s)
}

// Len is the number of registered sinks.
func (d *Dispatcher) Len() int { return len(d.sinks) }

func (d *Dispatcher) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range d.sinks {
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
