// Package event defines the event record that flows through the dispatch
// core: created once at emission, mutated in place by middleware, then
// buffered and delivered by reference.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is a single emitted occurrence. Unlike immutable event-sourcing
// records, an Event is deliberately mutable: middleware may rewrite Data
// and Type in place, and every downstream consumer (buffer, subscribers,
// journal) sees the final state.
type Event struct {
	// ID is an opaque unique token generated at emission.
	ID string

	// Channel names the logical stream this event was published to.
	// Empty and duplicate channel names are legal.
	Channel string

	// Data is the opaque payload. The payload type is a contract between
	// the emitter and the subscribers of a channel, not enforced here.
	Data any

	// Timestamp is the creation time, stamped at emission.
	Timestamp time.Time

	// Type is an optional classification tag. Middleware may change it.
	Type string

	// Priority ranks the event for the priority eviction policy.
	// Higher values survive eviction longer. Default 0.
	Priority int

	// TTL overrides the buffer's default time-to-live when positive.
	// Zero or negative means "use the buffer default".
	TTL time.Duration
}

// Option configures event creation.
type Option func(*Event)

// WithID sets a specific event ID (default: auto-generated UUID).
func WithID(id string) Option {
	return func(e *Event) {
		e.ID = id
	}
}

// WithTimestamp sets a specific creation time (default: time.Now()).
func WithTimestamp(t time.Time) Option {
	return func(e *Event) {
		e.Timestamp = t
	}
}

// WithType sets the classification tag.
func WithType(typ string) Option {
	return func(e *Event) {
		e.Type = typ
	}
}

// WithPriority sets the eviction priority.
func WithPriority(p int) Option {
	return func(e *Event) {
		e.Priority = p
	}
}

// WithTTL sets a per-event buffer TTL override.
func WithTTL(d time.Duration) Option {
	return func(e *Event) {
		e.TTL = d
	}
}

// New creates an event for the given channel and payload.
func New(channel string, data any, opts ...Option) *Event {
	e := &Event{
		ID:        uuid.New().String(),
		Channel:   channel,
		Data:      data,
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
