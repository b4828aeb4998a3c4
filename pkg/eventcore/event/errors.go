package event

import "fmt"

// Failure stages for FailureError.
const (
	StageMiddleware = "middleware"
	StageSubscriber = "subscriber"
	StageSync       = "sync"
)

// FailureError records a contained failure while processing one event.
// These errors are reported to the observability sink, never returned to
// the emitting caller.
type FailureError struct {
	// EventID identifies the event that failed.
	EventID string
	// Channel is the channel the event was emitted on.
	Channel string
	// Stage is where processing failed ("middleware", "subscriber", "sync").
	Stage string
	// Message describes the failure.
	Message string
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *FailureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failure for event %s on %q: %s: %v", e.Stage, e.EventID, e.Channel, e.Message, e.Err)
	}
	return fmt.Sprintf("%s failure for event %s on %q: %s", e.Stage, e.EventID, e.Channel, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *FailureError) Unwrap() error {
	return e.Err
}
