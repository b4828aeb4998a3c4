// Package pipeline runs an ordered middleware chain over each emitted
// event before the event is accepted for buffering and delivery.
//
// Each step receives a next continuation bound to the following step.
// Control only advances when a step invokes next, so a step can veto an
// event by simply not calling it. A step that returns an error or panics
// fails the chain for that one event; the failure is contained and the
// event is dropped.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/randalmurphal/eventcore/pkg/eventcore/event"
)

// Middleware is one transformation/validation step. It may mutate the
// event's Data and Type in place; mutations are visible to subsequent
// steps and to the final buffered/delivered event. A step may block
// (e.g. on I/O) — the chain waits for it.
type Middleware func(ctx context.Context, evt *event.Event, next func(context.Context) error) error

// State is the terminal state of one pipeline run.
type State int

const (
	// Completed means every step ran and invoked next; the event is
	// accepted for buffering and delivery.
	Completed State = iota

	// Truncated means a step returned without invoking next. The event
	// is dropped without an error report.
	Truncated

	// Failed means a step returned an error or panicked. The event is
	// dropped and the failure reported.
	Failed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Completed:
		return "completed"
	case Truncated:
		return "truncated"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is the result of running one event through the chain.
type Outcome struct {
	State   State
	Err     error         // non-nil only when State == Failed
	Elapsed time.Duration // wall time spent in the chain
}

// Pipeline is an ordered middleware chain. Safe for concurrent use:
// registration is guarded, and each run operates on a snapshot of the
// chain taken at run start.
type Pipeline struct {
	mu    sync.RWMutex
	steps []Middleware

	statsMu      sync.Mutex
	runs         uint64
	failures     uint64
	totalLatency time.Duration
}

// New creates an empty pipeline.
func New() *Pipeline {
	return &Pipeline{}
}

// Use appends a step to the chain. A nil step is silently ignored;
// registration never fails.
func (p *Pipeline) Use(m Middleware) {
	if m == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, m)
}

// Len returns the number of registered steps.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.steps)
}

// Reset removes every registered step.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = nil
}

// Run threads evt through the chain in registration order and reports
// the terminal state. Run never panics: a panicking step is converted
// into a Failed outcome.
func (p *Pipeline) Run(ctx context.Context, evt *event.Event) Outcome {
	p.mu.RLock()
	steps := make([]Middleware, len(p.steps))
	copy(steps, p.steps)
	p.mu.RUnlock()

	start := time.Now()
	out := execute(ctx, evt, steps)
	out.Elapsed = time.Since(start)

	p.statsMu.Lock()
	p.runs++
	p.totalLatency += out.Elapsed
	if out.State == Failed {
		p.failures++
	}
	p.statsMu.Unlock()

	return out
}

// Stats returns cumulative run count, failure count, and total latency.
func (p *Pipeline) Stats() (runs, failures uint64, totalLatency time.Duration) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.runs, p.failures, p.totalLatency
}

// execute walks the chain with an index-based cursor. Each step gets a
// next continuation bound to index+1; invoking next twice is a no-op.
func execute(ctx context.Context, evt *event.Event, steps []Middleware) (out Outcome) {
	if len(steps) == 0 {
		return Outcome{State: Completed}
	}

	completed := false

	var call func(ctx context.Context, i int) error
	call = func(ctx context.Context, i int) error {
		if i >= len(steps) {
			completed = true
			return nil
		}
		invoked := false
		next := func(nctx context.Context) error {
			if invoked {
				return nil
			}
			invoked = true
			if nctx == nil {
				nctx = ctx
			}
			return call(nctx, i+1)
		}
		return steps[i](ctx, evt, next)
	}

	defer func() {
		if r := recover(); r != nil {
			out = Outcome{
				State: Failed,
				Err: &event.FailureError{
					EventID: evt.ID,
					Channel: evt.Channel,
					Stage:   event.StageMiddleware,
					Message: fmt.Sprintf("step panic: %v", r),
				},
			}
		}
	}()

	if err := call(ctx, 0); err != nil {
		return Outcome{
			State: Failed,
			Err: &event.FailureError{
				EventID: evt.ID,
				Channel: evt.Channel,
				Stage:   event.StageMiddleware,
				Message: "step returned error",
				Err:     err,
			},
		}
	}
	if !completed {
		return Outcome{State: Truncated}
	}
	return Outcome{State: Completed}
}
