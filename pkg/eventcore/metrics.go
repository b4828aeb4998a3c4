package eventcore

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Metrics is an immutable snapshot of dispatcher, buffer, and pipeline
// accounting. Every call to Dispatcher.Metrics returns an independent
// value; snapshots never share mutable state.
type Metrics struct {
	// EventsEmitted counts every Emit call accepted by the dispatcher.
	EventsEmitted uint64
	// EventsDelivered counts subscriber callback invocations, replay
	// included.
	EventsDelivered uint64
	// EventsDropped counts events that failed or were truncated in the
	// pipeline, or arrived after teardown.
	EventsDropped uint64
	// EventsPerSecond is the emission rate over the last minute.
	EventsPerSecond float64

	// ActiveSubscriptions is the current registry size.
	ActiveSubscriptions int

	// BufferedEvents is the current buffered event count.
	BufferedEvents int
	// BufferChannels is the number of channels holding buffered events.
	BufferChannels int
	// BufferUtilization is BufferedEvents over aggregate capacity
	// (per-channel capacity times occupied channels), in [0, 1].
	BufferUtilization float64
	// BufferMemoryBytes is the buffer's deterministic memory estimate.
	BufferMemoryBytes int64
	// BufferEvictions counts capacity evictions.
	BufferEvictions uint64
	// BufferExpirations counts TTL expirations.
	BufferExpirations uint64

	// MiddlewareRuns counts pipeline executions.
	MiddlewareRuns uint64
	// MiddlewareFailures counts failed pipeline executions.
	MiddlewareFailures uint64
	// MiddlewareLatencyTotal is cumulative time spent in the pipeline.
	MiddlewareLatencyTotal time.Duration
	// MiddlewareLatencyAvg is MiddlewareLatencyTotal over MiddlewareRuns.
	MiddlewareLatencyAvg time.Duration
}

// rateWindow is the sliding window width for EventsPerSecond.
const rateWindow = 60

// rateTracker counts emissions in one-second buckets over a sliding
// minute.
type rateTracker struct {
	mu      sync.Mutex
	clock   clock.Clock
	buckets [rateWindow]uint64
	stamps  [rateWindow]int64
}

func newRateTracker(c clock.Clock) *rateTracker {
	return &rateTracker{clock: c}
}

// mark records one emission at the current second.
func (r *rateTracker) mark() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now().Unix()
	idx := now % rateWindow
	if r.stamps[idx] != now {
		r.stamps[idx] = now
		r.buckets[idx] = 0
	}
	r.buckets[idx]++
}

// rate returns the average emissions per second over the window.
func (r *rateTracker) rate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now().Unix()
	var total uint64
	for i := 0; i < rateWindow; i++ {
		if now-r.stamps[i] < rateWindow {
			total += r.buckets[i]
		}
	}
	return float64(total) / float64(rateWindow)
}
