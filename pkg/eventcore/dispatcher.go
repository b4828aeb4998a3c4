package eventcore

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/eventcore/pkg/eventcore/buffer"
	"github.com/randalmurphal/eventcore/pkg/eventcore/event"
	"github.com/randalmurphal/eventcore/pkg/eventcore/journal"
	"github.com/randalmurphal/eventcore/pkg/eventcore/observability"
	"github.com/randalmurphal/eventcore/pkg/eventcore/pipeline"
)

// Callback receives delivered events. The event is shared by reference:
// callbacks see middleware mutations and must not retain the event past
// the call if they mutate it.
type Callback func(evt *event.Event)

// subscription is one registry entry.
type subscription struct {
	id      uint64
	channel string
	fn      Callback
	fnPtr   uintptr
	once    bool
	fired   bool
	removed bool
}

// Dispatcher owns the subscriber registry and orchestrates
// emit → middleware → buffer → notify with consistent metrics.
//
// A single mutex serializes registry, buffer, and counter mutation.
// Subscriber callbacks run outside the lock, so callbacks may call back
// into the dispatcher (emit, subscribe, unsubscribe) freely.
type Dispatcher struct {
	cfg  dispatcherConfig
	pipe *pipeline.Pipeline
	buf  *buffer.Buffer

	mu        sync.Mutex
	subs      map[string][]*subscription
	nextSubID uint64
	destroyed bool

	emitted   atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	rate      *rateTracker

	// inflight tracks asynchronous emits so Destroy and tests can wait
	// for the pipeline to drain.
	inflight sync.WaitGroup
}

// New creates a dispatcher.
func New(opts ...Option) *Dispatcher {
	cfg := defaultDispatcherConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Dispatcher{
		cfg:  cfg,
		pipe: pipeline.New(),
		buf:  buffer.New(cfg.bufferPolicy, cfg.bufferCfg, buffer.WithClock(cfg.clock)),
		subs: make(map[string][]*subscription),
		rate: newRateTracker(cfg.clock),
	}
}

// Emit constructs an event for the channel and threads it through the
// middleware pipeline; on success the event is buffered and every
// current subscriber on the channel is invoked in registration order.
//
// With an empty middleware chain (or the Immediate option) the whole
// path completes before Emit returns. Otherwise Emit is fire-and-forget:
// the pipeline runs on its own goroutine and buffering/delivery happen
// when it completes, so cross-event ordering is not guaranteed.
//
// Emit never fails for degenerate input (empty channel, nil data); the
// only error is ErrDestroyed after teardown.
func (d *Dispatcher) Emit(channel string, data any, opts ...EmitOption) error {
	var eo emitOptions
	for _, opt := range opts {
		opt(&eo)
	}

	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return ErrDestroyed
	}
	evt := event.New(channel, data,
		event.WithTimestamp(d.cfg.clock.Now()),
		event.WithType(eo.eventType),
		event.WithPriority(eo.priority),
		event.WithTTL(eo.ttl),
	)
	steps := d.pipe.Len()
	d.mu.Unlock()

	d.emitted.Add(1)
	d.rate.mark()

	if steps == 0 || eo.immediate {
		d.process(context.Background(), evt)
		return nil
	}

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		d.process(context.Background(), evt)
	}()
	return nil
}

// process runs one event through the pipeline and, on completion,
// buffers and delivers it.
func (d *Dispatcher) process(ctx context.Context, evt *event.Event) {
	ctx, span := d.cfg.spans.StartEmitSpan(ctx, evt.Channel, evt.ID)

	out := d.pipe.Run(ctx, evt)
	d.cfg.recorder.RecordEmit(ctx, evt.Channel, out.Elapsed, out.Err)

	switch out.State {
	case pipeline.Failed:
		d.dropped.Add(1)
		observability.LogMiddlewareFailure(d.cfg.logger, evt.Channel, evt.ID, out.Err)
		d.cfg.recorder.RecordDrop(ctx, evt.Channel, "middleware_error")
		d.cfg.spans.EndSpanWithError(span, out.Err)
		return
	case pipeline.Truncated:
		// Deliberate veto: dropped without an error report.
		d.dropped.Add(1)
		d.cfg.recorder.RecordDrop(ctx, evt.Channel, "middleware_truncated")
		d.cfg.spans.EndSpanWithError(span, nil)
		return
	}

	d.accept(ctx, evt)
	d.cfg.spans.EndSpanWithError(span, nil)
}

// accept buffers a pipeline-accepted event and notifies subscribers.
func (d *Dispatcher) accept(ctx context.Context, evt *event.Event) {
	d.mu.Lock()
	if d.destroyed {
		// Torn down while the pipeline was running.
		d.mu.Unlock()
		d.dropped.Add(1)
		d.cfg.recorder.RecordDrop(ctx, evt.Channel, "destroyed")
		return
	}

	d.buf.Add(evt)
	occupancy := d.buf.ChannelLen(evt.Channel)

	// Snapshot targets in registration order. Once-subscriptions are
	// claimed here, under the lock, so a concurrent emit cannot fire
	// them twice.
	targets := d.claimTargetsLocked(evt.Channel)
	d.mu.Unlock()

	d.journalAppend(evt)
	d.syncNotify(evt)

	dctx, span := d.cfg.spans.StartDeliverSpan(ctx, evt.Channel, len(targets))
	for _, sub := range targets {
		d.invoke(sub, evt)
	}
	d.cfg.spans.EndSpanWithError(span, nil)

	d.cfg.recorder.RecordDelivery(dctx, evt.Channel, len(targets))
	d.cfg.recorder.RecordBufferOccupancy(dctx, evt.Channel, occupancy)
	observability.LogDelivery(d.cfg.logger, evt.Channel, evt.ID, len(targets))
}

// claimTargetsLocked returns the channel's live subscriptions in
// registration order and removes once-subscriptions from the registry.
// Callers must hold d.mu.
func (d *Dispatcher) claimTargetsLocked(channel string) []*subscription {
	entries := d.subs[channel]
	if len(entries) == 0 {
		return nil
	}

	targets := make([]*subscription, 0, len(entries))
	kept := entries[:0]
	for _, sub := range entries {
		if sub.removed {
			continue
		}
		targets = append(targets, sub)
		if sub.once {
			sub.fired = true
			sub.removed = true
			continue
		}
		kept = append(kept, sub)
	}
	if len(kept) == 0 {
		delete(d.subs, channel)
	} else {
		d.subs[channel] = kept
	}
	return targets
}

// invoke calls one subscriber with panic containment. A panicking
// callback is reported and does not affect sibling callbacks or the
// emitting caller.
func (d *Dispatcher) invoke(sub *subscription, evt *event.Event) {
	defer func() {
		if r := recover(); r != nil {
			ferr := &event.FailureError{
				EventID: evt.ID,
				Channel: evt.Channel,
				Stage:   event.StageSubscriber,
				Message: fmt.Sprintf("callback panic: %v", r),
			}
			observability.LogSubscriberFailure(d.cfg.logger, evt.Channel, evt.ID, ferr)
		}
	}()

	d.delivered.Add(1)
	sub.fn(evt)
}

// journalAppend records an accepted event, best-effort.
func (d *Dispatcher) journalAppend(evt *event.Event) {
	if d.cfg.journal == nil {
		return
	}
	rec := journal.Record{
		EventID:    evt.ID,
		Channel:    evt.Channel,
		Type:       evt.Type,
		Priority:   evt.Priority,
		Data:       journal.EncodePayload(evt.Data),
		Timestamp:  evt.Timestamp,
		BufferedAt: d.cfg.clock.Now(),
	}
	if err := d.cfg.journal.Append(rec); err != nil {
		observability.LogJournalError(d.cfg.logger, "append", err)
	}
}

// syncNotify fans the event out to the sync collaborator, best-effort.
func (d *Dispatcher) syncNotify(evt *event.Event) {
	if !d.cfg.syncEnabled || d.cfg.syncer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			ferr := &event.FailureError{
				EventID: evt.ID,
				Channel: evt.Channel,
				Stage:   event.StageSync,
				Message: fmt.Sprintf("syncer panic: %v", r),
			}
			observability.LogSyncFailure(d.cfg.logger, evt.Channel, evt.ID, ferr)
		}
	}()
	d.cfg.syncer.Notify(evt)
}

// On registers a persistent subscription and immediately replays every
// currently buffered event on the channel to the new callback, in
// buffered order. Returns an idempotent unsubscribe function.
//
// A nil callback is tolerated: the subscription is a silent no-op.
func (d *Dispatcher) On(channel string, fn Callback) (func(), error) {
	return d.subscribe(channel, fn, false)
}

// Once registers a subscription that is removed no later than
// immediately after its first invocation. If buffered events exist at
// subscribe time, the replayed first event counts as that invocation.
func (d *Dispatcher) Once(channel string, fn Callback) (func(), error) {
	return d.subscribe(channel, fn, true)
}

func (d *Dispatcher) subscribe(channel string, fn Callback, once bool) (func(), error) {
	noop := func() {}

	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return noop, ErrDestroyed
	}
	if fn == nil {
		d.mu.Unlock()
		return noop, nil
	}

	d.nextSubID++
	sub := &subscription{
		id:      d.nextSubID,
		channel: channel,
		fn:      fn,
		fnPtr:   reflect.ValueOf(fn).Pointer(),
		once:    once,
	}
	d.subs[channel] = append(d.subs[channel], sub)

	// Replay snapshot taken under the same lock as registration so the
	// new subscriber sees a consistent buffer state.
	replay := d.buf.Get(channel)
	if once && len(replay) > 1 {
		replay = replay[:1]
	}
	if once && len(replay) > 0 {
		sub.fired = true
		sub.removed = true
		d.removeLocked(sub)
	}
	d.mu.Unlock()

	for _, evt := range replay {
		d.invoke(sub, evt)
	}

	return d.unsubscribeFunc(sub), nil
}

// unsubscribeFunc builds the idempotent unsubscribe handle for a
// subscription.
func (d *Dispatcher) unsubscribeFunc(sub *subscription) func() {
	var onceGuard sync.Once
	return func() {
		onceGuard.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			if !sub.removed {
				sub.removed = true
				d.removeLocked(sub)
			}
		})
	}
}

// removeLocked deletes a subscription from the registry.
// Callers must hold d.mu.
func (d *Dispatcher) removeLocked(sub *subscription) {
	entries := d.subs[sub.channel]
	for i, s := range entries {
		if s.id == sub.id {
			d.subs[sub.channel] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(d.subs[sub.channel]) == 0 {
		delete(d.subs, sub.channel)
	}
}

// Off removes one subscription matching the callback, or every
// subscription on the channel when no callback is given. Unknown
// channels and callbacks are a no-op, and Off stays safe after Destroy.
func (d *Dispatcher) Off(channel string, fns ...Callback) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(fns) == 0 || fns[0] == nil {
		for _, sub := range d.subs[channel] {
			sub.removed = true
		}
		delete(d.subs, channel)
		return
	}

	target := reflect.ValueOf(fns[0]).Pointer()
	entries := d.subs[channel]
	for i, sub := range entries {
		if sub.fnPtr == target {
			sub.removed = true
			d.subs[channel] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(d.subs[channel]) == 0 {
		delete(d.subs, channel)
	}
}

// Use appends a middleware step to the pipeline. Non-callable (nil)
// input is silently ignored. Fails only with ErrDestroyed.
func (d *Dispatcher) Use(m pipeline.Middleware) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.destroyed {
		return ErrDestroyed
	}
	d.pipe.Use(m)
	return nil
}

// Buffered returns the buffered events for a channel in buffered order.
// Safe (and empty) after Destroy.
func (d *Dispatcher) Buffered(channel string) []*event.Event {
	return d.buf.Get(channel)
}

// Clear removes buffered events for the given channels, or all channels
// when none are named. Safe after Destroy.
func (d *Dispatcher) Clear(channels ...string) {
	d.buf.Clear(channels...)
}

// Configure applies partial buffer configuration changes; they affect
// subsequently inserted events only.
func (d *Dispatcher) Configure(o buffer.Overrides) {
	d.buf.Configure(o)
}

// EvictExpired sweeps the buffer for TTL-expired events and returns the
// count removed.
func (d *Dispatcher) EvictExpired() int {
	return d.buf.EvictExpired()
}

// Metrics merges dispatcher counters with buffer and pipeline metrics
// into one immutable snapshot. Safe after Destroy.
func (d *Dispatcher) Metrics() Metrics {
	d.mu.Lock()
	subscriptions := 0
	for _, entries := range d.subs {
		subscriptions += len(entries)
	}
	d.mu.Unlock()

	bm := d.buf.Metrics()
	runs, failures, total := d.pipe.Stats()

	m := Metrics{
		EventsEmitted:          d.emitted.Load(),
		EventsDelivered:        d.delivered.Load(),
		EventsDropped:          d.dropped.Load(),
		EventsPerSecond:        d.rate.rate(),
		ActiveSubscriptions:    subscriptions,
		BufferedEvents:         bm.Buffered,
		BufferChannels:         bm.Channels,
		BufferMemoryBytes:      bm.EstimatedBytes,
		BufferEvictions:        bm.TotalEvicted,
		BufferExpirations:      bm.TotalExpired,
		MiddlewareRuns:         runs,
		MiddlewareFailures:     failures,
		MiddlewareLatencyTotal: total,
	}
	if capacity := bm.MaxSize * bm.Channels; capacity > 0 {
		m.BufferUtilization = float64(bm.Buffered) / float64(capacity)
	}
	if runs > 0 {
		m.MiddlewareLatencyAvg = total / time.Duration(runs)
	}
	return m
}

// Destroy tears the dispatcher down: the registry, middleware chain, and
// buffer are emptied and a permanent destroyed flag is set. Idempotent.
// Subsequent Emit, On, Once, and Use fail with ErrDestroyed; Off, Clear,
// Buffered, and Metrics remain safe no-ops/empty-results.
//
// Destroy does not close an attached journal store; the caller owns it.
func (d *Dispatcher) Destroy() {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	d.destroyed = true

	subscriptions := 0
	for _, entries := range d.subs {
		subscriptions += len(entries)
		for _, sub := range entries {
			sub.removed = true
		}
	}
	d.subs = make(map[string][]*subscription)
	d.mu.Unlock()

	buffered := d.buf.Len()
	d.buf.Clear()
	d.pipe.Reset()

	observability.LogDestroy(d.cfg.logger, subscriptions, buffered)
}

// Drain blocks until all in-flight asynchronous emits have finished
// processing. Useful in tests and during orderly shutdown.
func (d *Dispatcher) Drain() {
	d.inflight.Wait()
}
