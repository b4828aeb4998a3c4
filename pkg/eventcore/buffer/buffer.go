// Package buffer provides bounded per-channel storage of recently
// emitted events with a pluggable eviction policy and TTL-based expiry.
// Buffered events are what late subscribers receive as replay.
package buffer

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/randalmurphal/eventcore/pkg/eventcore/event"
)

// Config holds the buffer's tunable knobs.
type Config struct {
	// MaxSize is the per-channel capacity. Enforced per channel, not
	// globally. Values <= 0 fall back to the default.
	MaxSize int

	// TTL is the default time-to-live for buffered events. An event's
	// own positive TTL overrides it at insertion. Values <= 0 fall back
	// to the default.
	TTL time.Duration
}

// DefaultConfig provides reasonable defaults.
var DefaultConfig = Config{
	MaxSize: 100,
	TTL:     5 * time.Minute,
}

// Overrides carries partial configuration changes for Configure.
// Zero-valued fields leave the current setting untouched, so malformed
// input (zero or negative sizes) degrades to a no-op.
type Overrides struct {
	MaxSize int
	TTL     time.Duration
}

// entry wraps an event with its buffer bookkeeping. Entries are owned
// exclusively by the buffer and never escape it.
type entry struct {
	evt        *event.Event
	bufferedAt time.Time
	ttl        time.Duration
	lastAccess time.Time
	size       int64
}

// expired reports whether the entry has outlived its TTL at now.
func (e *entry) expired(now time.Time) bool {
	if e.ttl <= 0 {
		return false
	}
	return now.Sub(e.bufferedAt) > e.ttl
}

// Metrics is a point-in-time snapshot of buffer accounting.
type Metrics struct {
	// TotalAdded counts every event ever inserted.
	TotalAdded uint64
	// TotalEvicted counts capacity evictions.
	TotalEvicted uint64
	// TotalExpired counts TTL expirations.
	TotalExpired uint64
	// Buffered is the current number of buffered events.
	Buffered int
	// Channels is the number of channels holding at least one event.
	Channels int
	// EstimatedBytes approximates retained payload memory. The estimate
	// is deterministic and grows with event count and payload size.
	EstimatedBytes int64
	// MaxSize is the current per-channel capacity.
	MaxSize int
}

// Buffer is a bounded per-channel event store. Safe for concurrent use,
// though the dispatcher serializes access in practice.
type Buffer struct {
	mu       sync.Mutex
	policy   Policy
	cfg      Config
	clock    clock.Clock
	channels map[string][]*entry

	totalAdded   uint64
	totalEvicted uint64
	totalExpired uint64
	bytes        int64
}

// Option configures buffer construction.
type Option func(*Buffer)

// WithClock injects a clock, primarily for deterministic TTL tests.
func WithClock(c clock.Clock) Option {
	return func(b *Buffer) {
		if c != nil {
			b.clock = c
		}
	}
}

// New creates a buffer with the given policy and configuration.
// Degenerate config values are replaced by defaults rather than rejected.
func New(policy Policy, cfg Config, opts ...Option) *Buffer {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig.MaxSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig.TTL
	}
	b := &Buffer{
		policy:   policy,
		cfg:      cfg,
		clock:    clock.New(),
		channels: make(map[string][]*entry),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add inserts an event, stamping its buffered-at time and resolving its
// TTL (the event's own positive TTL wins over the configured default).
// It then enforces capacity on the event's channel and sweeps expired
// entries across all channels. A nil event is ignored; missing id,
// channel, or timestamp are legal degenerate input.
func (b *Buffer) Add(evt *event.Event) {
	if evt == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	ttl := b.cfg.TTL
	if evt.TTL > 0 {
		ttl = evt.TTL
	}
	e := &entry{
		evt:        evt,
		bufferedAt: now,
		ttl:        ttl,
		lastAccess: now,
		size:       estimateSize(evt),
	}

	ch := evt.Channel
	b.channels[ch] = append(b.channels[ch], e)
	b.totalAdded++
	b.bytes += e.size

	// Capacity pass: transient overshoot exists only inside this lock.
	for len(b.channels[ch]) > b.cfg.MaxSize {
		victim := b.policy.victim(b.channels[ch])
		b.removeLocked(ch, victim)
		b.totalEvicted++
	}

	b.sweepLocked(now)
}

// Get returns the buffered events for a channel in insertion order, or
// an empty slice for unknown channels. Under the LRU policy a Get counts
// as an access and promotes the returned entries' recency.
func (b *Buffer) Get(channel string) []*event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.channels[channel]
	if len(entries) == 0 {
		return []*event.Event{}
	}

	now := b.clock.Now()
	out := make([]*event.Event, 0, len(entries))
	for _, e := range entries {
		if b.policy == LRU {
			e.lastAccess = now
		}
		out = append(out, e.evt)
	}
	return out
}

// Has reports whether the channel holds at least one buffered event.
func (b *Buffer) Has(channel string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.channels[channel]) > 0
}

// Clear removes all events for the given channels, or every channel when
// none are named. Occupancy accounting is reset for the cleared scope.
func (b *Buffer) Clear(channels ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(channels) == 0 {
		b.channels = make(map[string][]*entry)
		b.bytes = 0
		return
	}
	for _, ch := range channels {
		for _, e := range b.channels[ch] {
			b.bytes -= e.size
		}
		delete(b.channels, ch)
	}
}

// Configure applies partial changes. New values affect subsequently
// inserted events only; already-buffered events keep their stamped TTL.
func (b *Buffer) Configure(o Overrides) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if o.MaxSize > 0 {
		b.cfg.MaxSize = o.MaxSize
	}
	if o.TTL > 0 {
		b.cfg.TTL = o.TTL
	}
}

// EvictExpired sweeps every channel and removes entries whose age
// exceeds their TTL. Returns the number removed.
func (b *Buffer) EvictExpired() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sweepLocked(b.clock.Now())
}

// ChannelLen returns the buffered event count for one channel without
// counting as an access under the LRU policy.
func (b *Buffer) ChannelLen(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.channels[channel])
}

// Len returns the total number of buffered events across all channels.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, entries := range b.channels {
		n += len(entries)
	}
	return n
}

// Metrics returns a snapshot of the buffer's accounting.
func (b *Buffer) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	buffered := 0
	channels := 0
	for _, entries := range b.channels {
		if len(entries) > 0 {
			channels++
			buffered += len(entries)
		}
	}
	return Metrics{
		TotalAdded:     b.totalAdded,
		TotalEvicted:   b.totalEvicted,
		TotalExpired:   b.totalExpired,
		Buffered:       buffered,
		Channels:       channels,
		EstimatedBytes: b.bytes,
		MaxSize:        b.cfg.MaxSize,
	}
}

// removeLocked deletes the entry at idx from a channel, keeping
// insertion order for the remainder.
func (b *Buffer) removeLocked(channel string, idx int) {
	entries := b.channels[channel]
	b.bytes -= entries[idx].size
	b.channels[channel] = append(entries[:idx], entries[idx+1:]...)
	if len(b.channels[channel]) == 0 {
		delete(b.channels, channel)
	}
}

// sweepLocked removes expired entries from every channel.
func (b *Buffer) sweepLocked(now time.Time) int {
	removed := 0
	for ch, entries := range b.channels {
		kept := entries[:0]
		for _, e := range entries {
			if e.expired(now) {
				b.bytes -= e.size
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(b.channels, ch)
		} else {
			b.channels[ch] = kept
		}
	}
	b.totalExpired += uint64(removed)
	return removed
}

// entryOverhead is the fixed per-event bookkeeping charge in the memory
// estimate.
const entryOverhead = 96

// estimateSize deterministically approximates an event's retained bytes.
// Strings and byte slices are charged their length; other payloads are
// charged their JSON encoding length, with a flat fallback when the
// payload cannot be encoded.
func estimateSize(evt *event.Event) int64 {
	size := int64(entryOverhead + len(evt.ID) + len(evt.Channel) + len(evt.Type))
	switch d := evt.Data.(type) {
	case nil:
	case string:
		size += int64(len(d))
	case []byte:
		size += int64(len(d))
	default:
		if enc, err := json.Marshal(d); err == nil {
			size += int64(len(enc))
		} else {
			size += 64
		}
	}
	return size
}
