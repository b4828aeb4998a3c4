package eventcore

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/randalmurphal/eventcore/pkg/eventcore/buffer"
	"github.com/randalmurphal/eventcore/pkg/eventcore/config"
	"github.com/randalmurphal/eventcore/pkg/eventcore/event"
	"github.com/randalmurphal/eventcore/pkg/eventcore/journal"
	"github.com/randalmurphal/eventcore/pkg/eventcore/observability"
)

// Syncer is the optional cross-process synchronization collaborator.
// Notify is invoked after an event is successfully buffered: pure
// best-effort fan-out with no acknowledgement contract. A panicking
// Syncer is contained and reported like any other collaborator failure.
type Syncer interface {
	Notify(evt *event.Event)
}

// dispatcherConfig holds construction-time configuration.
type dispatcherConfig struct {
	logger       *slog.Logger
	clock        clock.Clock
	bufferPolicy buffer.Policy
	bufferCfg    buffer.Config
	journal      journal.Store
	syncer       Syncer
	recorder     observability.MetricsRecorder
	spans        observability.SpanManager
	syncEnabled  bool
}

func defaultDispatcherConfig() dispatcherConfig {
	return dispatcherConfig{
		clock:        clock.New(),
		bufferPolicy: buffer.FIFO,
		bufferCfg:    buffer.DefaultConfig,
		recorder:     observability.NoopMetrics{},
		spans:        observability.NoopSpanManager{},
	}
}

// Option configures dispatcher construction.
type Option func(*dispatcherConfig)

// WithLogger sets the structured logger that receives contained-failure
// reports. Default: nil (silent).
func WithLogger(logger *slog.Logger) Option {
	return func(c *dispatcherConfig) {
		c.logger = logger
	}
}

// WithClock injects a clock for deterministic tests.
func WithClock(clk clock.Clock) Option {
	return func(c *dispatcherConfig) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithBufferPolicy selects the eviction policy. Default: FIFO.
func WithBufferPolicy(p buffer.Policy) Option {
	return func(c *dispatcherConfig) {
		c.bufferPolicy = p
	}
}

// WithBufferConfig sets the buffer capacity and default TTL.
// Degenerate values fall back to defaults rather than failing.
func WithBufferConfig(cfg buffer.Config) Option {
	return func(c *dispatcherConfig) {
		if cfg.MaxSize > 0 {
			c.bufferCfg.MaxSize = cfg.MaxSize
		}
		if cfg.TTL > 0 {
			c.bufferCfg.TTL = cfg.TTL
		}
	}
}

// WithSettings applies typed configuration, usually loaded from a file
// via the config package. Unknown strategy names degrade to FIFO.
func WithSettings(s config.Settings) Option {
	return func(c *dispatcherConfig) {
		if s.BufferMaxSize > 0 {
			c.bufferCfg.MaxSize = s.BufferMaxSize
		}
		if s.BufferTTL > 0 {
			c.bufferCfg.TTL = s.BufferTTL
		}
		policy, _ := buffer.ParsePolicy(s.BufferStrategy)
		c.bufferPolicy = policy
		c.syncEnabled = s.CrossTabEnabled
	}
}

// WithJournal attaches a best-effort event journal. The dispatcher does
// not take ownership: the caller closes the store.
func WithJournal(store journal.Store) Option {
	return func(c *dispatcherConfig) {
		c.journal = store
	}
}

// WithSyncer attaches the cross-process sync collaborator and enables
// sync fan-out.
func WithSyncer(s Syncer) Option {
	return func(c *dispatcherConfig) {
		c.syncer = s
		c.syncEnabled = s != nil
	}
}

// WithMetricsRecorder sets the metrics recorder.
// Default: observability.NoopMetrics{}.
func WithMetricsRecorder(r observability.MetricsRecorder) Option {
	return func(c *dispatcherConfig) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithSpanManager sets the trace span manager.
// Default: observability.NoopSpanManager{}.
func WithSpanManager(s observability.SpanManager) Option {
	return func(c *dispatcherConfig) {
		if s != nil {
			c.spans = s
		}
	}
}

// emitOptions holds per-emit configuration.
type emitOptions struct {
	eventType string
	priority  int
	ttl       time.Duration
	immediate bool
}

// EmitOption configures one Emit call.
type EmitOption func(*emitOptions)

// WithEventType tags the event with a classification type.
func WithEventType(typ string) EmitOption {
	return func(o *emitOptions) {
		o.eventType = typ
	}
}

// WithPriority ranks the event for the priority eviction policy.
// Higher values survive eviction longer.
func WithPriority(p int) EmitOption {
	return func(o *emitOptions) {
		o.priority = p
	}
}

// WithTTL overrides the buffer's default time-to-live for this event.
// The per-event value is authoritative when positive.
func WithTTL(d time.Duration) EmitOption {
	return func(o *emitOptions) {
		o.ttl = d
	}
}

// Immediate forces the pipeline, buffering, and delivery to complete
// synchronously before Emit returns. Without it, emits run
// asynchronously whenever middleware is registered.
func Immediate() EmitOption {
	return func(o *emitOptions) {
		o.immediate = true
	}
}
