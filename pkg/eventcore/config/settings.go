package config

import "time"

// Recognized configuration keys.
const (
	KeyBufferMaxSize   = "buffer_max_size"
	KeyBufferTTL       = "buffer_ttl"
	KeyBufferStrategy  = "buffer_strategy"
	KeyCrossTabEnabled = "cross_tab_enabled"
	KeyJournalPath     = "journal_path"
)

// Settings is the typed dispatcher configuration extracted from a Config.
type Settings struct {
	// BufferMaxSize is the per-channel buffer capacity.
	BufferMaxSize int

	// BufferTTL is the default buffered-event time-to-live.
	BufferTTL time.Duration

	// BufferStrategy selects the eviction policy: "fifo", "lru", or
	// "priority". Unknown values degrade to "fifo".
	BufferStrategy string

	// CrossTabEnabled requests fan-out through an external sync
	// collaborator, when one is attached.
	CrossTabEnabled bool

	// JournalPath is a SQLite file path for the optional event journal.
	// Empty disables journaling.
	JournalPath string
}

// DefaultSettings provides reasonable defaults.
func DefaultSettings() Settings {
	return Settings{
		BufferMaxSize:  100,
		BufferTTL:      5 * time.Minute,
		BufferStrategy: "fifo",
	}
}

// SettingsFrom extracts typed settings from a Config, falling back to
// defaults for missing or malformed values.
func SettingsFrom(cfg Config) Settings {
	def := DefaultSettings()
	return Settings{
		BufferMaxSize:   cfg.Int(KeyBufferMaxSize, def.BufferMaxSize),
		BufferTTL:       cfg.Duration(KeyBufferTTL, def.BufferTTL),
		BufferStrategy:  cfg.String(KeyBufferStrategy, def.BufferStrategy),
		CrossTabEnabled: cfg.Bool(KeyCrossTabEnabled, def.CrossTabEnabled),
		JournalPath:     cfg.String(KeyJournalPath, def.JournalPath),
	}
}
