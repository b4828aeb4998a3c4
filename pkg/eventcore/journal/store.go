// Package journal provides an optional, best-effort record of accepted
// events for debugging and offline inspection. The journal offers no
// durability or delivery guarantees: the dispatcher logs append failures
// and moves on.
package journal

import (
	"encoding/json"
	"errors"
	"time"
)

// Record is one journaled event. Payloads are stored as their JSON
// encoding; payloads that cannot be encoded are stored empty.
type Record struct {
	EventID    string
	Channel    string
	Type       string
	Priority   int
	Data       []byte
	Timestamp  time.Time
	BufferedAt time.Time
}

// EncodePayload serializes an event payload for storage.
// Returns nil for nil or unencodable payloads.
func EncodePayload(data any) []byte {
	if data == nil {
		return nil
	}
	enc, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return enc
}

// Store persists journal records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append stores one record. Records for a channel are retained in
	// append order.
	Append(rec Record) error

	// List returns up to limit records for a channel in append order.
	// limit <= 0 means no limit. Returns an empty slice (not an error)
	// for unknown channels.
	List(channel string, limit int) ([]Record, error)

	// Channels returns the channels with at least one record.
	Channels() ([]string, error)

	// DeleteChannel removes all records for a channel.
	// Returns nil if the channel has no records.
	DeleteChannel(channel string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for journal operations.
var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("journal store closed")
)
