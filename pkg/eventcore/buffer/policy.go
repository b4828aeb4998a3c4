package buffer

import (
	"fmt"
	"strings"
)

// Policy selects the eviction rule applied when a channel exceeds its
// configured capacity. One policy is fixed per buffer instance.
type Policy int

const (
	// FIFO evicts the oldest insertion first.
	FIFO Policy = iota

	// LRU evicts the least-recently-accessed entry first. Get promotes
	// recency; entries that were never read fall back to insertion order.
	LRU

	// Priority evicts the lowest-priority entry first, ties broken by
	// insertion order (oldest first).
	Priority
)

// String returns the config-file name of the policy.
func (p Policy) String() string {
	switch p {
	case FIFO:
		return "fifo"
	case LRU:
		return "lru"
	case Priority:
		return "priority"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy converts a config-file strategy name to a Policy.
// Unknown names return FIFO with an error so callers can degrade
// gracefully.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fifo", "":
		return FIFO, nil
	case "lru":
		return LRU, nil
	case "priority":
		return Priority, nil
	default:
		return FIFO, fmt.Errorf("unknown buffer strategy %q", s)
	}
}

// victim picks the index of the entry to evict from a full channel.
// Entries are stored in insertion order, so FIFO is always index 0.
func (p Policy) victim(entries []*entry) int {
	switch p {
	case LRU:
		// Strict Before keeps the earliest index on ties, which is
		// insertion order.
		idx := 0
		for i, e := range entries {
			if e.lastAccess.Before(entries[idx].lastAccess) {
				idx = i
			}
		}
		return idx
	case Priority:
		idx := 0
		for i, e := range entries {
			if e.evt.Priority < entries[idx].evt.Priority {
				idx = i
			}
		}
		return idx
	default:
		return 0
	}
}
