package benchmarks

import (
	"testing"
	"time"

	"github.com/randalmurphal/eventcore/pkg/eventcore/buffer"
	"github.com/randalmurphal/eventcore/pkg/eventcore/event"
)

// BenchmarkBufferAdd_FIFO measures insertion with steady-state eviction.
func BenchmarkBufferAdd_FIFO(b *testing.B) {
	buf := buffer.New(buffer.FIFO, buffer.Config{MaxSize: 100, TTL: time.Hour})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Add(event.New("bench", i))
	}
}

// BenchmarkBufferAdd_LRU measures insertion under the LRU policy.
func BenchmarkBufferAdd_LRU(b *testing.B) {
	buf := buffer.New(buffer.LRU, buffer.Config{MaxSize: 100, TTL: time.Hour})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Add(event.New("bench", i))
	}
}

// BenchmarkBufferAdd_Priority measures insertion with priority scans.
func BenchmarkBufferAdd_Priority(b *testing.B) {
	buf := buffer.New(buffer.Priority, buffer.Config{MaxSize: 100, TTL: time.Hour})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Add(event.New("bench", i, event.WithPriority(i%10)))
	}
}

// BenchmarkBufferGet_100 measures snapshot cost at full capacity.
func BenchmarkBufferGet_100(b *testing.B) {
	buf := buffer.New(buffer.FIFO, buffer.Config{MaxSize: 100, TTL: time.Hour})
	for i := 0; i < 100; i++ {
		buf.Add(event.New("bench", i))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = buf.Get("bench")
	}
}
