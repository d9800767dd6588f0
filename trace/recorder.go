// Package trace records control block lifecycle events in memory and
// encodes them as a CBOR stream for offline inspection.
package trace

import (
	"io"
	"sync"

	"github.com/eapache/queue"

	"github.com/krisalay/timedptr/types"
)

// DefaultCapacity is used when NewRecorder is given a non-positive capacity.
const DefaultCapacity = 1024

// Recorder keeps the most recent events. When full, the oldest event is
// dropped to make room.
type Recorder struct {
	mu       sync.Mutex
	q        *queue.Queue
	capacity int
	dropped  uint64
}

// NewRecorder returns a Recorder holding at most capacity events.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{q: queue.New(), capacity: capacity}
}

// Record implements types.Tracer.
func (r *Recorder) Record(ev types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.q.Length() >= r.capacity {
		r.q.Remove()
		r.dropped++
	}
	r.q.Add(ev)
}

// Events returns the buffered events, oldest first.
func (r *Recorder) Events() []types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.Event, r.q.Length())
	for i := range out {
		out[i] = r.q.Get(i).(types.Event)
	}
	return out
}

// Len returns how many events are buffered.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.q.Length()
}

// Dropped returns how many events were evicted because the buffer was full.
func (r *Recorder) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Flush writes the buffered events to w as CBOR.
func (r *Recorder) Flush(w io.Writer) error {
	return WriteEvents(w, r.Events())
}
