package trace

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/fxamacker/cbor/v2"

	"github.com/krisalay/timedptr/types"
)

/*
Stream writes events to an io.Writer from a background worker, so Record
never blocks the handle that triggered it.

Events are queued on a buffered channel. If the queue is full the event is
dropped and counted: a slow writer must not slow down Clone or Release.
*/
type Stream struct {
	enc     *cbor.Encoder
	ch      chan types.Event
	wg      sync.WaitGroup
	dropped atomic.Uint64

	// err is the first encode error; only the worker writes it before Close returns.
	err error
}

// NewStream starts a worker encoding events to w.
func NewStream(w io.Writer, buffer int) *Stream {
	if buffer <= 0 {
		buffer = DefaultCapacity
	}
	s := &Stream{
		enc: encMode.NewEncoder(w),
		ch:  make(chan types.Event, buffer),
	}
	s.wg.Add(1)
	go s.worker()
	return s
}

// Record implements types.Tracer. It must not be called after Close.
func (s *Stream) Record(ev types.Event) {
	select {
	case s.ch <- ev:
	default:
		s.dropped.Add(1)
	}
}

func (s *Stream) worker() {
	defer s.wg.Done()

	for ev := range s.ch {
		if s.err != nil {
			continue
		}
		s.err = s.enc.Encode(ev)
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (s *Stream) Dropped() uint64 { return s.dropped.Load() }

/*
Close stops accepting events and waits for the queue to drain.
Call it only once no block created under the engine can emit again.
It returns the first write error, if any.
*/
func (s *Stream) Close() error {
	close(s.ch)
	s.wg.Wait()
	return s.err
}

// Tee fans one event out to several tracers.
type Tee []types.Tracer

// Record implements types.Tracer.
func (t Tee) Record(ev types.Event) {
	for _, tr := range t {
		tr.Record(ev)
	}
}
