package timedptr

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/krisalay/timedptr/engine"
)

/*
Shared is a reference-counted handle over a *T whose access is also gated by
elapsed time.

  - Ownership: every non-empty handle holds one reference on a control block.
    The payload is destroyed when the last reference is released.
  - Access: Get returns nil once the block's window has elapsed, even though
    the payload is still alive and UseCount is still >= 1.

The zero value is an empty handle. Handles must not be copied by value;
use Clone or Assign so the count stays correct.
*/
type Shared[T any] struct {
	blk atomic.Pointer[controlBlock[T]]
}

/*
New takes ownership of value and returns a handle with a use count of 1.

  - nil value        -> empty handle, nothing allocated
  - no WithTimeout   -> engine default window (1000 ms)
  - WithTimeout(<0)  -> never expires

If the engine refuses the allocation, value is destroyed before New returns
ErrAllocation, so the caller never has to clean it up.
*/
func New[T any](value *T, opts ...Option) (*Shared[T], error) {
	h := &Shared[T]{}
	if err := h.bind(value, buildOptions(nil, opts)); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Shared[T]) bind(value *T, o options) error {
	if value == nil {
		return nil
	}
	if err := o.engine.Reserve(); err != nil {
		destroyValue(value)
		o.engine.OnRejected(err)
		return fmt.Errorf("%w: %w", ErrAllocation, err)
	}
	b := newControlBlock(value, o.engine.Lifetime(o.timeout), o.engine)
	if old := h.blk.Swap(b); old != nil {
		old.release()
	}
	return nil
}

func (h *Shared[T]) load() *controlBlock[T] {
	if h == nil {
		return nil
	}
	return h.blk.Load()
}

/*
acquire takes a new reference on h's current block.

If another goroutine resets h between the load and the retain, the old block
may already be at zero. retain refuses it and the slot is read again, so the
caller gets either a live block or nil, never a destroyed one.
*/
func (h *Shared[T]) acquire() *controlBlock[T] {
	for {
		b := h.load()
		if b == nil {
			return nil
		}
		if b.retain() {
			return b
		}
	}
}

// Clone returns a new handle sharing h's block. Cloning an empty handle
// returns an empty handle.
func (h *Shared[T]) Clone() *Shared[T] {
	c := &Shared[T]{}
	if b := h.acquire(); b != nil {
		c.blk.Store(b)
	}
	return c
}

// Assign makes h share other's block, releasing whatever h held before.
// Assigning a handle to itself does nothing.
func (h *Shared[T]) Assign(other *Shared[T]) {
	if h == other {
		return
	}
	// Take the new reference first: if both handles share a block, the count
	// must not touch zero in between.
	b := other.acquire()
	if old := h.blk.Swap(b); old != nil {
		old.release()
	}
}

/*
Get returns the payload, or nil when any of these holds:
  - the handle is empty
  - the payload was already destroyed
  - the window has elapsed

The check runs against the engine clock on every call. Get never fails.
*/
func (h *Shared[T]) Get() *T {
	v, _ := h.get()
	return v
}

func (h *Shared[T]) get() (*T, Reason) {
	b := h.load()
	if b == nil {
		return nil, ReasonNull
	}
	v := b.value.Load()
	if v == nil {
		return nil, ReasonNull
	}
	if b.expired() {
		b.engine.OnExpiredAccess(b.id, b.lifetime, b.refs.Load())
		return nil, ReasonExpired
	}
	return v, ReasonNull
}

// Deref is the asserting form of Get: it returns an *AccessError matching
// ErrExpiredOrNull instead of nil.
func (h *Shared[T]) Deref() (*T, error) {
	v, reason := h.get()
	if v == nil {
		return nil, &AccessError{Op: "dereference", Reason: reason}
	}
	return v, nil
}

// Value returns a copy of the payload, with the same failure rules as Deref.
func (h *Shared[T]) Value() (T, error) {
	v, reason := h.get()
	if v == nil {
		var zero T
		return zero, &AccessError{Op: "value access", Reason: reason}
	}
	return *v, nil
}

// UseCount returns the number of handles sharing the block, or 0 when empty.
// Expiry does not affect it.
func (h *Shared[T]) UseCount() int64 {
	b := h.load()
	if b == nil {
		return 0
	}
	return b.refs.Load()
}

// Expired reports whether h is bound to a timed block whose window elapsed.
func (h *Shared[T]) Expired() bool {
	b := h.load()
	return b != nil && b.expired()
}

// Remaining returns what is left of the window. ok is false for empty and
// unlimited handles.
func (h *Shared[T]) Remaining() (time.Duration, bool) {
	b := h.load()
	if b == nil {
		return 0, false
	}
	return b.engine.Remaining(b.lifetime)
}

// ID returns the block identifier, or uuid.Nil when empty.
func (h *Shared[T]) ID() uuid.UUID {
	b := h.load()
	if b == nil {
		return uuid.Nil
	}
	return b.id
}

/*
Reset releases the current block and, if value is non-nil, binds a fresh one.

  - Omitted timeout resolves to the engine default, explicit values are used
    as given (negative = unlimited)
  - The new block's clock starts now
  - Without WithEngine, the engine of the released block is kept

On ErrAllocation the payload is destroyed and h stays empty.
*/
func (h *Shared[T]) Reset(value *T, opts ...Option) error {
	var eng *engine.Engine
	if old := h.blk.Swap(nil); old != nil {
		eng = old.engine
		old.release()
	}
	return h.bind(value, buildOptions(eng, opts))
}

// Release drops h's reference and leaves it empty. Calling it again is a no-op.
func (h *Shared[T]) Release() {
	if h == nil {
		return
	}
	if old := h.blk.Swap(nil); old != nil {
		old.release()
	}
}
