package timedptr

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/krisalay/timedptr/engine"
	"github.com/krisalay/timedptr/types"
)

/*
controlBlock is the shared allocation behind every family of handles.

It is the single owner of the payload. Handles hold a pointer to the block,
never to the payload itself, and every handle counts as one reference.
*/
type controlBlock[T any] struct {

	// value is nil only after destroy has run.
	value atomic.Pointer[T]

	// refs starts at 1 for the handle that created the block.
	refs atomic.Int64

	lifetime types.Lifetime
	id       uuid.UUID
	engine   *engine.Engine
}

func newControlBlock[T any](value *T, lt types.Lifetime, eng *engine.Engine) *controlBlock[T] {
	b := &controlBlock[T]{
		lifetime: lt,
		id:       uuid.New(),
		engine:   eng,
	}
	b.value.Store(value)
	b.refs.Store(1)
	eng.OnCreate(b.id, lt)
	return b
}

/*
retain adds one reference unless the count already reached zero.
A block at zero is being destroyed and must not come back, so this is a
CAS loop rather than a plain Add.
*/
func (b *controlBlock[T]) retain() bool {
	for {
		n := b.refs.Load()
		if n <= 0 {
			return false
		}
		if b.refs.CompareAndSwap(n, n+1) {
			b.engine.OnShare(b.id, b.lifetime, n+1)
			return true
		}
	}
}

// release drops one reference. The caller whose decrement lands on zero
// destroys the block; the decision comes from the Add result alone.
func (b *controlBlock[T]) release() {
	n := b.refs.Add(-1)
	b.engine.OnRelease(b.id, b.lifetime, n)
	switch {
	case n == 0:
		b.destroy()
	case n < 0:
		panic("timedptr: reference count is less than 0: " + strconv.FormatInt(n, 10))
	}
}

func (b *controlBlock[T]) destroy() {
	v := b.value.Swap(nil)
	if v == nil {
		return
	}
	destroyValue(v)
	b.engine.OnDestroy(b.id, b.lifetime)
	b.engine.Unreserve()
}

func (b *controlBlock[T]) expired() bool {
	return b.engine.IsExpired(b.lifetime)
}

// destroyValue runs the payload's teardown hook, if it has one.
func destroyValue[T any](v *T) {
	if d, ok := any(v).(types.Destroyer); ok {
		d.Destroy()
	}
}
