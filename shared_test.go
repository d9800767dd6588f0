package timedptr_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/krisalay/timedptr"
	"github.com/krisalay/timedptr/api"
	"github.com/krisalay/timedptr/engine"
	"github.com/krisalay/timedptr/metrics"
	"github.com/krisalay/timedptr/trace"
	"github.com/krisalay/timedptr/types"
)

var _ api.Handle[int] = (*timedptr.Shared[int])(nil)

//
// ================= TEST PAYLOAD =================
//

type listNode struct {
	value     int
	destroyed *atomic.Int32
}

func (n *listNode) Destroy() {
	if n.destroyed != nil {
		n.destroyed.Add(1)
	}
}

//
// ================= HELPER: ENGINE ON A MOCK CLOCK =================
//

func newMockEngine(opts ...engine.Option) (*engine.Engine, *clock.Mock) {
	mc := clock.NewMock()
	opts = append([]engine.Option{engine.WithClock(mc)}, opts...)
	return engine.New(opts...), mc
}

//
// ================= CONSTRUCTION & ACCESS =================
//

func TestCreationAccessExpiry(t *testing.T) {
	h, err := timedptr.New(&listNode{value: 10}, timedptr.WithTimeout(50))
	require.NoError(t, err)
	defer h.Release()

	require.NotNil(t, h.Get())
	n, err := h.Deref()
	require.NoError(t, err)
	assert.Equal(t, 10, n.value)
	assert.EqualValues(t, 1, h.UseCount())

	time.Sleep(25 * time.Millisecond)
	require.NotNil(t, h.Get())

	time.Sleep(30 * time.Millisecond)
	assert.Nil(t, h.Get())
	assert.EqualValues(t, 1, h.UseCount())
}

func TestNilPayloadYieldsEmptyHandle(t *testing.T) {
	h, err := timedptr.New[listNode](nil)
	require.NoError(t, err)
	require.NotNil(t, h)

	assert.Nil(t, h.Get())
	assert.Zero(t, h.UseCount())
	assert.False(t, h.Expired())
	assert.Equal(t, uuid.Nil, h.ID())

	_, ok := h.Remaining()
	assert.False(t, ok)

	var zero timedptr.Shared[int]
	assert.Nil(t, zero.Get())
	assert.Zero(t, zero.UseCount())
	zero.Release()

	var nilHandle *timedptr.Shared[int]
	assert.Nil(t, nilHandle.Get())
	assert.Zero(t, nilHandle.UseCount())
	assert.Zero(t, nilHandle.Clone().UseCount())
	nilHandle.Release()
}

//
// ================= EXPIRY =================
//

func TestExpiryIsMonotonic(t *testing.T) {
	eng, mc := newMockEngine()
	h, err := timedptr.New(&listNode{value: 1}, timedptr.WithTimeout(50), timedptr.WithEngine(eng))
	require.NoError(t, err)

	mc.Add(49 * time.Millisecond)
	require.NotNil(t, h.Get())
	left, ok := h.Remaining()
	assert.True(t, ok)
	assert.Equal(t, time.Millisecond, left)

	mc.Add(time.Millisecond)
	assert.Nil(t, h.Get())
	assert.True(t, h.Expired())

	for i := 0; i < 5; i++ {
		mc.Add(10 * time.Millisecond)
		assert.Nil(t, h.Get())
	}
	left, ok = h.Remaining()
	assert.True(t, ok)
	assert.Zero(t, left)
	assert.EqualValues(t, 1, h.UseCount())
}

func TestZeroTimeoutExpiresImmediately(t *testing.T) {
	eng, _ := newMockEngine()
	h, err := timedptr.New(&listNode{value: 1}, timedptr.WithTimeout(0), timedptr.WithEngine(eng))
	require.NoError(t, err)

	assert.Nil(t, h.Get())
	assert.EqualValues(t, 1, h.UseCount())
}

func TestUnlimitedLifetime(t *testing.T) {
	eng, mc := newMockEngine()

	neg, err := timedptr.New(&listNode{value: 30}, timedptr.WithTimeout(-1), timedptr.WithEngine(eng))
	require.NoError(t, err)
	unl, err := timedptr.New(&listNode{value: 31}, timedptr.Unlimited(), timedptr.WithEngine(eng))
	require.NoError(t, err)

	mc.Add(24 * time.Hour)
	assert.NotNil(t, neg.Get())
	assert.NotNil(t, unl.Get())
	assert.False(t, neg.Expired())

	_, ok := neg.Remaining()
	assert.False(t, ok)
}

func TestUnlimitedLifetimeRealClock(t *testing.T) {
	h, err := timedptr.New(&listNode{value: 30}, timedptr.WithTimeout(-1))
	require.NoError(t, err)
	defer h.Release()

	require.NotNil(t, h.Get())
	time.Sleep(60 * time.Millisecond)
	assert.NotNil(t, h.Get())
}

func TestDefaultTimeout(t *testing.T) {
	eng, mc := newMockEngine()
	h, err := timedptr.New(&listNode{value: 20}, timedptr.WithEngine(eng))
	require.NoError(t, err)

	left, ok := h.Remaining()
	require.True(t, ok)
	assert.Equal(t, engine.DefaultTimeout, left)

	mc.Add(999 * time.Millisecond)
	assert.NotNil(t, h.Get())

	mc.Add(time.Millisecond)
	assert.Nil(t, h.Get())
}

func TestDefaultTimeoutRealClock(t *testing.T) {
	h, err := timedptr.New(&listNode{value: 20})
	require.NoError(t, err)
	defer h.Release()

	require.NotNil(t, h.Get())
	time.Sleep(10 * time.Millisecond)
	assert.NotNil(t, h.Get())
}

//
// ================= ERRORS =================
//

func TestDerefErrors(t *testing.T) {
	eng, mc := newMockEngine()

	var empty timedptr.Shared[listNode]
	_, err := empty.Deref()
	require.ErrorIs(t, err, timedptr.ErrExpiredOrNull)

	var accessErr *timedptr.AccessError
	require.True(t, errors.As(err, &accessErr))
	assert.Equal(t, timedptr.ReasonNull, accessErr.Reason)

	h, err := timedptr.New(&listNode{value: 5}, timedptr.WithTimeout(10), timedptr.WithEngine(eng))
	require.NoError(t, err)

	v, err := h.Value()
	require.NoError(t, err)
	assert.Equal(t, 5, v.value)

	mc.Add(10 * time.Millisecond)

	_, err = h.Value()
	require.ErrorIs(t, err, timedptr.ErrExpiredOrNull)
	require.True(t, errors.As(err, &accessErr))
	assert.Equal(t, timedptr.ReasonExpired, accessErr.Reason)
	assert.Contains(t, err.Error(), "expired")
}

func TestAllocationFailureDestroysPayload(t *testing.T) {
	var destroyed atomic.Int32
	eng, _ := newMockEngine(engine.WithMaxBlocks(1))

	first, err := timedptr.New(&listNode{value: 1, destroyed: &destroyed}, timedptr.WithEngine(eng))
	require.NoError(t, err)
	assert.EqualValues(t, 1, eng.Live())

	second, err := timedptr.New(&listNode{value: 2, destroyed: &destroyed}, timedptr.WithEngine(eng))
	require.ErrorIs(t, err, timedptr.ErrAllocation)
	require.ErrorIs(t, err, engine.ErrExhausted)
	assert.Nil(t, second)
	assert.EqualValues(t, 1, destroyed.Load())

	var other timedptr.Shared[listNode]
	err = other.Reset(&listNode{value: 3, destroyed: &destroyed}, timedptr.WithEngine(eng))
	require.ErrorIs(t, err, timedptr.ErrAllocation)
	assert.Zero(t, other.UseCount())
	assert.Nil(t, other.Get())
	assert.EqualValues(t, 2, destroyed.Load())

	// Cloning does not allocate a block, so the cap does not apply.
	c := first.Clone()
	assert.EqualValues(t, 2, c.UseCount())
	c.Release()

	first.Release()
	assert.EqualValues(t, 3, destroyed.Load())
	assert.Zero(t, eng.Live())

	again, err := timedptr.New(&listNode{value: 4}, timedptr.WithEngine(eng))
	require.NoError(t, err)
	assert.EqualValues(t, 1, again.UseCount())
}

//
// ================= REFERENCE COUNTING =================
//

func TestCloneSharesBlock(t *testing.T) {
	p1, err := timedptr.New(&listNode{value: 100}, timedptr.WithTimeout(1000))
	require.NoError(t, err)
	require.EqualValues(t, 1, p1.UseCount())

	p2 := p1.Clone()
	assert.EqualValues(t, 2, p1.UseCount())
	assert.EqualValues(t, 2, p2.UseCount())
	require.NotNil(t, p2.Get())
	assert.Same(t, p1.Get(), p2.Get())
	assert.Equal(t, p1.ID(), p2.ID())

	v1, err := p1.Value()
	require.NoError(t, err)
	v2, err := p2.Value()
	require.NoError(t, err)
	assert.Equal(t, v1.value, v2.value)

	p2.Release()
	assert.EqualValues(t, 1, p1.UseCount())
	assert.Zero(t, p2.UseCount())
	p1.Release()
}

func TestCloneKeepsSharedExpiry(t *testing.T) {
	eng, mc := newMockEngine()
	a, err := timedptr.New(&listNode{value: 1}, timedptr.WithTimeout(50), timedptr.WithEngine(eng))
	require.NoError(t, err)

	mc.Add(40 * time.Millisecond)
	b := a.Clone()

	// The clone does not restart the window.
	mc.Add(10 * time.Millisecond)
	assert.Nil(t, a.Get())
	assert.Nil(t, b.Get())
	assert.EqualValues(t, 2, b.UseCount())
}

func TestAssign(t *testing.T) {
	var destroyedA, destroyedB atomic.Int32

	a, err := timedptr.New(&listNode{value: 1, destroyed: &destroyedA})
	require.NoError(t, err)
	b, err := timedptr.New(&listNode{value: 2, destroyed: &destroyedB})
	require.NoError(t, err)

	a.Assign(b)
	assert.EqualValues(t, 1, destroyedA.Load(), "a's old payload should be destroyed")
	assert.EqualValues(t, 2, a.UseCount())
	assert.Same(t, b.Get(), a.Get())

	a.Assign(a)
	assert.EqualValues(t, 2, a.UseCount())

	// Both already share the block; the count must not touch zero.
	b.Assign(a)
	assert.EqualValues(t, 2, b.UseCount())
	assert.Zero(t, destroyedB.Load())

	a.Assign(&timedptr.Shared[listNode]{})
	assert.Zero(t, a.UseCount())
	assert.EqualValues(t, 1, b.UseCount())

	a.Assign(nil)
	assert.Zero(t, a.UseCount())

	b.Release()
	assert.EqualValues(t, 1, destroyedB.Load())
}

func TestScopeRelease(t *testing.T) {
	var destroyed atomic.Int32

	outer, err := timedptr.New(&listNode{value: 80, destroyed: &destroyed}, timedptr.WithTimeout(1000))
	require.NoError(t, err)
	assert.EqualValues(t, 1, outer.UseCount())

	func() {
		inner := outer.Clone()
		defer inner.Release()
		assert.EqualValues(t, 2, outer.UseCount())
		assert.EqualValues(t, 2, inner.UseCount())
	}()

	assert.EqualValues(t, 1, outer.UseCount())
	assert.Zero(t, destroyed.Load())

	outer.Release()
	assert.EqualValues(t, 1, destroyed.Load())

	outer.Release()
	assert.EqualValues(t, 1, destroyed.Load())
}

func TestExpiredPayloadDestroyedOnlyOnRelease(t *testing.T) {
	var destroyed atomic.Int32
	eng, mc := newMockEngine()

	h, err := timedptr.New(&listNode{value: 1, destroyed: &destroyed}, timedptr.WithTimeout(5), timedptr.WithEngine(eng))
	require.NoError(t, err)

	mc.Add(time.Second)
	require.Nil(t, h.Get())
	assert.Zero(t, destroyed.Load())

	h.Release()
	assert.EqualValues(t, 1, destroyed.Load())
}

//
// ================= RESET =================
//

func TestReset(t *testing.T) {
	var destroyed atomic.Int32
	eng, mc := newMockEngine()

	h, err := timedptr.New(&listNode{value: 70, destroyed: &destroyed}, timedptr.WithTimeout(200), timedptr.WithEngine(eng))
	require.NoError(t, err)
	require.NotNil(t, h.Get())
	oldID := h.ID()

	mc.Add(150 * time.Millisecond)

	// No WithEngine: the reset keeps the mock engine of the old block.
	require.NoError(t, h.Reset(&listNode{value: 71, destroyed: &destroyed}, timedptr.WithTimeout(50)))
	assert.EqualValues(t, 1, destroyed.Load())
	assert.NotEqual(t, oldID, h.ID())

	n, err := h.Deref()
	require.NoError(t, err)
	assert.Equal(t, 71, n.value)
	assert.EqualValues(t, 1, h.UseCount())

	mc.Add(49 * time.Millisecond)
	assert.NotNil(t, h.Get())
	mc.Add(time.Millisecond)
	assert.Nil(t, h.Get())

	require.NoError(t, h.Reset(nil))
	assert.Nil(t, h.Get())
	assert.Zero(t, h.UseCount())
	assert.EqualValues(t, 2, destroyed.Load())
}

func TestResetTimeoutResolution(t *testing.T) {
	eng, mc := newMockEngine()
	var h timedptr.Shared[listNode]

	require.NoError(t, h.Reset(&listNode{value: 1}, timedptr.WithEngine(eng)))
	left, ok := h.Remaining()
	require.True(t, ok)
	assert.Equal(t, engine.DefaultTimeout, left)

	// An explicit -2 is just another negative value: unlimited.
	require.NoError(t, h.Reset(&listNode{value: 2}, timedptr.WithTimeout(-2)))
	mc.Add(time.Hour)
	assert.NotNil(t, h.Get())
	_, ok = h.Remaining()
	assert.False(t, ok)
}

func TestResetLeavesClonesIntact(t *testing.T) {
	var destroyed atomic.Int32

	a, err := timedptr.New(&listNode{value: 1, destroyed: &destroyed})
	require.NoError(t, err)
	c := a.Clone()

	require.NoError(t, a.Reset(&listNode{value: 2, destroyed: &destroyed}))
	assert.EqualValues(t, 1, a.UseCount())
	assert.EqualValues(t, 1, c.UseCount())
	assert.Zero(t, destroyed.Load())
	assert.Equal(t, 1, c.Get().value)
	assert.Equal(t, 2, a.Get().value)

	c.Release()
	assert.EqualValues(t, 1, destroyed.Load())
	a.Release()
	assert.EqualValues(t, 2, destroyed.Load())
}

//
// ================= LIFECYCLE OBSERVATION =================
//

func TestLifecycleEventsAndMetrics(t *testing.T) {
	rec := trace.NewRecorder(16)
	counters := &metrics.Counters{}
	eng, mc := newMockEngine(engine.WithTracer(rec), engine.WithMetrics(counters))

	h, err := timedptr.New(&listNode{value: 1}, timedptr.WithTimeout(10), timedptr.WithEngine(eng))
	require.NoError(t, err)
	id := h.ID().String()
	c := h.Clone()
	mc.Add(10 * time.Millisecond)
	assert.Nil(t, c.Get())
	c.Release()
	h.Release()

	var kinds []types.EventKind
	for _, ev := range rec.Events() {
		kinds = append(kinds, ev.Kind)
		assert.Equal(t, id, ev.BlockID)
	}
	assert.Equal(t, []types.EventKind{
		types.EventCreated,
		types.EventShared,
		types.EventExpiredAccess,
		types.EventReleased,
		types.EventReleased,
		types.EventDestroyed,
	}, kinds)

	last := rec.Events()[len(kinds)-1]
	assert.Equal(t, 10*time.Millisecond, last.Elapsed)
	assert.Zero(t, last.RefCount)

	snap := counters.Snapshot()
	assert.Equal(t, metrics.Snapshot{
		Created:       1,
		Shared:        1,
		Released:      2,
		Destroyed:     1,
		ExpiredAccess: 1,
	}, snap)
	assert.Zero(t, snap.Live())
}

//
// ================= CONCURRENCY TEST =================
//

func TestConcurrentCloneRelease(t *testing.T) {
	var destroyed atomic.Int32

	h, err := timedptr.New(&listNode{value: 42, destroyed: &destroyed}, timedptr.Unlimited())
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < 64; i++ {
		g.Go(func() error {
			for j := 0; j < 100; j++ {
				c := h.Clone()
				if v := c.Get(); v == nil || v.value != 42 {
					c.Release()
					return errors.New("clone lost the payload")
				}
				c.Release()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 1, h.UseCount())
	assert.Zero(t, destroyed.Load())

	h.Release()
	assert.EqualValues(t, 1, destroyed.Load())
}

func TestConcurrentResetAndClone(t *testing.T) {
	var destroyed atomic.Int32
	counters := &metrics.Counters{}
	eng := engine.New(engine.WithMetrics(counters))

	h, err := timedptr.New(&listNode{value: 0, destroyed: &destroyed}, timedptr.Unlimited(), timedptr.WithEngine(eng))
	require.NoError(t, err)

	const resets = 200
	var g errgroup.Group
	g.Go(func() error {
		for i := 1; i <= resets; i++ {
			if err := h.Reset(&listNode{value: i, destroyed: &destroyed}, timedptr.Unlimited()); err != nil {
				return err
			}
		}
		return nil
	})
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			for j := 0; j < 200; j++ {
				c := h.Clone()
				// A clone owns its block, so reading through it is safe.
				if c.UseCount() > 0 && c.Get() == nil {
					c.Release()
					return errors.New("live clone returned nil")
				}
				c.Release()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 1, h.UseCount())
	assert.Equal(t, resets, h.Get().value)

	h.Release()
	snap := counters.Snapshot()
	assert.EqualValues(t, resets+1, snap.Created)
	assert.Equal(t, snap.Created, snap.Destroyed)
	assert.EqualValues(t, resets+1, destroyed.Load())
}
