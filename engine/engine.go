package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/krisalay/timedptr/expiration"
	"github.com/krisalay/timedptr/types"
)

// DefaultTimeout applies when a caller omits the timeout.
const DefaultTimeout = 1000 * time.Millisecond

// ErrExhausted is returned by Reserve when the block limit is reached.
var ErrExhausted = errors.New("engine: control block limit reached")

/*
Engine is the "brain" behind every control block.
It is responsible for the policy of a block, NOT its ownership.

It decides:
- What time it is
- When a block is expired
- Which timeout an omitted setting resolves to
- Whether a new block may be allocated
- How lifecycle events are recorded (metrics, trace, logs)

It does NOT:
- Own payloads
- Count references
- Lock anything
*/
type Engine struct {

	// Clock is the only source of time for blocks created under this engine.
	Clock clock.Clock

	// Expiration decides whether a lifetime has run out.
	Expiration expiration.Strategy

	// DefaultTimeout is used when the caller omits a timeout.
	// A negative value makes omitted timeouts unlimited.
	DefaultTimeout time.Duration

	// Metrics counts lifecycle events. Never nil.
	Metrics types.Metrics

	// Tracer receives detailed lifecycle events. Optional.
	Tracer types.Tracer

	// Logger carries block diagnostics at Debug level.
	// Nil means slog.Default() at the time of each record.
	Logger *slog.Logger

	// maxBlocks caps live blocks; 0 disables the cap and the live counter.
	maxBlocks int64
	live      atomic.Int64
}

// Option customizes engine initialization.
type Option func(*Engine)

// WithClock replaces the wall clock, typically with clock.NewMock() in tests.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.Clock = c }
}

// WithExpiration replaces the expiration strategy.
func WithExpiration(s expiration.Strategy) Option {
	return func(e *Engine) { e.Expiration = s }
}

// WithDefaultTimeout overrides the timeout used when callers omit one.
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Engine) { e.DefaultTimeout = d }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m types.Metrics) Option {
	return func(e *Engine) { e.Metrics = m }
}

// WithTracer attaches a lifecycle tracer.
func WithTracer(t types.Tracer) Option {
	return func(e *Engine) { e.Tracer = t }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.Logger = l }
}

// WithMaxBlocks caps how many blocks may be alive at once under this engine.
// Allocations beyond the cap fail with ErrExhausted.
func WithMaxBlocks(n int64) Option {
	return func(e *Engine) { e.maxBlocks = n }
}

/*
New creates an Engine.

Collaborators left nil are replaced with defaults so the rest of the code
never has to check: wall clock, fixed-window expiration and no-op metrics.
*/
func New(opts ...Option) *Engine {
	e := &Engine{DefaultTimeout: DefaultTimeout}
	for _, opt := range opts {
		opt(e)
	}
	if e.Clock == nil {
		e.Clock = clock.New()
	}
	if e.Expiration == nil {
		e.Expiration = expiration.FixedWindow{}
	}
	if e.Metrics == nil {
		e.Metrics = types.NoopMetrics{}
	}
	return e
}

var defaultEngine = New()

// Default returns the engine used when a caller does not pick one.
// It has no block cap, so it keeps no counters shared between blocks.
func Default() *Engine { return defaultEngine }

// Now reads the engine clock.
func (e *Engine) Now() time.Time { return e.Clock.Now() }

// Lifetime stamps a new lifetime for t at the current clock reading.
func (e *Engine) Lifetime(t types.Timeout) types.Lifetime {
	return types.NewLifetime(e.Now(), t, e.DefaultTimeout)
}

/*
IsExpired checks whether a lifetime has run out.

BEHAVIOR:
---------
- Delegates the decision to the configured Expiration strategy
- Uses the engine clock, evaluated on every call
*/
func (e *Engine) IsExpired(lt types.Lifetime) bool {
	return e.Expiration.IsExpired(lt, e.Now())
}

// Remaining returns what is left of the window; ok is false when unlimited.
func (e *Engine) Remaining(lt types.Lifetime) (time.Duration, bool) {
	return e.Expiration.Remaining(lt, e.Now())
}

/*
Reserve claims room for one more live block.
It must be paired with Unreserve when the block is destroyed.
Without a cap it always succeeds and touches no shared state.
*/
func (e *Engine) Reserve() error {
	if e.maxBlocks <= 0 {
		return nil
	}
	for {
		n := e.live.Load()
		if n >= e.maxBlocks {
			return ErrExhausted
		}
		if e.live.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}

// Unreserve gives back a slot claimed by Reserve.
func (e *Engine) Unreserve() {
	if e.maxBlocks > 0 {
		e.live.Add(-1)
	}
}

// Live returns the number of live blocks. Always 0 when no cap is set.
func (e *Engine) Live() int64 { return e.live.Load() }

// OnCreate is called once a block owns its payload.
func (e *Engine) OnCreate(id uuid.UUID, lt types.Lifetime) {
	e.Metrics.Created()
	e.trace(types.EventCreated, id, lt, 1)
	e.logger().LogAttrs(context.Background(), slog.LevelDebug, "block created",
		slog.String("block_id", id.String()),
		slog.Int64("timeout_ms", lt.Window.Milliseconds()),
		slog.Bool("unlimited", lt.Unlimited),
	)
}

// OnShare is called after a successful retain.
func (e *Engine) OnShare(id uuid.UUID, lt types.Lifetime, refs int64) {
	e.Metrics.Shared()
	e.trace(types.EventShared, id, lt, refs)
}

// OnRelease is called after every decrement.
func (e *Engine) OnRelease(id uuid.UUID, lt types.Lifetime, refs int64) {
	e.Metrics.Released()
	e.trace(types.EventReleased, id, lt, refs)
}

// OnDestroy is called once the payload has been torn down.
func (e *Engine) OnDestroy(id uuid.UUID, lt types.Lifetime) {
	e.Metrics.Destroyed()
	e.trace(types.EventDestroyed, id, lt, 0)
	e.logger().LogAttrs(context.Background(), slog.LevelDebug, "block destroyed",
		slog.String("block_id", id.String()),
		slog.Int64("elapsed_ms", lt.Elapsed(e.Now()).Milliseconds()),
		slog.Bool("expired", e.IsExpired(lt)),
	)
}

// OnExpiredAccess is called when a read is refused because of expiry.
func (e *Engine) OnExpiredAccess(id uuid.UUID, lt types.Lifetime, refs int64) {
	e.Metrics.ExpiredAccess()
	e.trace(types.EventExpiredAccess, id, lt, refs)
}

// OnRejected is called when Reserve fails and the payload was destroyed.
func (e *Engine) OnRejected(err error) {
	e.Metrics.Rejected()
	if e.Tracer != nil {
		e.Tracer.Record(types.Event{Kind: types.EventRejected, At: e.Now()})
	}
	e.logger().LogAttrs(context.Background(), slog.LevelWarn, "block allocation rejected",
		slog.Int64("max_blocks", e.maxBlocks),
		slog.String("error", err.Error()),
	)
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Engine) trace(kind types.EventKind, id uuid.UUID, lt types.Lifetime, refs int64) {
	if e.Tracer == nil {
		return
	}
	now := e.Now()
	e.Tracer.Record(types.Event{
		Kind:     kind,
		BlockID:  id.String(),
		At:       now,
		Elapsed:  lt.Elapsed(now),
		RefCount: refs,
	})
}
