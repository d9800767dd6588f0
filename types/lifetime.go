package types

import "time"

// Lifetime is the timing metadata captured when a control block is created.
// It is immutable after construction, so readers never need a lock.
type Lifetime struct {
	CreatedAt time.Time
	Window    time.Duration // ignored when Unlimited
	Unlimited bool
}

/*
NewLifetime resolves a Timeout against the default window and stamps it with now.

  - omitted timeout  -> defaultWindow (a negative default means unlimited)
  - negative millis  -> unlimited
  - zero or positive -> timed, Window = millis
*/
func NewLifetime(now time.Time, t Timeout, defaultWindow time.Duration) Lifetime {
	window, unlimited := t.Resolve(defaultWindow)
	return Lifetime{
		CreatedAt: now,
		Window:    window,
		Unlimited: unlimited,
	}
}

// Elapsed returns how long the block has existed at now.
func (l Lifetime) Elapsed(now time.Time) time.Duration {
	return now.Sub(l.CreatedAt)
}
