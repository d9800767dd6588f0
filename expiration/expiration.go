// This file defines how control blocks expire over time.

package expiration

import (
	"time"

	"github.com/krisalay/timedptr/types"
)

/*
Strategy is the interface that all expiration rules must follow. Instead of
hard-coding the rule into the handle, the engine holds a strategy so the
decision can be swapped (for example in tests).

A strategy must be a pure function of the lifetime and the clock reading:
blocks never cache the answer, and once a block is expired it must stay
expired for every later now.
*/
type Strategy interface {

	// IsExpired checks if a block with this lifetime is expired at now.
	IsExpired(types.Lifetime, time.Time) bool

	// Remaining returns how much of the window is left at now, floored at zero.
	// ok is false for unlimited lifetimes.
	Remaining(types.Lifetime, time.Time) (left time.Duration, ok bool)
}
