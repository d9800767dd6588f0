package expiration

import (
	"time"

	"github.com/krisalay/timedptr/types"
)

/*
FixedWindow implements "expire after creation". The window starts when the
block is created and is never pushed forward by reads, so an expired block
can not become valid again. Only binding a new block restarts the clock.
*/
type FixedWindow struct{}

// IsExpired reports whether now - CreatedAt >= Window. Unlimited never expires.
func (FixedWindow) IsExpired(lt types.Lifetime, now time.Time) bool {
	if lt.Unlimited {
		return false
	}
	return lt.Elapsed(now) >= lt.Window
}

// Remaining returns the unused part of the window.
func (FixedWindow) Remaining(lt types.Lifetime, now time.Time) (time.Duration, bool) {
	if lt.Unlimited {
		return 0, false
	}
	left := lt.Window - lt.Elapsed(now)
	if left < 0 {
		left = 0
	}
	return left, true
}
