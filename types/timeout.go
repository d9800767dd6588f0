package types

import "time"

/*
Timeout is the expiry setting a caller passes when binding a payload.

The zero value means "omitted": the engine default applies. An explicit value
always wins, including negative values, which mean "never expires". Keeping
omitted and explicit apart avoids reserving a magic number for "use default".
*/
type Timeout struct {
	millis   int64
	explicit bool
}

// Millis returns an explicit timeout in milliseconds. Negative means unlimited.
func Millis(ms int64) Timeout {
	return Timeout{millis: ms, explicit: true}
}

// IsDefault reports whether the timeout was omitted.
func (t Timeout) IsDefault() bool { return !t.explicit }

// Resolve returns the window and whether the block never expires.
func (t Timeout) Resolve(defaultWindow time.Duration) (time.Duration, bool) {
	if !t.explicit {
		if defaultWindow < 0 {
			return 0, true
		}
		return defaultWindow, false
	}
	if t.millis < 0 {
		return 0, true
	}
	return time.Duration(t.millis) * time.Millisecond, false
}
