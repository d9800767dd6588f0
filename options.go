package timedptr

import (
	"github.com/krisalay/timedptr/engine"
	"github.com/krisalay/timedptr/types"
)

// Option customizes how a payload is bound by New or Reset.
type Option func(*options)

type options struct {
	timeout types.Timeout
	engine  *engine.Engine
}

// WithTimeout sets an explicit expiry window in milliseconds.
// Negative values mean the handle never expires; zero expires immediately.
// Without this option the engine default (1000 ms) applies.
func WithTimeout(ms int64) Option {
	return func(o *options) { o.timeout = types.Millis(ms) }
}

// Unlimited makes the handle immune to time expiry.
func Unlimited() Option {
	return WithTimeout(-1)
}

// WithEngine binds the block to a specific engine (clock, limits, metrics).
func WithEngine(e *engine.Engine) Option {
	return func(o *options) { o.engine = e }
}

func buildOptions(fallback *engine.Engine, opts []Option) options {
	o := options{engine: fallback}
	for _, opt := range opts {
		opt(&o)
	}
	if o.engine == nil {
		o.engine = engine.Default()
	}
	return o
}
