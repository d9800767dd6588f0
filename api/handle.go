package api

import "time"

/*
Handle defines the PUBLIC read and release surface of a time-limited shared
handle. Consumers that only inspect or drop a handle should depend on this
interface rather than on the concrete generic type. Cloning, assignment and
reset stay on the concrete type because they produce or accept it.
*/
type Handle[T any] interface {

	/*
		Get returns the payload or nil.

		BEHAVIOR:
		-------------------
		1. Empty handle or destroyed payload -> nil
		2. Timed handle whose window elapsed -> nil
		3. Otherwise -> the payload pointer

		Re-evaluated against the clock on every call. A handle that returned nil
		because of expiry never returns a value again.
	*/
	Get() *T

	// Deref behaves like Get but reports the nil case as an error.
	Deref() (*T, error)

	// Value returns a copy of the payload, failing like Deref.
	Value() (T, error)

	/*
		UseCount returns how many handles share the payload.

		IMPORTANT:
		----------
		- This is ownership, not accessibility
		- An expired handle with live copies still reports >= 1
		- An empty handle reports 0
	*/
	UseCount() int64

	// Expired reports whether the window of a bound, timed handle has elapsed.
	Expired() bool

	// Remaining returns the unused part of the window; ok is false when the
	// handle is empty or unlimited.
	Remaining() (left time.Duration, ok bool)

	// Release drops this handle's reference. The payload is destroyed when
	// the last reference goes.
	Release()
}
