package types

// This file defines how control blocks report what they are doing.

/*
Metrics is an interface that defines what the library wants to measure.
Each method represents an event in a control block's lifecycle. The engine
calls these methods whenever something happens.
*/
type Metrics interface {

	// Created is called when a new control block takes ownership of a payload.
	Created()

	// Shared is called when a handle is cloned or assigned and the count goes up.
	Shared()

	// Released is called every time an owner lets go of a block.
	Released()

	// Destroyed is called when the count reaches zero and the payload is torn down.
	Destroyed()

	// ExpiredAccess is called when a read is refused because the window has passed.
	ExpiredAccess()

	// Rejected is called when a block cannot be allocated.
	Rejected()
}

/*
NoopMetrics is a "do nothing" implementation of Metrics.

Most callers do not care about metrics, and the engine should not need
nil checks on every lifecycle event.
*/
type NoopMetrics struct{}

func (NoopMetrics) Created()       {}
func (NoopMetrics) Shared()        {}
func (NoopMetrics) Released()      {}
func (NoopMetrics) Destroyed()     {}
func (NoopMetrics) ExpiredAccess() {}
func (NoopMetrics) Rejected()      {}
