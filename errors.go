package timedptr

import (
	"errors"
	"fmt"
)

var (
	// ErrExpiredOrNull is returned by the asserting accessors when the handle
	// is empty or its window has elapsed.
	ErrExpiredOrNull = errors.New("timedptr: expired or null handle")

	// ErrAllocation is returned when a control block could not be allocated.
	// The payload has already been destroyed when this error is seen.
	ErrAllocation = errors.New("timedptr: control block allocation failed")
)

// Reason tells why an access was refused.
type Reason uint8

const (
	ReasonNull Reason = iota
	ReasonExpired
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonNull:
		return "null"
	case ReasonExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// AccessError is returned by Deref and Value. It matches ErrExpiredOrNull.
type AccessError struct {
	Op     string
	Reason Reason
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("timedptr: %s of %s handle", e.Op, e.Reason)
}

// Unwrap lets errors.Is(err, ErrExpiredOrNull) succeed.
func (e *AccessError) Unwrap() error { return ErrExpiredOrNull }
