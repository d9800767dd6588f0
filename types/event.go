package types

import "time"

// EventKind classifies a control block lifecycle event.
type EventKind uint8

const (
	EventCreated EventKind = iota
	EventShared
	EventReleased
	EventDestroyed
	EventExpiredAccess
	EventRejected
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "CREATED"
	case EventShared:
		return "SHARED"
	case EventReleased:
		return "RELEASED"
	case EventDestroyed:
		return "DESTROYED"
	case EventExpiredAccess:
		return "EXPIRED_ACCESS"
	case EventRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Event is one lifecycle observation. CBOR encoding uses integer keys.
type Event struct {
	Kind EventKind `cbor:"1,keyasint"`

	// BlockID is the control block UUID; empty for rejected allocations.
	BlockID string `cbor:"2,keyasint,omitempty"`

	// At is the engine clock reading when the event happened.
	At time.Time `cbor:"3,keyasint"`

	// Elapsed is the block age at At.
	Elapsed time.Duration `cbor:"4,keyasint,omitempty"`

	// RefCount is the reference count right after the event.
	RefCount int64 `cbor:"5,keyasint"`
}

// Tracer receives lifecycle events. Implementations must be safe for
// concurrent use and must not block.
type Tracer interface {
	Record(Event)
}
