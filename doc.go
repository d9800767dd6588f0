// Package timedptr provides Shared, a reference-counted handle whose payload
// becomes inaccessible after a fixed time window.
//
// Ownership and access are tracked separately. Ownership follows the usual
// shared-pointer rule: Clone and Assign add a reference, Release and Reset
// drop one, and the payload is destroyed exactly once when the count reaches
// zero. Access is gated by time: once the window that started when the
// payload was bound has elapsed, Get returns nil and Deref returns
// ErrExpiredOrNull, although the payload stays alive until its last owner
// lets go.
//
// # Basic Usage
//
//	h, err := timedptr.New(&Node{Value: 7}, timedptr.WithTimeout(100))
//	if err != nil {
//	    return err
//	}
//	defer h.Release()
//
//	c := h.Clone()  // UseCount() == 2 on both
//	defer c.Release()
//
//	if n := h.Get(); n != nil {
//	    fmt.Println(n.Value)
//	}
//
// # Timeouts
//
// Omitting WithTimeout selects the engine default of 1000 ms. A negative
// timeout (or Unlimited) disables expiry. A timeout of zero expires at once.
//
// # Thread Safety
//
// Reference counting is atomic, and Clone, Assign, Reset and Release may run
// concurrently on handles sharing one block, or on the same handle. The
// payload itself is not synchronized. Reading it through Get while another
// goroutine drops the last reference is a race the caller must prevent.
package timedptr
