// Package metrics provides a lock-free implementation of types.Metrics.
package metrics

import (
	"fmt"
	"io"
	"sync/atomic"
)

// Counters tallies lifecycle events with atomic counters.
// The zero value is ready to use.
type Counters struct {
	created   atomic.Int64
	shared    atomic.Int64
	released  atomic.Int64
	destroyed atomic.Int64
	expired   atomic.Int64
	rejected  atomic.Int64
}

func (c *Counters) Created()       { c.created.Add(1) }
func (c *Counters) Shared()        { c.shared.Add(1) }
func (c *Counters) Released()      { c.released.Add(1) }
func (c *Counters) Destroyed()     { c.destroyed.Add(1) }
func (c *Counters) ExpiredAccess() { c.expired.Add(1) }
func (c *Counters) Rejected()      { c.rejected.Add(1) }

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Created       int64
	Shared        int64
	Released      int64
	Destroyed     int64
	ExpiredAccess int64
	Rejected      int64
}

// Live is the number of blocks created but not yet destroyed.
func (s Snapshot) Live() int64 { return s.Created - s.Destroyed }

// Snapshot reads every counter. Counters are read one by one, so a snapshot
// taken under load may be slightly skewed between fields.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Created:       c.created.Load(),
		Shared:        c.shared.Load(),
		Released:      c.released.Load(),
		Destroyed:     c.destroyed.Load(),
		ExpiredAccess: c.expired.Load(),
		Rejected:      c.rejected.Load(),
	}
}

// Print writes a human-readable table.
func (s Snapshot) Print(w io.Writer) {
	fmt.Fprintln(w, "\n==================== METRICS ====================")
	fmt.Fprintf(w, "CREATED        : %d\n", s.Created)
	fmt.Fprintf(w, "SHARED         : %d\n", s.Shared)
	fmt.Fprintf(w, "RELEASED       : %d\n", s.Released)
	fmt.Fprintf(w, "DESTROYED      : %d\n", s.Destroyed)
	fmt.Fprintf(w, "EXPIRED ACCESS : %d\n", s.ExpiredAccess)
	fmt.Fprintf(w, "REJECTED       : %d\n", s.Rejected)
	fmt.Fprintf(w, "LIVE           : %d\n", s.Live())
}
