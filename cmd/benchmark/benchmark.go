package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/krisalay/timedptr"
	"github.com/krisalay/timedptr/engine"
	"github.com/krisalay/timedptr/metrics"
)

// ================= PAYLOAD =================

type payload struct {
	id        int
	destroyed *atomic.Int64
}

func (p *payload) Destroy() { p.destroyed.Add(1) }

// ================= BENCHMARK =================

func main() {
	goroutines := flag.Int("goroutines", 200, "concurrent workers")
	opsPerG := flag.Int("ops", 5000, "clone/get/release cycles per worker")
	resetEvery := flag.Int("reset-every", 500, "worker 0 resets the root handle every N ops (0 disables)")
	timeoutMs := flag.Int64("timeout", -1, "root handle timeout in ms (negative = unlimited)")
	flag.Parse()

	fmt.Println("\n================ HANDLE LOAD BENCHMARK =================")
	fmt.Println("CONFIG")
	fmt.Println("---------------------------------")
	fmt.Println("Goroutines   :", *goroutines)
	fmt.Println("Ops/Goroutine:", *opsPerG)
	fmt.Println("Reset Every  :", *resetEvery)
	fmt.Println("Timeout (ms) :", *timeoutMs)

	var destroyed atomic.Int64
	counters := &metrics.Counters{}
	eng := engine.New(engine.WithMetrics(counters))

	root, err := timedptr.New(&payload{id: 0, destroyed: &destroyed},
		timedptr.WithTimeout(*timeoutMs), timedptr.WithEngine(eng))
	if err != nil {
		fmt.Fprintln(os.Stderr, "create root:", err)
		os.Exit(1)
	}

	var (
		hits    atomic.Int64
		expired atomic.Int64
		resets  atomic.Int64
	)

	start := time.Now()
	g, ctx := errgroup.WithContext(context.Background())
	for w := 0; w < *goroutines; w++ {
		w := w // per-iteration copy (go.mod targets 1.21, pre-1.22 loop semantics)
		g.Go(func() error {
			for i := 0; i < *opsPerG; i++ {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if w == 0 && *resetEvery > 0 && i%*resetEvery == 0 {
					n := int(resets.Add(1))
					if err := root.Reset(&payload{id: n, destroyed: &destroyed},
						timedptr.WithTimeout(*timeoutMs)); err != nil {
						return fmt.Errorf("reset: %w", err)
					}
				}
				c := root.Clone()
				if c.Get() != nil {
					hits.Add(1)
				} else if c.UseCount() > 0 {
					expired.Add(1)
				}
				c.Release()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, "benchmark failed:", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)

	root.Release()

	total := int64(*goroutines) * int64(*opsPerG)
	snap := counters.Snapshot()

	fmt.Println("\n================ RESULTS =================")
	fmt.Printf("Total cycles : %d\n", total)
	fmt.Printf("Duration     : %s\n", elapsed)
	fmt.Printf("Throughput   : %.0f cycles/sec\n", float64(total)/elapsed.Seconds())
	fmt.Printf("Hits         : %d\n", hits.Load())
	fmt.Printf("Expired      : %d\n", expired.Load())
	fmt.Printf("Resets       : %d\n", resets.Load())
	snap.Print(os.Stdout)

	if snap.Live() != 0 || destroyed.Load() != snap.Created {
		fmt.Fprintf(os.Stderr, "LEAK: created=%d destroyed=%d payloads=%d\n",
			snap.Created, snap.Destroyed, destroyed.Load())
		os.Exit(1)
	}
	fmt.Println("\nSYSTEM → every payload destroyed exactly once")
}
