// Command cmd walks through the life of time-limited shared handles: a list
// node that expires while a copy still owns it, then an int with the
// default timeout.
//
// Usage:
//
//	go run ./cmd [-config scenario.yaml] [-trace out.cbor] [-v]
//	go run ./cmd -replay out.cbor
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/krisalay/timedptr"
	"github.com/krisalay/timedptr/api"
	"github.com/krisalay/timedptr/engine"
	"github.com/krisalay/timedptr/metrics"
	"github.com/krisalay/timedptr/trace"
)

// ================= SCENARIO =================

// Scenario holds the timings of the walkthrough, in milliseconds.
type Scenario struct {
	NodeValue     int   `yaml:"node_value"`
	NodeTimeoutMs int64 `yaml:"node_timeout_ms"`
	FirstWaitMs   int64 `yaml:"first_wait_ms"`
	SecondWaitMs  int64 `yaml:"second_wait_ms"`
	ThirdWaitMs   int64 `yaml:"third_wait_ms"`
	IntValue      int   `yaml:"int_value"`
}

func defaultScenario() Scenario {
	return Scenario{
		NodeValue:     7,
		NodeTimeoutMs: 100,
		FirstWaitMs:   50,
		SecondWaitMs:  25,
		ThirdWaitMs:   75,
		IntValue:      42,
	}
}

// loadScenario overlays the YAML file at path on the defaults.
func loadScenario(path string) (Scenario, error) {
	sc := defaultScenario()
	if path == "" {
		return sc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return sc, fmt.Errorf("read scenario: %w", err)
	}
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return sc, nil
}

// ================= PAYLOAD =================

type ListNode struct {
	Value int
}

func (n *ListNode) Destroy() {
	slog.Debug("list node destroyed", slog.Int("value", n.Value))
}

func display[T any](w io.Writer, h api.Handle[T]) {
	if p := h.Get(); p != nil {
		fmt.Fprintf(w, "%p", p)
	} else {
		fmt.Fprint(w, "Yeo! Expired 0")
	}
}

func sleepMs(ms int64) { time.Sleep(time.Duration(ms) * time.Millisecond) }

// ================= MAIN =================

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "YAML scenario file")
	tracePath := flag.String("trace", "", "write lifecycle events as CBOR to this file")
	replayPath := flag.String("replay", "", "print a CBOR trace file and exit")
	verbose := flag.Bool("v", false, "log block diagnostics")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *replayPath != "" {
		return replay(os.Stdout, *replayPath)
	}

	sc, err := loadScenario(*configPath)
	if err != nil {
		return err
	}

	counters := &metrics.Counters{}
	rec := trace.NewRecorder(trace.DefaultCapacity)
	tracer := trace.Tee{rec}

	var stream *trace.Stream
	if *tracePath != "" {
		f, err := os.Create(*tracePath)
		if err != nil {
			return fmt.Errorf("create trace file: %w", err)
		}
		defer f.Close()
		stream = trace.NewStream(f, trace.DefaultCapacity)
		tracer = append(tracer, stream)
	}

	eng := engine.New(
		engine.WithLogger(logger),
		engine.WithMetrics(counters),
		engine.WithTracer(tracer),
	)

	if err := walkthrough(os.Stdout, eng, sc); err != nil {
		return err
	}

	counters.Snapshot().Print(os.Stdout)

	if stream != nil {
		// walkthrough released every handle, so nothing can record anymore.
		if err := stream.Close(); err != nil {
			return fmt.Errorf("write trace: %w", err)
		}
		fmt.Printf("\nTRACE  → %d events written to %s (%d dropped)\n",
			rec.Len(), *tracePath, stream.Dropped())
	}
	return nil
}

func walkthrough(w io.Writer, eng *engine.Engine, sc Scenario) error {
	fmt.Fprintln(w, "\n==================== 1) TIMED LIST NODE ====================")
	fmt.Fprintf(w, "TIMEOUT : %d ms\n", sc.NodeTimeoutMs)

	firstNode, err := timedptr.New(&ListNode{Value: sc.NodeValue},
		timedptr.WithTimeout(sc.NodeTimeoutMs), timedptr.WithEngine(eng))
	if err != nil {
		return fmt.Errorf("create first node: %w", err)
	}
	defer firstNode.Release()

	copyNode := firstNode.Clone()
	defer copyNode.Release()

	elapsed := sc.FirstWaitMs
	sleepMs(sc.FirstWaitMs)
	fmt.Fprintf(w, "[%3d ms] firstNode.Get() address: <", elapsed)
	display[ListNode](w, firstNode)
	fmt.Fprintln(w, ">")
	fmt.Fprintln(w, "firstNode.UseCount():", firstNode.UseCount())
	fmt.Fprintln(w, "copyNode.UseCount(): ", copyNode.UseCount())

	elapsed += sc.SecondWaitMs
	sleepMs(sc.SecondWaitMs)
	fmt.Fprintf(w, "[%3d ms] firstNode.Get() address: <", elapsed)
	display[ListNode](w, firstNode)
	fmt.Fprintln(w, ">")

	elapsed += sc.ThirdWaitMs
	sleepMs(sc.ThirdWaitMs)
	fmt.Fprintln(w, "Expecting expiration:")
	fmt.Fprintf(w, "[%3d ms] firstNode.Get() address: <", elapsed)
	display[ListNode](w, firstNode)
	fmt.Fprintln(w, ">")

	if _, err := firstNode.Deref(); err != nil {
		fmt.Fprintln(w, "firstNode.Deref():   ", err)
	}
	fmt.Fprintln(w, "firstNode.UseCount():", firstNode.UseCount())

	fmt.Fprintln(w, "\n==================== 2) DEFAULT TIMEOUT INT ====================")

	intPtr, err := timedptr.New(&sc.IntValue, timedptr.WithEngine(eng))
	if err != nil {
		return fmt.Errorf("create int: %w", err)
	}
	defer intPtr.Release()

	display[int](w, intPtr)
	fmt.Fprintln(w)
	left, _ := intPtr.Remaining()
	fmt.Fprintln(w, "intPtr.Remaining(): ", left.Round(time.Millisecond))
	fmt.Fprintln(w, "intPtr.UseCount():  ", intPtr.UseCount())

	intPtrCopy := intPtr.Clone()
	defer intPtrCopy.Release()
	fmt.Fprintln(w, "intPtr.UseCount():  ", intPtr.UseCount())
	fmt.Fprintln(w, "intPtrCopy.UseCount():", intPtrCopy.UseCount())

	fmt.Fprintln(w, "\n==================== 3) RESET ====================")

	if err := intPtr.Reset(nil); err != nil {
		return fmt.Errorf("reset int: %w", err)
	}
	fmt.Fprintln(w, "intPtr.UseCount():    ", intPtr.UseCount())
	fmt.Fprintln(w, "intPtrCopy.UseCount():", intPtrCopy.UseCount())
	return nil
}

func replay(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()

	events, err := trace.ReadEvents(f)
	if err != nil {
		return err
	}
	for _, ev := range events {
		fmt.Fprintf(w, "%s  %-15s %s elapsed=%s refs=%d\n",
			ev.At.Format(time.RFC3339Nano), ev.Kind, ev.BlockID, ev.Elapsed, ev.RefCount)
	}
	return nil
}
