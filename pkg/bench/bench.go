// Package bench provides a call-latency benchmark harness for a covrpc
// client: issue a configurable number of back-to-back calls and report
// p50/p99 latency. This is an operational nicety, not part of the RPC
// engine's correctness surface.
package bench

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/covrpc/covrpc/pkg/client"
)

// Options configures one benchmark run.
type Options struct {
	FnID        uint32
	ReqPayload  []byte
	RespBufSize int
	NumCalls    int
	Threads     int
	WarmupCalls int
}

// DefaultOptions returns a high-volume, multi-threaded default run.
func DefaultOptions() Options {
	return Options{
		FnID:        0,
		ReqPayload:  make([]byte, 256),
		RespBufSize: 256,
		NumCalls:    200_000,
		Threads:     4,
		WarmupCalls: 100,
	}
}

// Result reports latency percentiles in microseconds over a run.
type Result struct {
	Calls int
	P50us float64
	P99us float64
	AvgUs float64
}

// Run issues opts.NumCalls calls against cli split across opts.Threads
// goroutines, after a serial warm-up, and returns latency percentiles.
func Run(ctx context.Context, cli *client.Client, opts Options) (Result, error) {
	if opts.Threads < 1 {
		opts.Threads = 1
	}

	warmupDst := make([]byte, opts.RespBufSize)
	for i := 0; i < opts.WarmupCalls; i++ {
		if _, err := cli.Call(ctx, opts.FnID, opts.ReqPayload, warmupDst); err != nil {
			return Result{}, fmt.Errorf("bench: warmup call %d failed: %w", i, err)
		}
	}

	perThread := opts.NumCalls / opts.Threads
	latencies := make([][]time.Duration, opts.Threads)
	errs := make([]error, opts.Threads)

	var wg sync.WaitGroup
	wg.Add(opts.Threads)
	for t := 0; t < opts.Threads; t++ {
		t := t
		calls := perThread
		if t < opts.NumCalls%opts.Threads {
			calls++
		}
		go func() {
			defer wg.Done()
			dst := make([]byte, opts.RespBufSize)
			ls := make([]time.Duration, 0, calls)
			for i := 0; i < calls; i++ {
				start := time.Now()
				if _, err := cli.Call(ctx, opts.FnID, opts.ReqPayload, dst); err != nil {
					errs[t] = fmt.Errorf("bench: call %d on thread %d failed: %w", i, t, err)
					return
				}
				ls = append(ls, time.Since(start))
			}
			latencies[t] = ls
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return Result{}, err
		}
	}

	var all []time.Duration
	for _, ls := range latencies {
		all = append(all, ls...)
	}
	return summarize(all), nil
}

func summarize(latencies []time.Duration) Result {
	if len(latencies) == 0 {
		return Result{}
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	return Result{
		Calls: len(latencies),
		P50us: toMicros(latencies[percentileIndex(len(latencies), 0.50)]),
		P99us: toMicros(latencies[percentileIndex(len(latencies), 0.99)]),
		AvgUs: toMicros(sum) / float64(len(latencies)),
	}
}

func percentileIndex(n int, p float64) int {
	idx := int(float64(n) * p)
	if idx >= n {
		idx = n - 1
	}
	return idx
}

func toMicros(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1000.0
}
