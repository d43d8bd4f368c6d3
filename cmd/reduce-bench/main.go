// Copyright ©2024 The paraAlgo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command reduce-bench sums a seeded pseudo-random int32 array with every
// reduction strategy, times each one and checks it against a sequential
// reference.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/chunleili/paraAlgo"
	"github.com/chunleili/paraAlgo/bench"
	"github.com/chunleili/paraAlgo/reduce"
	"github.com/chunleili/paraAlgo/webgpu"
	"github.com/chunleili/paraAlgo/workload"
)

type config struct {
	n          int
	iterations int
	seed       string
	strategies []string
	backend    string
	session    string
	cold       bool
	counters   bool
	verbose    bool
}

func main() {
	var (
		n          = flag.Int("n", paraalgo.DefaultArraySize, "Number of elements to sum")
		iterations = flag.Int("iters", paraalgo.DefaultIterations, "Reductions per strategy")
		seed       = flag.String("seed", "paraalgo", "Workload seed")
		strategies = flag.String("strategies", strings.Join(reduce.Strategies(), ","), "Comma-separated strategies to run")
		backend    = flag.String("backend", "cpu", "Compute backend: cpu or webgpu")
		session    = flag.String("session", "", "Write results to a session log with this name")
		cold       = flag.Bool("cold", false, "Flush CPU caches before each strategy")
		counters   = flag.Bool("counters", false, "Collect hardware performance counters (Linux)")
		verbose    = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	cfg := config{
		n:          *n,
		iterations: *iterations,
		seed:       *seed,
		strategies: splitList(*strategies),
		backend:    *backend,
		session:    *session,
		cold:       *cold,
		counters:   *counters,
		verbose:    *verbose,
	}

	if cfg.session != "" {
		path, err := paraalgo.InitBenchmarkLogger(cfg.session)
		if err != nil {
			log.Fatalf("Failed to start session log: %v", err)
		}
		fmt.Printf("Logging to %s\n", path)
	}

	results, err := run(cfg, os.Stdout)
	if len(results) > 0 {
		fmt.Println()
		paraalgo.PrintBenchmarkSummary(os.Stdout, results)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// runner produces a timed SumFunc for one strategy on the active backend.
type runner interface {
	prepare(name string) (fn bench.SumFunc, label string, closer func(), err error)
	close()
}

// run executes every configured strategy. Failed strategies are reported
// and logged; the first failure is returned after all strategies ran.
func run(cfg config, w io.Writer) ([]paraalgo.BenchmarkResult, error) {
	if cfg.n < 0 || cfg.iterations < 1 {
		return nil, fmt.Errorf("invalid workload: n=%d iters=%d", cfg.n, cfg.iterations)
	}

	fmt.Fprintln(w, "=== Parallel Reduction Benchmark ===")
	if v, _ := paraalgo.Version(); v != "" {
		fmt.Fprintf(w, "paraAlgo: %s\n", v)
	}
	fmt.Fprintf(w, "Go Version: %s\n", runtime.Version())
	fmt.Fprintf(w, "CPU: %d cores, %s\n", runtime.NumCPU(), paraalgo.GetCPUFeatures())

	start := time.Now()
	host, err := workload.Generate([]byte(cfg.seed), cfg.n, paraalgo.DefaultValueLow, paraalgo.DefaultValueHigh)
	if err != nil {
		return nil, err
	}
	expected := reduce.Sum(host)
	if cfg.verbose {
		fmt.Fprintf(w, "Generated %d values in %v, reference sum = %d\n", cfg.n, time.Since(start), expected)
	}

	var r runner
	switch cfg.backend {
	case "cpu":
		r, err = newCPURunner(host, w)
	case "webgpu":
		r, err = newGPURunner(host, w)
	default:
		err = fmt.Errorf("unknown backend %q", cfg.backend)
	}
	if err != nil {
		return nil, err
	}
	defer r.close()

	cacheCondition := "hot"
	if cfg.cold {
		cacheCondition = "cold"
	}

	var (
		results  []paraalgo.BenchmarkResult
		firstErr error
	)
	for _, name := range cfg.strategies {
		if cfg.cold {
			d := bench.FlushCaches(bench.DefaultFlushSize)
			if cfg.verbose {
				fmt.Fprintf(w, "Flushed caches in %v\n", d)
			}
		}

		res, err := runStrategy(r, name, len(host), cfg.iterations, expected, cfg.counters)
		res.Backend = cfg.backend
		fmt.Fprintln(w, res)
		if err == nil && !res.Match {
			fmt.Fprintf(w, "  %s sum differs from reference %d\n", res.Name, expected)
		}
		if c := res.Counters; c != nil && cfg.verbose {
			fmt.Fprintf(w, "  IPC %.2f, %d cache misses, %d branch misses\n", c.IPC(), c.CacheMisses, c.BranchMisses)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}

		rec := res.Record(cacheCondition)
		results = append(results, rec)
		if err := paraalgo.LogBenchmarkResult(rec); err != nil {
			fmt.Fprintf(w, "  failed to log result: %v\n", err)
		}
	}
	return results, firstErr
}

func runStrategy(r runner, name string, elements, iterations int, expected int32, counters bool) (bench.Result, error) {
	fn, label, closer, err := r.prepare(name)
	if err != nil {
		res := bench.Result{Name: name, Elements: elements, Err: err}
		return res, err
	}
	defer closer()

	timed := bench.Run
	if counters {
		timed = bench.RunCounted
	}
	res, err := timed(label, elements, iterations, fn)
	res.Verify(expected)
	return res, err
}

type cpuRunner struct {
	ctx *paraalgo.Context
	src *reduce.SourceArray
}

func newCPURunner(host []int32, w io.Writer) (*cpuRunner, error) {
	ctx := paraalgo.NewContext()
	dev := ctx.Device()
	fmt.Fprintf(w, "Device: %s, %d workers, %.1f GB memory\n",
		dev.Name, ctx.Workers(), float64(dev.TotalMem)/(1<<30))

	src, err := reduce.NewSourceArray(ctx, host)
	if err != nil {
		ctx.Destroy()
		return nil, err
	}
	return &cpuRunner{ctx: ctx, src: src}, nil
}

func (c *cpuRunner) prepare(name string) (bench.SumFunc, string, func(), error) {
	r, err := reduce.New(name, c.ctx, c.src.Len())
	if err != nil {
		return nil, "", nil, err
	}
	fn := func() (int32, error) { return r.Reduce(c.src) }
	return fn, r.Name(), func() { r.Close() }, nil
}

func (c *cpuRunner) close() {
	c.src.Free()
	c.ctx.Destroy()
}

type gpuRunner struct {
	src *webgpu.Source
}

func newGPURunner(host []int32, w io.Writer) (*gpuRunner, error) {
	src, err := webgpu.NewSource(host)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "Device: %s\n", webgpu.AdapterName())
	return &gpuRunner{src: src}, nil
}

func (g *gpuRunner) prepare(name string) (bench.SumFunc, string, func(), error) {
	r, err := webgpu.NewReducer(name, g.src.Len())
	if err != nil {
		return nil, "", nil, err
	}
	fn := func() (int32, error) { return r.Reduce(g.src) }
	return fn, r.Name(), func() { r.Close() }, nil
}

func (g *gpuRunner) close() { g.src.Free() }
