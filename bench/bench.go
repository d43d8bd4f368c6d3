// Package bench times repeated reductions and records them in the
// benchmark session log.
package bench

import (
	"fmt"
	"time"

	"github.com/chunleili/paraAlgo"
)

// SumFunc performs one reduction and returns its result.
type SumFunc func() (int32, error)

// Result describes one timed run of a strategy.
type Result struct {
	Name       string
	Backend    string
	Elements   int
	Iterations int
	Sum        int32 // result of the last iteration
	Expected   int32
	Match      bool
	Total      time.Duration
	Err        error
	Counters   *Counters // set by RunCounted when hardware counters were read
}

// PerOp returns the mean wall time of one reduction.
func (r Result) PerOp() time.Duration {
	if r.Iterations == 0 {
		return 0
	}
	return r.Total / time.Duration(r.Iterations)
}

// ElementsPerSec returns the reduction throughput.
func (r Result) ElementsPerSec() float64 {
	if r.Total <= 0 {
		return 0
	}
	return float64(r.Elements) * float64(r.Iterations) / r.Total.Seconds()
}

// Verify records whether the run reproduced expected.
func (r *Result) Verify(expected int32) {
	r.Expected = expected
	r.Match = r.Err == nil && r.Sum == expected
}

// Status maps the result to a session log status.
func (r Result) Status() string {
	switch {
	case r.Err != nil:
		return paraalgo.StatusFail
	case !r.Match:
		return paraalgo.StatusMismatch
	default:
		return paraalgo.StatusPass
	}
}

// Record converts the result to a session log entry.
func (r Result) Record(cacheCondition string) paraalgo.BenchmarkResult {
	rec := paraalgo.BenchmarkResult{
		Name:           r.Name,
		Backend:        r.Backend,
		Status:         r.Status(),
		Elements:       r.Elements,
		Iterations:     r.Iterations,
		Sum:            r.Sum,
		Expected:       r.Expected,
		NsPerOp:        float64(r.PerOp().Nanoseconds()),
		ElementsPerSec: r.ElementsPerSec(),
		Duration:       r.Total,
		CacheCondition: cacheCondition,
	}
	if r.Total > 0 {
		rec.MBPerSec = float64(r.Elements) * 4 * float64(r.Iterations) / r.Total.Seconds() / 1e6
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	if c := r.Counters; c != nil {
		rec.Cycles = c.Cycles
		rec.Instructions = c.Instructions
		rec.CacheMisses = c.CacheMisses
		rec.BranchMisses = c.BranchMisses
		rec.IPC = c.IPC()
	}
	return rec
}

// String renders the result the way the console report prints it.
func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s failed: %v", r.Name, r.Err)
	}
	return fmt.Sprintf("%s spent time = %.6f, sum = %d", r.Name, r.Total.Seconds(), r.Sum)
}

// Run calls fn iterations times and times the whole loop. The first
// failure stops the run and is returned along with the partial result.
func Run(name string, elements, iterations int, fn SumFunc) (Result, error) {
	res := Result{Name: name, Elements: elements}
	if iterations < 1 {
		return res, fmt.Errorf("bench: %s: iterations must be positive, got %d", name, iterations)
	}

	start := time.Now()
	for i := 0; i < iterations; i++ {
		sum, err := fn()
		if err != nil {
			res.Total = time.Since(start)
			res.Err = err
			return res, err
		}
		res.Sum = sum
		res.Iterations++
	}
	res.Total = time.Since(start)
	return res, nil
}
