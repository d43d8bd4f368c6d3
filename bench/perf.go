package bench

import (
	"errors"
	"runtime"
)

// ErrCountersUnavailable is returned by Monitor.Start where hardware
// performance counters cannot be opened.
var ErrCountersUnavailable = errors.New("bench: hardware performance counters unavailable")

// Counters holds hardware counter totals for a measured region.
type Counters struct {
	Cycles       uint64
	Instructions uint64
	CacheMisses  uint64
	BranchMisses uint64
}

// IPC returns instructions per cycle.
func (c Counters) IPC() float64 {
	if c.Cycles == 0 {
		return 0
	}
	return float64(c.Instructions) / float64(c.Cycles)
}

// RunCounted is Run with hardware counters collected around the timed loop.
// The calling goroutine is locked to its OS thread for the whole run so the
// thread that opened the counters is the one that drives fn. When counters
// cannot be opened the run still happens and Result.Counters stays nil.
func RunCounted(name string, elements, iterations int, fn SumFunc) (Result, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	m := NewMonitor()
	if err := m.Start(); err != nil {
		return Run(name, elements, iterations, fn)
	}
	res, err := Run(name, elements, iterations, fn)
	c := m.Stop()
	res.Counters = &c
	return res, err
}
