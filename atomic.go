package paraalgo

import "sync/atomic"

// AtomicInt32 is a single int32 memory cell shared by every lane of a
// kernel. All writes go through fetch-and-add, so concurrent lanes never lose
// an update; heavy contention on one cell serializes them, which is the
// throughput cost of using it as a global accumulator.
//
// The zero value is a cell holding 0. An AtomicInt32 must not be copied
// after first use.
type AtomicInt32 struct {
	v atomic.Int32
}

// Add atomically adds delta and returns the value held before the add.
// Overflow wraps around.
func (a *AtomicInt32) Add(delta int32) (prev int32) {
	return a.v.Add(delta) - delta
}

// Load returns the current value.
func (a *AtomicInt32) Load() int32 {
	return a.v.Load()
}

// Store sets the value. Only call it while no kernel touches the cell.
func (a *AtomicInt32) Store(v int32) {
	a.v.Store(v)
}
