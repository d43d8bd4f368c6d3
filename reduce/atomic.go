package reduce

import (
	"github.com/chunleili/paraAlgo"
)

// AtomicReducer sums by having every lane fetch-and-add its element into a
// single shared accumulator. It needs no scratch memory. All lanes contend
// on one cell, so it is the baseline to beat rather than the fast path.
type AtomicReducer struct {
	ctx *paraalgo.Context
}

// NewAtomicReducer returns an AtomicReducer launching on ctx.
func NewAtomicReducer(ctx *paraalgo.Context) *AtomicReducer {
	return &AtomicReducer{ctx: ctx}
}

// Name implements Reducer.
func (r *AtomicReducer) Name() string { return StrategyAtomic }

// Reduce implements Reducer.
func (r *AtomicReducer) Reduce(src *SourceArray) (int32, error) {
	var acc paraalgo.AtomicInt32
	data := src.data()

	err := r.ctx.ParallelFor(len(data), func(i int) {
		acc.Add(data[i])
	})
	if err != nil {
		return 0, wrap(r.Name(), err)
	}
	return acc.Load(), nil
}

// Close implements Reducer.
func (r *AtomicReducer) Close() error { return nil }
