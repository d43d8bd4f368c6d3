// Package reduce sums a device-resident int32 array with data-parallel
// kernels launched on a paraalgo.Context.
//
// Three strategies share one contract and differ in their domain of
// correctness:
//
//   - AtomicReducer: every lane adds into one atomic accumulator. Exact for
//     any length.
//   - CompactingTreeReducer: pairwise sums followed by compaction of the
//     nonzero results into a dense prefix. Exact for any length.
//   - HalvingTreeReducer: buffer[i] += buffer[i+length/2] each round. Exact
//     only for power-of-two lengths unless configured with RemainderCarry.
//
// All arithmetic is int32 and wraps on overflow identically in every
// strategy, so results stay comparable with Sum even when the true total
// exceeds the int32 range.
//
// A Reducer is not safe for concurrent use; callers serialize calls.
package reduce

import (
	"fmt"
	"sort"

	"github.com/chunleili/paraAlgo"
)

// Strategy names accepted by New.
const (
	StrategyAtomic     = "atomic"
	StrategyCompacting = "compacting"
	StrategyHalving    = "halving"
	StrategySequential = "sequential"

	// StrategyHalvingCarry is the halving reducer with RemainderCarry.
	StrategyHalvingCarry = "halving-carry"
)

// Reducer produces the sum of a SourceArray.
type Reducer interface {
	// Name identifies the strategy in reports.
	Name() string
	// Reduce returns the sum of src. It fails only when the backend
	// cannot allocate, launch or complete a kernel, or when src does not
	// fit the reducer.
	Reduce(src *SourceArray) (int32, error)
	// Close releases scratch buffers owned by the reducer.
	Close() error
}

type factory func(ctx *paraalgo.Context, capacity int) (Reducer, error)

var registry = map[string]factory{
	StrategyAtomic: func(ctx *paraalgo.Context, _ int) (Reducer, error) {
		return NewAtomicReducer(ctx), nil
	},
	StrategyCompacting: func(ctx *paraalgo.Context, capacity int) (Reducer, error) {
		return checked(NewCompactingTreeReducer(ctx, capacity))
	},
	StrategyHalving: func(ctx *paraalgo.Context, capacity int) (Reducer, error) {
		return checked(NewHalvingTreeReducer(ctx, capacity))
	},
	StrategyHalvingCarry: func(ctx *paraalgo.Context, capacity int) (Reducer, error) {
		return checked(NewHalvingTreeReducer(ctx, capacity, WithRemainderPolicy(RemainderCarry)))
	},
	StrategySequential: func(ctx *paraalgo.Context, _ int) (Reducer, error) {
		return SequentialReducer{}, nil
	},
}

// checked keeps a failed constructor from yielding a non-nil Reducer that
// wraps a nil pointer.
func checked[R Reducer](r R, err error) (Reducer, error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}

// New builds the named strategy with scratch space for capacity elements.
func New(name string, ctx *paraalgo.Context, capacity int) (Reducer, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("reduce: unknown strategy %q (have %v)", name, Strategies())
	}
	return f(ctx, capacity)
}

// Strategies lists the names accepted by New in sorted order.
func Strategies() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sum is the sequential left-to-right reference sum with int32 wraparound.
func Sum(values []int32) int32 {
	var s int32
	for _, v := range values {
		s += v
	}
	return s
}

// SequentialReducer sums the device view on the calling goroutine. It is
// the baseline the parallel strategies are measured against.
type SequentialReducer struct{}

// Name implements Reducer.
func (SequentialReducer) Name() string { return StrategySequential }

// Reduce implements Reducer.
func (SequentialReducer) Reduce(src *SourceArray) (int32, error) {
	return Sum(src.data()), nil
}

// Close implements Reducer.
func (SequentialReducer) Close() error { return nil }

// wrap tags a backend failure with the strategy that hit it.
func wrap(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s reduce: %w", name, err)
}
