package reduce

import (
	"fmt"

	"github.com/chunleili/paraAlgo"
)

// CompactingTreeReducer sums by repeated pairwise addition. Each round
// writes the pair sums into a reset scratch buffer, then packs the nonzero
// sums into a dense prefix whose size becomes the next round's length.
// Because an unpaired last element is carried over, it is exact for any
// input length.
//
// Compaction treats a zero sum as an empty slot and drops it. Dropping a
// zero never changes an integer sum, but it does mean the intermediate
// buffers cannot tell "summed to zero" from "unused".
type CompactingTreeReducer struct {
	ctx *paraalgo.Context

	buffer  *paraalgo.Int32Array // working input from round 2 on
	reduced *paraalgo.Int32Array // pair sums, sparse at even indices
	compact *paraalgo.Int32Array // dense prefix of nonzero pair sums
	count   paraalgo.AtomicInt32 // next free slot in compact

	rounds int
}

// NewCompactingTreeReducer allocates three scratch buffers of capacity
// elements each. Sources longer than capacity are rejected by Reduce.
func NewCompactingTreeReducer(ctx *paraalgo.Context, capacity int) (*CompactingTreeReducer, error) {
	r := &CompactingTreeReducer{ctx: ctx}

	var err error
	if r.buffer, err = paraalgo.NewInt32Array(ctx, capacity); err != nil {
		return nil, wrap(r.Name(), err)
	}
	if r.reduced, err = paraalgo.NewInt32Array(ctx, capacity); err != nil {
		r.Close()
		return nil, wrap(r.Name(), err)
	}
	if r.compact, err = paraalgo.NewInt32Array(ctx, capacity); err != nil {
		r.Close()
		return nil, wrap(r.Name(), err)
	}
	return r, nil
}

// Name implements Reducer.
func (r *CompactingTreeReducer) Name() string { return StrategyCompacting }

// Capacity returns the largest source length Reduce accepts.
func (r *CompactingTreeReducer) Capacity() int { return r.buffer.Len() }

// Rounds returns the number of rounds the last Reduce ran.
func (r *CompactingTreeReducer) Rounds() int { return r.rounds }

// Reduce implements Reducer.
func (r *CompactingTreeReducer) Reduce(src *SourceArray) (int32, error) {
	length := src.Len()
	if length > r.Capacity() {
		return 0, wrap(r.Name(), paraalgo.NewInvalidArgError("Reduce",
			fmt.Sprintf("source of %d elements exceeds capacity %d", length, r.Capacity())))
	}

	r.rounds = 0
	in := src.data()
	for length > 1 {
		n, err := r.round(in, length)
		if err != nil {
			return 0, wrap(r.Name(), err)
		}
		if n >= length {
			return 0, wrap(r.Name(), paraalgo.NewExecutionError("Reduce",
				fmt.Sprintf("round %d did not shrink length %d (got %d)", r.rounds, length, n), nil))
		}
		length = n
		in = r.buffer.Data()
	}

	// Compaction can leave nothing behind when every pair summed to zero
	if length == 0 {
		return 0, nil
	}
	return in[0], nil
}

// round runs one reset, pair-sum, compact and copy pass over in[0:length)
// and returns the number of elements left in r.buffer.
func (r *CompactingTreeReducer) round(in []int32, length int) (int, error) {
	r.rounds++

	if err := r.reduced.Fill(0, length); err != nil {
		return 0, err
	}

	reduced := r.reduced.Data()
	err := r.ctx.ParallelFor(length, func(i int) {
		if i%2 != 0 {
			return
		}
		if i+1 < length {
			reduced[i] = in[i] + in[i+1]
		} else {
			reduced[i] = in[i]
		}
	})
	if err != nil {
		return 0, err
	}

	r.count.Store(0)
	compact := r.compact.Data()
	err = r.ctx.ParallelFor(length, func(i int) {
		if v := reduced[i]; v != 0 {
			compact[r.count.Add(1)] = v
		}
	})
	if err != nil {
		return 0, err
	}

	n := int(r.count.Load())
	if err := r.buffer.CopyFrom(r.compact, n); err != nil {
		return 0, err
	}
	return n, nil
}

// Close implements Reducer.
func (r *CompactingTreeReducer) Close() error {
	var first error
	for _, a := range []*paraalgo.Int32Array{r.buffer, r.reduced, r.compact} {
		if a == nil {
			continue
		}
		if err := a.Free(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
