package reduce

import (
	"fmt"
	"math/bits"

	"github.com/chunleili/paraAlgo"
)

// RemainderPolicy decides what HalvingTreeReducer does with the element
// left over when a round's length is odd.
type RemainderPolicy int

const (
	// RemainderDrop ignores the leftover element. Results are exact only
	// for power-of-two lengths; other lengths silently lose values.
	RemainderDrop RemainderPolicy = iota
	// RemainderReject fails any source whose length is not a power of two
	// before a kernel is launched.
	RemainderReject
	// RemainderCarry folds the leftover element into slot 0 during the
	// same round, which makes the result exact for every length.
	RemainderCarry
)

func (p RemainderPolicy) String() string {
	switch p {
	case RemainderDrop:
		return "drop"
	case RemainderReject:
		return "reject"
	case RemainderCarry:
		return "carry"
	default:
		return fmt.Sprintf("RemainderPolicy(%d)", int(p))
	}
}

// ErrNotPowerOfTwo is returned under RemainderReject.
var ErrNotPowerOfTwo = paraalgo.NewInvalidArgError("HalvingTreeReducer", "source length is not a power of two")

// HalvingOption configures a HalvingTreeReducer.
type HalvingOption func(*HalvingTreeReducer)

// WithRemainderPolicy selects how odd round lengths are handled.
func WithRemainderPolicy(p RemainderPolicy) HalvingOption {
	return func(r *HalvingTreeReducer) {
		r.policy = p
	}
}

// HalvingTreeReducer sums in log2(N) rounds: every round, lane i adds
// buffer[i+length/2] into buffer[i] and the length halves. Nothing is
// compacted, so each round is a single memory-bound pass. The first round
// reads the source directly into the scratch buffer.
type HalvingTreeReducer struct {
	ctx    *paraalgo.Context
	buffer *paraalgo.Int32Array
	policy RemainderPolicy
	rounds int
}

// NewHalvingTreeReducer allocates one scratch buffer of capacity elements.
// The default policy is RemainderDrop.
func NewHalvingTreeReducer(ctx *paraalgo.Context, capacity int, opts ...HalvingOption) (*HalvingTreeReducer, error) {
	r := &HalvingTreeReducer{ctx: ctx}
	for _, opt := range opts {
		opt(r)
	}

	buffer, err := paraalgo.NewInt32Array(ctx, capacity)
	if err != nil {
		return nil, wrap(r.Name(), err)
	}
	r.buffer = buffer
	return r, nil
}

// Name implements Reducer.
func (r *HalvingTreeReducer) Name() string {
	if r.policy == RemainderDrop {
		return StrategyHalving
	}
	return StrategyHalving + "-" + r.policy.String()
}

// Policy returns the configured remainder policy.
func (r *HalvingTreeReducer) Policy() RemainderPolicy { return r.policy }

// Capacity returns the largest source length Reduce accepts.
func (r *HalvingTreeReducer) Capacity() int { return r.buffer.Len() }

// Rounds returns the number of rounds the last Reduce ran.
func (r *HalvingTreeReducer) Rounds() int { return r.rounds }

// Reduce implements Reducer.
func (r *HalvingTreeReducer) Reduce(src *SourceArray) (int32, error) {
	length := src.Len()
	if length > r.Capacity() {
		return 0, wrap(r.Name(), paraalgo.NewInvalidArgError("Reduce",
			fmt.Sprintf("source of %d elements exceeds capacity %d", length, r.Capacity())))
	}
	if r.policy == RemainderReject && length > 0 && bits.OnesCount(uint(length)) != 1 {
		return 0, wrap(r.Name(), fmt.Errorf("%w: %d", ErrNotPowerOfTwo, length))
	}

	r.rounds = 0
	in := src.data()
	switch length {
	case 0:
		return 0, nil
	case 1:
		return in[0], nil
	}

	buf := r.buffer.Data()
	for length > 1 {
		if err := r.round(in, buf, length); err != nil {
			return 0, wrap(r.Name(), err)
		}
		length /= 2
		in = buf
	}
	return buf[0], nil
}

// round writes out[i] = in[i] + in[i+half] for i < half. in and out may be
// the same slice: lanes read only from [half, length) and index i, and
// write only index i.
func (r *HalvingTreeReducer) round(in, out []int32, length int) error {
	r.rounds++
	half := length / 2
	carry := r.policy == RemainderCarry && length%2 != 0

	return r.ctx.ParallelFor(half, func(i int) {
		v := in[i] + in[i+half]
		if carry && i == 0 {
			v += in[length-1]
		}
		out[i] = v
	})
}

// Close implements Reducer.
func (r *HalvingTreeReducer) Close() error {
	if r.buffer == nil {
		return nil
	}
	return r.buffer.Free()
}
