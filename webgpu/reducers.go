//go:build webgpu

package webgpu

import (
	"fmt"
	"math/bits"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/chunleili/paraAlgo"
	"github.com/chunleili/paraAlgo/reduce"
)

// NewReducer builds the named strategy for sources up to capacity elements.
// The names match package reduce; the sequential strategy has no GPU form.
func NewReducer(name string, capacity int) (Reducer, error) {
	switch name {
	case reduce.StrategyAtomic:
		return checked(NewAtomicReducer())
	case reduce.StrategyCompacting:
		return checked(NewCompactingTreeReducer(capacity))
	case reduce.StrategyHalving:
		return checked(NewHalvingTreeReducer(capacity, reduce.RemainderDrop))
	case reduce.StrategyHalvingCarry:
		return checked(NewHalvingTreeReducer(capacity, reduce.RemainderCarry))
	}
	return nil, paraalgo.NewInvalidArgError("webgpu.NewReducer", fmt.Sprintf("unknown strategy %q", name))
}

func checked[R Reducer](r R, err error) (Reducer, error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}

// firstElement reads src[0] for single-element sources.
func firstElement(src *Source) (int32, error) {
	v, err := readInt32(src.buf, 0, 1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

func checkCapacity(name string, n, capacity int) error {
	if n > capacity {
		return fmt.Errorf("%s reduce: %w", name, paraalgo.NewInvalidArgError("Reduce",
			fmt.Sprintf("source of %d elements exceeds capacity %d", n, capacity)))
	}
	return nil
}

// AtomicReducer adds every element into one atomic<i32> accumulator.
type AtomicReducer struct {
	c        *Context
	pipeline *wgpu.ComputePipeline
	acc      *wgpu.Buffer
	params   *wgpu.Buffer
}

func NewAtomicReducer() (*AtomicReducer, error) {
	c, err := GetContext()
	if err != nil {
		return nil, err
	}
	r := &AtomicReducer{c: c}
	if r.pipeline, err = compile(c, "AtomicSum", atomicSumWGSL); err != nil {
		return nil, err
	}
	if r.acc, err = newInt32Buffer("Accumulator", nil, 1); err != nil {
		r.Close()
		return nil, err
	}
	if r.params, err = newParamsBuffer("AtomicParams"); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *AtomicReducer) Name() string { return reduce.StrategyAtomic }

func (r *AtomicReducer) Reduce(src *Source) (int32, error) {
	n := src.Len()
	if n == 0 {
		return 0, nil
	}

	bg, err := bind(r.c, "AtomicSum", r.pipeline, src.buf, r.acc, r.params)
	if err != nil {
		return 0, err
	}
	defer bg.Release()

	r.c.Queue.WriteBuffer(r.acc, 0, wgpu.ToBytes([]int32{0}))
	writeParams(r.c, r.params, uint32(n), 0, 0)
	if err := submit(r.c, func(enc *wgpu.CommandEncoder) {
		dispatch(enc, r.pipeline, bg, n)
	}); err != nil {
		return 0, err
	}

	v, err := readInt32(r.acc, 0, 1)
	if err != nil {
		return 0, fmt.Errorf("%s reduce: %w", r.Name(), err)
	}
	return v[0], nil
}

func (r *AtomicReducer) Close() error {
	if r.pipeline != nil {
		r.pipeline.Release()
		r.pipeline = nil
	}
	destroy(&r.acc, &r.params)
	return nil
}

// CompactingTreeReducer runs fill, pair-sum, compact and copy-back as one
// submission per round, then reads the compaction counter to learn the next
// round's length.
type CompactingTreeReducer struct {
	c        *Context
	capacity int
	rounds   int

	fill, pair, pack *wgpu.ComputePipeline

	buffer, reduced, packed *wgpu.Buffer
	counter, params         *wgpu.Buffer

	fillBG, pairBG, packBG *wgpu.BindGroup
}

func NewCompactingTreeReducer(capacity int) (*CompactingTreeReducer, error) {
	c, err := GetContext()
	if err != nil {
		return nil, err
	}
	r := &CompactingTreeReducer{c: c, capacity: capacity}
	if err := r.init(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *CompactingTreeReducer) init() error {
	var err error
	if r.fill, err = compile(r.c, "FillZero", fillZeroWGSL); err != nil {
		return err
	}
	if r.pair, err = compile(r.c, "PairSum", pairSumWGSL); err != nil {
		return err
	}
	if r.pack, err = compile(r.c, "Compact", compactWGSL); err != nil {
		return err
	}

	if r.buffer, err = newInt32Buffer("Buffer", nil, r.capacity); err != nil {
		return err
	}
	if r.reduced, err = newInt32Buffer("Reduced", nil, r.capacity); err != nil {
		return err
	}
	if r.packed, err = newInt32Buffer("Compact", nil, r.capacity); err != nil {
		return err
	}
	if r.counter, err = newInt32Buffer("Counter", nil, 1); err != nil {
		return err
	}
	if r.params, err = newParamsBuffer("CompactParams"); err != nil {
		return err
	}

	if r.fillBG, err = bind(r.c, "FillZero", r.fill, r.reduced, r.params); err != nil {
		return err
	}
	if r.pairBG, err = bind(r.c, "PairSum", r.pair, r.buffer, r.reduced, r.params); err != nil {
		return err
	}
	r.packBG, err = bind(r.c, "Compact", r.pack, r.reduced, r.packed, r.counter, r.params)
	return err
}

func (r *CompactingTreeReducer) Name() string { return reduce.StrategyCompacting }

// Rounds returns the number of rounds the last Reduce ran.
func (r *CompactingTreeReducer) Rounds() int { return r.rounds }

func (r *CompactingTreeReducer) Reduce(src *Source) (int32, error) {
	length := src.Len()
	if err := checkCapacity(r.Name(), length, r.capacity); err != nil {
		return 0, err
	}
	r.rounds = 0
	switch length {
	case 0:
		return 0, nil
	case 1:
		return firstElement(src)
	}

	firstBG, err := bind(r.c, "PairSumSource", r.pair, src.buf, r.reduced, r.params)
	if err != nil {
		return 0, err
	}
	defer firstBG.Release()

	pairBG := firstBG
	for length > 1 {
		n, err := r.round(pairBG, length)
		if err != nil {
			return 0, fmt.Errorf("%s reduce: %w", r.Name(), err)
		}
		if n >= length {
			return 0, fmt.Errorf("%s reduce: %w", r.Name(), paraalgo.NewExecutionError("Reduce",
				fmt.Sprintf("round %d did not shrink %d elements", r.rounds, length), nil))
		}
		length = n
		pairBG = r.pairBG
	}
	if length == 0 {
		return 0, nil
	}

	v, err := readInt32(r.buffer, 0, 1)
	if err != nil {
		return 0, fmt.Errorf("%s reduce: %w", r.Name(), err)
	}
	return v[0], nil
}

// round reduces length elements and returns how many survived compaction.
func (r *CompactingTreeReducer) round(pairBG *wgpu.BindGroup, length int) (int, error) {
	r.rounds++
	r.c.Queue.WriteBuffer(r.counter, 0, wgpu.ToBytes([]uint32{0}))
	writeParams(r.c, r.params, uint32(length), 0, 0)

	err := submit(r.c, func(enc *wgpu.CommandEncoder) {
		dispatch(enc, r.fill, r.fillBG, length)
		dispatch(enc, r.pair, pairBG, length)
		dispatch(enc, r.pack, r.packBG, length)
		enc.CopyBufferToBuffer(r.packed, 0, r.buffer, 0, uint64(length*4))
	})
	if err != nil {
		return 0, err
	}

	count, err := readInt32(r.counter, 0, 1)
	if err != nil {
		return 0, err
	}
	return int(uint32(count[0])), nil
}

func (r *CompactingTreeReducer) Close() error {
	for _, bg := range []**wgpu.BindGroup{&r.fillBG, &r.pairBG, &r.packBG} {
		if *bg != nil {
			(*bg).Release()
			*bg = nil
		}
	}
	for _, p := range []**wgpu.ComputePipeline{&r.fill, &r.pair, &r.pack} {
		if *p != nil {
			(*p).Release()
			*p = nil
		}
	}
	destroy(&r.buffer, &r.reduced, &r.packed, &r.counter, &r.params)
	return nil
}

// HalvingTreeReducer halves the live length every round. The first round
// reads the source into the scratch buffer; later rounds work in place.
type HalvingTreeReducer struct {
	c        *Context
	capacity int
	policy   reduce.RemainderPolicy
	rounds   int

	first, step *wgpu.ComputePipeline
	buffer      *wgpu.Buffer
	params      *wgpu.Buffer
	stepBG      *wgpu.BindGroup
}

func NewHalvingTreeReducer(capacity int, policy reduce.RemainderPolicy) (*HalvingTreeReducer, error) {
	c, err := GetContext()
	if err != nil {
		return nil, err
	}
	r := &HalvingTreeReducer{c: c, capacity: capacity, policy: policy}
	if err := r.init(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *HalvingTreeReducer) init() error {
	var err error
	if r.first, err = compile(r.c, "HalvingFirst", halvingFirstWGSL); err != nil {
		return err
	}
	if r.step, err = compile(r.c, "HalvingStep", halvingStepWGSL); err != nil {
		return err
	}
	if r.buffer, err = newInt32Buffer("HalvingBuffer", nil, r.capacity); err != nil {
		return err
	}
	if r.params, err = newParamsBuffer("HalvingParams"); err != nil {
		return err
	}
	r.stepBG, err = bind(r.c, "HalvingStep", r.step, r.buffer, r.params)
	return err
}

func (r *HalvingTreeReducer) Name() string {
	if r.policy == reduce.RemainderDrop {
		return reduce.StrategyHalving
	}
	return reduce.StrategyHalving + "-" + r.policy.String()
}

// Rounds returns the number of rounds the last Reduce ran.
func (r *HalvingTreeReducer) Rounds() int { return r.rounds }

func (r *HalvingTreeReducer) Reduce(src *Source) (int32, error) {
	length := src.Len()
	if err := checkCapacity(r.Name(), length, r.capacity); err != nil {
		return 0, err
	}
	if r.policy == reduce.RemainderReject && length > 0 && bits.OnesCount(uint(length)) != 1 {
		return 0, fmt.Errorf("%s reduce: %w: %d", r.Name(), reduce.ErrNotPowerOfTwo, length)
	}
	r.rounds = 0
	switch length {
	case 0:
		return 0, nil
	case 1:
		return firstElement(src)
	}

	firstBG, err := bind(r.c, "HalvingFirst", r.first, src.buf, r.buffer, r.params)
	if err != nil {
		return 0, err
	}
	defer firstBG.Release()

	pipeline, bg := r.first, firstBG
	for length > 1 {
		r.rounds++
		half := length / 2
		var carry uint32
		if r.policy == reduce.RemainderCarry && length%2 != 0 {
			carry = 1
		}
		writeParams(r.c, r.params, uint32(length), uint32(half), carry)
		err := submit(r.c, func(enc *wgpu.CommandEncoder) {
			dispatch(enc, pipeline, bg, half)
		})
		if err != nil {
			return 0, fmt.Errorf("%s reduce: %w", r.Name(), err)
		}
		length = half
		pipeline, bg = r.step, r.stepBG
	}

	v, err := readInt32(r.buffer, 0, 1)
	if err != nil {
		return 0, fmt.Errorf("%s reduce: %w", r.Name(), err)
	}
	return v[0], nil
}

func (r *HalvingTreeReducer) Close() error {
	if r.stepBG != nil {
		r.stepBG.Release()
		r.stepBG = nil
	}
	for _, p := range []**wgpu.ComputePipeline{&r.first, &r.step} {
		if *p != nil {
			(*p).Release()
			*p = nil
		}
	}
	destroy(&r.buffer, &r.params)
	return nil
}

func destroy(bufs ...**wgpu.Buffer) {
	for _, b := range bufs {
		if *b != nil {
			(*b).Destroy()
			*b = nil
		}
	}
}
