package reduce

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/chunleili/paraAlgo"
	"github.com/chunleili/paraAlgo/workload"
)

// newReducers builds every parallel strategy with room for capacity
// elements. The reducers are closed when the test ends.
func newReducers(t testing.TB, ctx *paraalgo.Context, capacity int) (*AtomicReducer, *CompactingTreeReducer, *HalvingTreeReducer) {
	t.Helper()
	atomic := NewAtomicReducer(ctx)
	compacting, err := NewCompactingTreeReducer(ctx, capacity)
	if err != nil {
		t.Fatalf("NewCompactingTreeReducer(%d): %v", capacity, err)
	}
	halving, err := NewHalvingTreeReducer(ctx, capacity)
	if err != nil {
		t.Fatalf("NewHalvingTreeReducer(%d): %v", capacity, err)
	}
	t.Cleanup(func() {
		compacting.Close()
		halving.Close()
	})
	return atomic, compacting, halving
}

func sourceOrFail(t testing.TB, ctx *paraalgo.Context, host []int32) *SourceArray {
	t.Helper()
	src, err := NewSourceArray(ctx, host)
	if err != nil {
		t.Fatalf("NewSourceArray(%d): %v", len(host), err)
	}
	t.Cleanup(func() { src.Free() })
	return src
}

func reduceOrFail(t testing.TB, r Reducer, src *SourceArray) int32 {
	t.Helper()
	got, err := r.Reduce(src)
	if err != nil {
		t.Fatalf("%s: Reduce failed: %v", r.Name(), err)
	}
	return got
}

func randomPositive(rng *rand.Rand, n int) []int32 {
	s := make([]int32, n)
	for i := range s {
		s[i] = int32(rng.Intn(paraalgo.DefaultValueHigh-paraalgo.DefaultValueLow) + paraalgo.DefaultValueLow)
	}
	return s
}

func TestSum(t *testing.T) {
	cases := []struct {
		name  string
		input []int32
		want  int32
	}{
		{"empty", nil, 0},
		{"single", []int32{7}, 7},
		{"sequence", workload.Sequence(8), 36},
		{"mixed", []int32{-1, 2, -3, 4, -5}, -3},
		{"wraps", []int32{2147483647, 1}, -2147483648},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sum(tc.input); got != tc.want {
				t.Errorf("Sum(%v) = %d, want %d", tc.input, got, tc.want)
			}
		})
	}
}

func TestScenarios(t *testing.T) {
	ctx := paraalgo.NewTestContext(t)

	cases := []struct {
		name       string
		input      []int32
		want       int32
		wantHalved int32 // HalvingTreeReducer with RemainderDrop
	}{
		{"empty", []int32{}, 0, 0},
		{"single", []int32{42}, 42, 42},
		{"pair", []int32{3, 4}, 7, 7},
		{"power of two", []int32{1, 2, 3, 4, 5, 6, 7, 8}, 36, 36},
		{"odd length drops last", []int32{1, 2, 3, 4, 5}, 15, 10},
		{"three", []int32{1, 2, 3}, 6, 3},
		{"zero inside", []int32{5, 0, 3, 2}, 10, 10},
		{"zero-sum pair", []int32{0, 0, 5, 5}, 10, 10},
		{"all zero", []int32{0, 0, 0, 0}, 0, 0},
		{"nested zero-sum pairs", []int32{0, 0, 0, 0, 0, 0, 9, 1}, 10, 10},
		{"negative cancels", []int32{5, -5, 3, 4}, 7, 7},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			atomic, compacting, halving := newReducers(t, ctx, len(tc.input))
			src := sourceOrFail(t, ctx, tc.input)

			if got := reduceOrFail(t, atomic, src); got != tc.want {
				t.Errorf("atomic = %d, want %d", got, tc.want)
			}
			if got := reduceOrFail(t, compacting, src); got != tc.want {
				t.Errorf("compacting = %d, want %d", got, tc.want)
			}
			if got := reduceOrFail(t, halving, src); got != tc.wantHalved {
				t.Errorf("halving = %d, want %d", got, tc.wantHalved)
			}
			if got := reduceOrFail(t, SequentialReducer{}, src); got != tc.want {
				t.Errorf("sequential = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestPowerOfTwoLengthsAgree(t *testing.T) {
	ctx := paraalgo.NewTestContext(t)
	rng := rand.New(rand.NewSource(1))

	for _, n := range []int{1, 2, 4, 16, 256, 1024, 1 << 16} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			host := randomPositive(rng, n)
			want := Sum(host)

			atomic, compacting, halving := newReducers(t, ctx, n)
			src := sourceOrFail(t, ctx, host)

			for _, r := range []Reducer{atomic, compacting, halving} {
				if got := reduceOrFail(t, r, src); got != want {
					t.Errorf("%s = %d, want %d", r.Name(), got, want)
				}
			}
		})
	}
}

func TestIrregularLengths(t *testing.T) {
	ctx := paraalgo.NewTestContext(t)
	rng := rand.New(rand.NewSource(2))

	for _, n := range []int{3, 5, 7, 100, 257, 1000, 4097, 100003} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			host := randomPositive(rng, n)
			want := Sum(host)

			atomic, compacting, halving := newReducers(t, ctx, n)
			carry, err := NewHalvingTreeReducer(ctx, n, WithRemainderPolicy(RemainderCarry))
			if err != nil {
				t.Fatal(err)
			}
			defer carry.Close()
			src := sourceOrFail(t, ctx, host)

			for _, r := range []Reducer{atomic, compacting, carry} {
				if got := reduceOrFail(t, r, src); got != want {
					t.Errorf("%s = %d, want %d", r.Name(), got, want)
				}
			}

			// Dropping the odd remainder loses strictly positive values,
			// so the halving result must come out short.
			if got := reduceOrFail(t, halving, src); got >= want {
				t.Errorf("halving = %d, expected less than %d for non-power-of-two length", got, want)
			}
		})
	}
}

func TestIdempotence(t *testing.T) {
	ctx := paraalgo.NewTestContext(t)
	rng := rand.New(rand.NewSource(3))

	for _, n := range []int{1024, 1023} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			host := randomPositive(rng, n)
			atomic, compacting, halving := newReducers(t, ctx, n)
			src := sourceOrFail(t, ctx, host)

			for _, r := range []Reducer{atomic, compacting, halving} {
				first := reduceOrFail(t, r, src)
				second := reduceOrFail(t, r, src)
				if first != second {
					t.Errorf("%s: first call %d, second call %d", r.Name(), first, second)
				}
			}

			// The source must come through untouched
			after := make([]int32, n)
			if err := src.CopyToHost(after); err != nil {
				t.Fatal(err)
			}
			for i := range host {
				if after[i] != host[i] {
					t.Fatalf("source modified at %d: %d != %d", i, after[i], host[i])
				}
			}
		})
	}
}

func TestOverflowWrapsConsistently(t *testing.T) {
	ctx := paraalgo.NewTestContext(t)

	host := make([]int32, 1<<12)
	for i := range host {
		host[i] = 1 << 30
	}
	want := Sum(host)

	atomic, compacting, halving := newReducers(t, ctx, len(host))
	src := sourceOrFail(t, ctx, host)

	for _, r := range []Reducer{atomic, compacting, halving} {
		if got := reduceOrFail(t, r, src); got != want {
			t.Errorf("%s = %d, want wrapped %d", r.Name(), got, want)
		}
	}
}

func TestCompactingRoundsShrink(t *testing.T) {
	ctx := paraalgo.NewTestContext(t)
	_, compacting, halving := newReducers(t, ctx, 1<<10)
	src := sourceOrFail(t, ctx, workload.Sequence(1<<10))

	reduceOrFail(t, compacting, src)
	if got := compacting.Rounds(); got != 10 {
		t.Errorf("compacting rounds = %d, want 10", got)
	}
	reduceOrFail(t, halving, src)
	if got := halving.Rounds(); got != 10 {
		t.Errorf("halving rounds = %d, want 10", got)
	}
}

// The slot counter is reset at the start of every round, so a large
// reduction followed by a small one leaves no stale slots behind.
func TestCompactingReuse(t *testing.T) {
	ctx := paraalgo.NewTestContext(t)
	_, compacting, _ := newReducers(t, ctx, 1<<12)

	for _, n := range []int{1 << 12, 3, 1000, 1, 1<<12 - 1} {
		data := workload.Sequence(n)
		if got, want := reduceOrFail(t, compacting, sourceOrFail(t, ctx, data)), Sum(data); got != want {
			t.Errorf("n=%d: got %d, want %d", n, got, want)
		}
	}
}

func TestHalvingReject(t *testing.T) {
	ctx := paraalgo.NewTestContext(t)
	r, err := NewHalvingTreeReducer(ctx, 8, WithRemainderPolicy(RemainderReject))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if r.Name() != "halving-reject" {
		t.Errorf("Name() = %q", r.Name())
	}

	_, err = r.Reduce(sourceOrFail(t, ctx, []int32{1, 2, 3, 4, 5}))
	if !errors.Is(err, ErrNotPowerOfTwo) {
		t.Fatalf("expected ErrNotPowerOfTwo, got %v", err)
	}
	if !paraalgo.IsInvalidArgError(err) {
		t.Errorf("expected invalid argument error, got %v", err)
	}
	if r.Rounds() != 0 {
		t.Errorf("rejected source ran %d rounds", r.Rounds())
	}

	if got := reduceOrFail(t, r, sourceOrFail(t, ctx, workload.Sequence(8))); got != 36 {
		t.Errorf("power of two = %d, want 36", got)
	}
	if got := reduceOrFail(t, r, sourceOrFail(t, ctx, []int32{})); got != 0 {
		t.Errorf("empty = %d, want 0", got)
	}
}

func TestCapacityExceeded(t *testing.T) {
	ctx := paraalgo.NewTestContext(t)
	_, compacting, halving := newReducers(t, ctx, 4)
	src := sourceOrFail(t, ctx, workload.Sequence(5))

	for _, r := range []Reducer{compacting, halving} {
		if _, err := r.Reduce(src); !paraalgo.IsInvalidArgError(err) {
			t.Errorf("%s: expected invalid argument error, got %v", r.Name(), err)
		}
	}
}

func TestBackendFailure(t *testing.T) {
	ctx := paraalgo.NewTestContext(t, paraalgo.WithMemoryLimit(1024))

	if _, err := NewCompactingTreeReducer(ctx, 1<<20); !paraalgo.IsMemoryError(err) {
		t.Errorf("compacting: expected memory error, got %v", err)
	}
	if _, err := NewHalvingTreeReducer(ctx, 1<<20); !paraalgo.IsMemoryError(err) {
		t.Errorf("halving: expected memory error, got %v", err)
	}
	if _, err := New(StrategyCompacting, ctx, 1<<20); err == nil {
		t.Error("New: expected error")
	}
	if allocated, _ := ctx.MemoryStats(); allocated != 0 {
		t.Errorf("failed constructors leaked %d bytes", allocated)
	}
}

func TestNew(t *testing.T) {
	ctx := paraalgo.NewTestContext(t)
	src := sourceOrFail(t, ctx, workload.Sequence(8))

	for _, name := range Strategies() {
		t.Run(name, func(t *testing.T) {
			r, err := New(name, ctx, src.Len())
			if err != nil {
				t.Fatal(err)
			}
			defer r.Close()

			if r.Name() != name {
				t.Errorf("Name() = %q, want %q", r.Name(), name)
			}
			if got := reduceOrFail(t, r, src); got != 36 {
				t.Errorf("Reduce = %d, want 36", got)
			}
		})
	}

	if _, err := New("bogus", ctx, 8); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestRemainderPolicyString(t *testing.T) {
	for p, want := range map[RemainderPolicy]string{
		RemainderDrop:       "drop",
		RemainderReject:     "reject",
		RemainderCarry:      "carry",
		RemainderPolicy(42): "RemainderPolicy(42)",
	} {
		if got := p.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
