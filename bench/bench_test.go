package bench

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chunleili/paraAlgo"
	"github.com/chunleili/paraAlgo/reduce"
	"github.com/chunleili/paraAlgo/workload"
)

func TestRun(t *testing.T) {
	calls := 0
	res, err := Run("counter", 10, 5, func() (int32, error) {
		calls++
		time.Sleep(time.Millisecond)
		return int32(calls), nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if calls != 5 || res.Iterations != 5 {
		t.Errorf("calls = %d, iterations = %d", calls, res.Iterations)
	}
	if res.Sum != 5 {
		t.Errorf("Sum = %d, want last result 5", res.Sum)
	}
	if res.Total < 5*time.Millisecond || res.PerOp() < time.Millisecond {
		t.Errorf("Total = %v, PerOp = %v", res.Total, res.PerOp())
	}
	if res.ElementsPerSec() <= 0 {
		t.Errorf("ElementsPerSec = %v", res.ElementsPerSec())
	}

	res.Verify(5)
	if !res.Match || res.Status() != paraalgo.StatusPass {
		t.Errorf("Verify(5): match=%v status=%s", res.Match, res.Status())
	}
	res.Verify(6)
	if res.Match || res.Status() != paraalgo.StatusMismatch {
		t.Errorf("Verify(6): match=%v status=%s", res.Match, res.Status())
	}
	if !strings.Contains(res.String(), "counter spent time = ") || !strings.HasSuffix(res.String(), "sum = 5") {
		t.Errorf("String() = %q", res.String())
	}
}

func TestRunFailure(t *testing.T) {
	boom := errors.New("device lost")
	calls := 0
	res, err := Run("failing", 10, 5, func() (int32, error) {
		calls++
		if calls == 3 {
			return 0, boom
		}
		return 1, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if res.Iterations != 2 || calls != 3 {
		t.Errorf("iterations = %d, calls = %d", res.Iterations, calls)
	}
	res.Verify(1)
	if res.Match || res.Status() != paraalgo.StatusFail {
		t.Errorf("failed run reported match=%v status=%s", res.Match, res.Status())
	}

	rec := res.Record("hot")
	if rec.Error != "device lost" || rec.Status != paraalgo.StatusFail || rec.CacheCondition != "hot" {
		t.Errorf("Record = %+v", rec)
	}
	if !strings.Contains(res.String(), "failed: device lost") {
		t.Errorf("String() = %q", res.String())
	}
}

func TestRunRejectsZeroIterations(t *testing.T) {
	if _, err := Run("none", 1, 0, func() (int32, error) { return 0, nil }); err == nil {
		t.Error("expected error")
	}
	if (Result{}).PerOp() != 0 || (Result{}).ElementsPerSec() != 0 {
		t.Error("empty result should report zero rates")
	}
}

func TestRunReducers(t *testing.T) {
	ctx := paraalgo.NewTestContext(t)
	host, err := workload.Generate([]byte("bench"), 1<<12, paraalgo.DefaultValueLow, paraalgo.DefaultValueHigh)
	if err != nil {
		t.Fatal(err)
	}
	src, err := reduce.NewSourceArray(ctx, host)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Free()
	want := reduce.Sum(host)

	for _, name := range reduce.Strategies() {
		r, err := reduce.New(name, ctx, src.Len())
		if err != nil {
			t.Fatal(err)
		}
		res, err := Run(r.Name(), src.Len(), 3, func() (int32, error) { return r.Reduce(src) })
		r.Close()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		res.Verify(want)
		if !res.Match {
			t.Errorf("%s: sum %d, want %d", name, res.Sum, want)
		}

		rec := res.Record("hot")
		if rec.Status != paraalgo.StatusPass || rec.Elements != 1<<12 || rec.Iterations != 3 || rec.NsPerOp <= 0 {
			t.Errorf("%s: Record = %+v", name, rec)
		}
	}
}

func TestFlushCaches(t *testing.T) {
	if d := FlushCaches(1 << 20); d <= 0 {
		t.Errorf("FlushCaches took %v", d)
	}
}

func TestRunCounted(t *testing.T) {
	res, err := RunCounted("counted", 1000, 3, func() (int32, error) {
		var s int32
		for i := int32(0); i < 1000; i++ {
			s += i
		}
		return s, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Iterations != 3 || res.Sum != 499500 {
		t.Errorf("Iterations = %d, Sum = %d", res.Iterations, res.Sum)
	}
	if res.Counters == nil {
		t.Log("hardware counters unavailable; timing only")
		return
	}
	rec := res.Record("hot")
	if rec.Cycles != res.Counters.Cycles || rec.Instructions != res.Counters.Instructions {
		t.Errorf("Record dropped counters: %+v", rec)
	}
}

func TestCountersIPC(t *testing.T) {
	tests := []struct {
		c    Counters
		want float64
	}{
		{Counters{}, 0},
		{Counters{Cycles: 100, Instructions: 250}, 2.5},
		{Counters{Instructions: 10}, 0},
	}
	for _, tt := range tests {
		if got := tt.c.IPC(); got != tt.want {
			t.Errorf("%+v.IPC() = %v, want %v", tt.c, got, tt.want)
		}
	}
}
