package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chunleili/paraAlgo"
	"github.com/chunleili/paraAlgo/reduce"
	"github.com/chunleili/paraAlgo/webgpu"
)

func TestRunCPU(t *testing.T) {
	var out bytes.Buffer
	cfg := config{
		n:          1000,
		iterations: 2,
		seed:       "test",
		strategies: reduce.Strategies(),
		backend:    "cpu",
	}
	results, err := run(cfg, &out)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out.String())
	}
	if len(results) != len(cfg.strategies) {
		t.Fatalf("got %d results, want %d", len(results), len(cfg.strategies))
	}

	for _, r := range results {
		want := paraalgo.StatusPass
		// 1000 is not a power of two, so the plain halving tree drops values.
		if r.Name == reduce.StrategyHalving {
			want = paraalgo.StatusMismatch
		}
		if r.Status != want {
			t.Errorf("%s: status %s, want %s (sum %d, expected %d)", r.Name, r.Status, want, r.Sum, r.Expected)
		}
		if r.Backend != "cpu" || r.CacheCondition != "hot" || r.Elements != 1000 {
			t.Errorf("%s: record = %+v", r.Name, r)
		}
		if !strings.Contains(out.String(), r.Name+" spent time = ") {
			t.Errorf("output missing timing line for %s", r.Name)
		}
	}
}

func TestRunFailures(t *testing.T) {
	var out bytes.Buffer
	cfg := config{n: 16, iterations: 1, seed: "x", backend: "cpu", strategies: []string{"atomic", "bogus"}}
	results, err := run(cfg, &out)
	if err == nil {
		t.Fatal("unknown strategy should fail the run")
	}
	if len(results) != 2 || results[0].Status != paraalgo.StatusPass || results[1].Status != paraalgo.StatusFail {
		t.Errorf("results = %+v", results)
	}
	if !strings.Contains(out.String(), "bogus failed:") {
		t.Errorf("output = %q", out.String())
	}

	if _, err := run(config{n: 16, iterations: 1, backend: "tpu"}, &out); err == nil {
		t.Error("unknown backend should fail")
	}
	if _, err := run(config{n: 16, iterations: 0, backend: "cpu"}, &out); err == nil {
		t.Error("zero iterations should fail")
	}
	if !webgpu.Available() {
		if _, err := run(config{n: 16, iterations: 1, backend: "webgpu"}, &out); err == nil {
			t.Error("webgpu backend without a device should fail")
		}
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"atomic", []string{"atomic"}},
		{" atomic, halving ,,compacting", []string{"atomic", "halving", "compacting"}},
	}
	for _, tt := range tests {
		got := splitList(tt.in)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
