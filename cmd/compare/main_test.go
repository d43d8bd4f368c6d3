package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chunleili/paraAlgo"
)

func result(name string, ns float64, sum int32) paraalgo.BenchmarkResult {
	return paraalgo.BenchmarkResult{
		Name: name, Backend: "cpu", Status: paraalgo.StatusPass,
		Elements: 100, Sum: sum, Expected: 50, NsPerOp: ns,
	}
}

func TestCompareResults(t *testing.T) {
	failed := result("broken", 100, 0)
	failed.Status = paraalgo.StatusFail
	failed.Error = "out of memory"

	baseline := []paraalgo.BenchmarkResult{
		result("atomic", 100, 50),
		result("compacting", 100, 50),
		result("halving", 100, 40),
		result("gone", 100, 50),
		result("drift", 100, 50),
		result("broken", 100, 50),
	}
	current := []paraalgo.BenchmarkResult{
		result("atomic", 105, 50),
		result("compacting", 200, 50),
		result("halving", 50, 40),
		result("drift", 100, 51),
		failed,
	}

	want := map[string]string{
		"cpu/atomic":     statusPass,
		"cpu/compacting": statusSlower,
		"cpu/halving":    statusFaster,
		"cpu/gone":       statusFail,
		"cpu/drift":      statusFail,
		"cpu/broken":     statusFail,
	}

	comps := compareResults(baseline, current, 1.1)
	if len(comps) != len(want) {
		t.Fatalf("got %d comparisons, want %d", len(comps), len(want))
	}
	for _, c := range comps {
		if c.Status != want[c.Name] {
			t.Errorf("%s: status %s, want %s (%s)", c.Name, c.Status, want[c.Name], c.Message)
		}
	}

	var out bytes.Buffer
	printSummary(&out, comps)
	for _, s := range []string{"FAILURES:", "sum changed: 50 -> 51", "missing in current results", "2.00x slower"} {
		if !strings.Contains(out.String(), s) {
			t.Errorf("summary missing %q", s)
		}
	}
}

func TestKey(t *testing.T) {
	if got := key(paraalgo.BenchmarkResult{Name: "atomic"}); got != "atomic" {
		t.Errorf("key = %q", got)
	}
	if got := key(paraalgo.BenchmarkResult{Name: "atomic", Backend: "webgpu"}); got != "webgpu/atomic" {
		t.Errorf("key = %q", got)
	}
}
