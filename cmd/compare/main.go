// Copyright ©2024 The paraAlgo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command compare compares a reduce-bench session log against a baseline
// session.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/chunleili/paraAlgo"
)

// Comparison statuses.
const (
	statusPass   = "PASS"
	statusFail   = "FAIL"
	statusSlower = "SLOWER"
	statusFaster = "FASTER"
)

type comparisonResult struct {
	Name   string
	Status string

	BaselineNsPerOp float64
	CurrentNsPerOp  float64
	SpeedupFactor   float64

	BaselineSum int32
	CurrentSum  int32
	Message     string
}

func main() {
	var (
		baselineFile = flag.String("baseline", "baseline.json", "Baseline session log")
		currentFile  = flag.String("current", "", "Current session log (default: latest in benchmark_logs)")
		perfRegress  = flag.Float64("perf-regress", 1.1, "Performance regression threshold (1.1 = 10% slower)")
	)
	flag.Parse()

	if *currentFile == "" {
		latest, err := paraalgo.GetLatestLogFile()
		if err != nil {
			log.Fatalf("No current results: %v", err)
		}
		*currentFile = latest
	}

	baseline, err := paraalgo.LoadBenchmarkResults(*baselineFile)
	if err != nil {
		log.Fatalf("Failed to load baseline: %v", err)
	}
	current, err := paraalgo.LoadBenchmarkResults(*currentFile)
	if err != nil {
		log.Fatalf("Failed to load current results: %v", err)
	}

	comparisons := compareResults(baseline, current, *perfRegress)
	printSummary(os.Stdout, comparisons)

	for _, comp := range comparisons {
		if comp.Status == statusFail || comp.Status == statusSlower {
			os.Exit(1)
		}
	}
}

// compareResults pairs results by strategy name and backend. A missing
// strategy, a failed run, or a sum that disagrees with the baseline is a
// failure.
func compareResults(baseline, current []paraalgo.BenchmarkResult, perfRegress float64) []comparisonResult {
	currentMap := make(map[string]paraalgo.BenchmarkResult)
	for _, result := range current {
		currentMap[key(result)] = result
	}

	comparisons := make([]comparisonResult, 0, len(baseline))
	for _, base := range baseline {
		comp := comparisonResult{
			Name:            key(base),
			BaselineNsPerOp: base.NsPerOp,
			BaselineSum:     base.Sum,
		}

		curr, exists := currentMap[key(base)]
		if !exists {
			comp.Status = statusFail
			comp.Message = "missing in current results"
			comparisons = append(comparisons, comp)
			continue
		}
		comp.CurrentNsPerOp = curr.NsPerOp
		comp.CurrentSum = curr.Sum

		switch {
		case curr.Status == paraalgo.StatusFail:
			comp.Status = statusFail
			comp.Message = "run failed: " + curr.Error
		case base.Status == paraalgo.StatusFail:
			comp.Status = statusPass
			comp.Message = "baseline run failed"
		case base.Elements != curr.Elements || base.Expected != curr.Expected:
			comp.Status = statusFail
			comp.Message = fmt.Sprintf("workload differs: %d/%d elements, expected %d/%d",
				base.Elements, curr.Elements, base.Expected, curr.Expected)
		case base.Sum != curr.Sum:
			comp.Status = statusFail
			comp.Message = fmt.Sprintf("sum changed: %d -> %d", base.Sum, curr.Sum)
		}
		if comp.Status != "" {
			comparisons = append(comparisons, comp)
			continue
		}

		if curr.NsPerOp > 0 {
			comp.SpeedupFactor = base.NsPerOp / curr.NsPerOp
		}
		switch {
		case comp.SpeedupFactor > 0 && comp.SpeedupFactor < 1.0/perfRegress:
			comp.Status = statusSlower
			comp.Message = fmt.Sprintf("Performance regression: %.2fx slower", 1.0/comp.SpeedupFactor)
		case comp.SpeedupFactor > 1.2:
			comp.Status = statusFaster
			comp.Message = fmt.Sprintf("Performance improvement: %.2fx faster", comp.SpeedupFactor)
		default:
			comp.Status = statusPass
		}
		comparisons = append(comparisons, comp)
	}
	return comparisons
}

func key(r paraalgo.BenchmarkResult) string {
	if r.Backend == "" {
		return r.Name
	}
	return r.Backend + "/" + r.Name
}

func printSummary(w io.Writer, comparisons []comparisonResult) {
	fmt.Fprintln(w, "=== Reduction Benchmark Comparison ===")
	fmt.Fprintln(w)

	statusCount := make(map[string]int)
	for _, comp := range comparisons {
		statusCount[comp.Status]++
	}

	fmt.Fprintf(w, "Total: %d\n", len(comparisons))
	for _, s := range []string{statusPass, statusFail, statusSlower, statusFaster} {
		fmt.Fprintf(w, "  %-7s %d\n", s+":", statusCount[s])
	}
	fmt.Fprintln(w)

	if statusCount[statusFail] > 0 {
		fmt.Fprintln(w, "FAILURES:")
		for _, comp := range comparisons {
			if comp.Status == statusFail {
				fmt.Fprintf(w, "  %s: %s\n", comp.Name, comp.Message)
			}
		}
		fmt.Fprintln(w)
	}

	if statusCount[statusSlower] > 0 || statusCount[statusFaster] > 0 {
		fmt.Fprintln(w, "PERFORMANCE CHANGES:")
		for _, comp := range comparisons {
			if comp.Status == statusSlower || comp.Status == statusFaster {
				fmt.Fprintf(w, "  %s: %s (%.3fms -> %.3fms)\n",
					comp.Name, comp.Message, comp.BaselineNsPerOp/1e6, comp.CurrentNsPerOp/1e6)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "DETAILED RESULTS:")
	fmt.Fprintf(w, "%-28s %-6s %12s %12s %8s %14s\n",
		"Strategy", "Status", "Base ms/op", "Curr ms/op", "Speedup", "Sum")
	fmt.Fprintln(w, strings.Repeat("-", 86))
	for _, comp := range comparisons {
		fmt.Fprintf(w, "%-28s %-6s %12.3f %12.3f %8.2f %14d\n",
			comp.Name, comp.Status,
			comp.BaselineNsPerOp/1e6, comp.CurrentNsPerOp/1e6,
			comp.SpeedupFactor, comp.CurrentSum)
	}
}
