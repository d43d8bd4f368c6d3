package paraalgo

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Benchmark statuses recorded in session files.
const (
	StatusPass     = "pass"
	StatusFail     = "fail"
	StatusMismatch = "mismatch" // ran to completion but the sum differs from the reference
)

// BenchmarkResult captures one strategy's timed run
type BenchmarkResult struct {
	Name           string        `json:"name"`
	Backend        string        `json:"backend,omitempty"`
	Status         string        `json:"status"`
	Elements       int           `json:"elements"`
	Iterations     int           `json:"iterations,omitempty"`
	Sum            int32         `json:"sum"`
	Expected       int32         `json:"expected"`
	NsPerOp        float64       `json:"ns_per_op,omitempty"`
	ElementsPerSec float64       `json:"elements_per_sec,omitempty"`
	MBPerSec       float64       `json:"mb_per_sec,omitempty"`
	Duration       time.Duration `json:"duration,omitempty"`
	Error          string        `json:"error,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
	CacheCondition string        `json:"cache_condition,omitempty"` // "hot" or "cold"

	// Hardware counters, when collected
	Cycles       uint64  `json:"cycles,omitempty"`
	Instructions uint64  `json:"instructions,omitempty"`
	CacheMisses  uint64  `json:"cache_misses,omitempty"`
	BranchMisses uint64  `json:"branch_misses,omitempty"`
	IPC          float64 `json:"ipc,omitempty"`
}

// BenchmarkLogger manages logging of benchmark results to file
type BenchmarkLogger struct {
	mu          sync.Mutex
	results     []BenchmarkResult
	logDir      string
	sessionFile string
}

var globalLogger = &BenchmarkLogger{
	logDir: "benchmark_logs",
}

// SetBenchmarkLogDir changes the directory session files are written to.
// It takes effect at the next InitBenchmarkLogger.
func SetBenchmarkLogDir(dir string) {
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()
	globalLogger.logDir = dir
}

// InitBenchmarkLogger starts a new session file named after sessionName
// and returns its path.
func InitBenchmarkLogger(sessionName string) (string, error) {
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()

	if err := os.MkdirAll(globalLogger.logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	globalLogger.sessionFile = filepath.Join(globalLogger.logDir,
		fmt.Sprintf("%s_%s.json", sessionName, timestamp))

	globalLogger.results = nil

	return globalLogger.sessionFile, globalLogger.flush()
}

// LogBenchmarkResult logs a single benchmark result
func LogBenchmarkResult(result BenchmarkResult) error {
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()

	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now()
	}
	globalLogger.results = append(globalLogger.results, result)

	// Flush to disk immediately to avoid losing data on crash
	return globalLogger.flush()
}

// LogBenchmarkFail logs a failed benchmark
func LogBenchmarkFail(name string, err error) error {
	return LogBenchmarkResult(BenchmarkResult{
		Name:   name,
		Status: StatusFail,
		Error:  err.Error(),
	})
}

// flush writes results to disk
func (bl *BenchmarkLogger) flush() error {
	if bl.sessionFile == "" {
		return nil // Not initialized
	}

	data, err := json.MarshalIndent(bl.results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	return os.WriteFile(bl.sessionFile, data, 0644)
}

// LoadBenchmarkResults reads a session file written by the logger.
func LoadBenchmarkResults(path string) ([]BenchmarkResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var results []BenchmarkResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return results, nil
}

// GetLatestLogFile returns the path to the most recent log file
func GetLatestLogFile() (string, error) {
	globalLogger.mu.Lock()
	dir := globalLogger.logDir
	globalLogger.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no log files found")
	}

	var latest string
	var latestTime time.Time
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latest = file
			latestTime = info.ModTime()
		}
	}

	return latest, nil
}

// PrintBenchmarkSummary writes a summary of results to w
func PrintBenchmarkSummary(w io.Writer, results []BenchmarkResult) {
	fmt.Fprintln(w, strings.Repeat("=", 72))

	passed, failed, mismatched := 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			passed++
			fmt.Fprintf(w, "✓ %-24s %14.2f ns/op %12.2f Melem/s  sum = %d\n",
				r.Name, r.NsPerOp, r.ElementsPerSec/1e6, r.Sum)
		case StatusMismatch:
			mismatched++
			fmt.Fprintf(w, "≠ %-24s %14.2f ns/op  sum = %d, expected %d\n",
				r.Name, r.NsPerOp, r.Sum, r.Expected)
		case StatusFail:
			failed++
			fmt.Fprintf(w, "✗ %-24s FAILED: %s\n", r.Name, r.Error)
		}
	}

	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "Total: %d | Passed: %d | Mismatched: %d | Failed: %d\n",
		len(results), passed, mismatched, failed)
}
