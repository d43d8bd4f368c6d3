// Package paraalgo configuration constants
package paraalgo

// Thread and block dimensions
const (
	// Default block size for kernels launched through ParallelFor
	DefaultBlockSize = 256

	// Maximum threads per block (CUDA compatibility)
	MaxThreadsPerBlock = 1024
)

// Memory pool parameters
const (
	// Memory alignment for allocations (cache line size)
	MemoryAlignment = 64

	// Fallback when total system memory cannot be detected
	defaultSystemMemory = 16 * 1024 * 1024 * 1024 // 16GB
)

// Benchmark workload defaults
const (
	// DefaultArraySize is the number of int32 values summed by reduce-bench
	DefaultArraySize = 100_000_000

	// DefaultIterations is the number of timed reductions per strategy
	DefaultIterations = 100

	// DefaultValueLow and DefaultValueHigh bound generated values to
	// [DefaultValueLow, DefaultValueHigh). Keeping values strictly positive
	// is what makes compaction's zero-as-empty rule harmless.
	DefaultValueLow  = 1
	DefaultValueHigh = 10000
)
