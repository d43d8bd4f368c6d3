package bench

import (
	"runtime"
	"time"
)

// DefaultFlushSize is larger than the last-level cache of most CPUs.
const DefaultFlushSize = 64 * 1024 * 1024 // 64MB

// FlushCaches evicts CPU caches by writing every cache line of a buffer of
// size bytes twice with different patterns, then collects garbage so the
// buffer does not linger into the measured run. It returns the time spent.
func FlushCaches(size int) time.Duration {
	const lineSize = 64

	start := time.Now()
	data := make([]byte, size)
	for i := 0; i < len(data); i += lineSize {
		data[i] = byte(i % 256)
	}
	for i := 0; i < len(data); i += lineSize {
		data[i] = byte((i * 7) % 256)
	}
	runtime.KeepAlive(data)
	runtime.GC()

	return time.Since(start)
}
