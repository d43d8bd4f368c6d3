//go:build linux

package bench

import (
	"runtime"
	"testing"

	"golang.org/x/sys/unix"
)

// Every iteration of a counted run executes on the thread the counters
// were opened on, even when fn yields.
func TestRunCountedStaysOnThread(t *testing.T) {
	var tids []int
	_, err := RunCounted("pinned", 1, 50, func() (int32, error) {
		tids = append(tids, unix.Gettid())
		runtime.Gosched()
		return 0, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, tid := range tids {
		if tid != tids[0] {
			t.Fatalf("iteration %d ran on thread %d, want %d", i, tid, tids[0])
		}
	}
}
