//go:build linux

package bench

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

type perfEvent struct {
	name   string
	config uint64
	dst    func(*Counters) *uint64
}

var perfEvents = []perfEvent{
	{"cycles", unix.PERF_COUNT_HW_CPU_CYCLES, func(c *Counters) *uint64 { return &c.Cycles }},
	{"instructions", unix.PERF_COUNT_HW_INSTRUCTIONS, func(c *Counters) *uint64 { return &c.Instructions }},
	{"cache-misses", unix.PERF_COUNT_HW_CACHE_MISSES, func(c *Counters) *uint64 { return &c.CacheMisses }},
	{"branch-misses", unix.PERF_COUNT_HW_BRANCH_MISSES, func(c *Counters) *uint64 { return &c.BranchMisses }},
}

// Monitor reads hardware counters through perf_event_open. Counters cover
// the OS thread that calls Start and threads it creates afterwards, on any
// CPU, in user space only. Work scheduled onto pre-existing runtime
// threads is not counted.
type Monitor struct {
	fds []int
}

func NewMonitor() *Monitor {
	return &Monitor{}
}

// Start opens and enables every counter. On failure no counter stays open.
func (m *Monitor) Start() error {
	m.Stop()

	for _, ev := range perfEvents {
		attr := unix.PerfEventAttr{
			Type:   unix.PERF_TYPE_HARDWARE,
			Size:   uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
			Config: ev.config,
			Bits:   unix.PerfBitDisabled | unix.PerfBitInherit | unix.PerfBitExcludeKernel | unix.PerfBitExcludeHv,
		}
		fd, err := unix.PerfEventOpen(&attr, 0, -1, -1, unix.PERF_FLAG_FD_CLOEXEC)
		if err != nil {
			m.Stop()
			return fmt.Errorf("%w: %s: %v", ErrCountersUnavailable, ev.name, err)
		}
		m.fds = append(m.fds, fd)
	}

	for _, fd := range m.fds {
		if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_RESET, 0); err != nil {
			m.Stop()
			return fmt.Errorf("%w: reset: %v", ErrCountersUnavailable, err)
		}
		if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_ENABLE, 0); err != nil {
			m.Stop()
			return fmt.Errorf("%w: enable: %v", ErrCountersUnavailable, err)
		}
	}
	return nil
}

// Stop disables and closes the counters and returns their totals.
func (m *Monitor) Stop() Counters {
	var c Counters
	var buf [8]byte
	for i, fd := range m.fds {
		unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_DISABLE, 0)
		if n, err := unix.Read(fd, buf[:]); err == nil && n == len(buf) {
			*perfEvents[i].dst(&c) = binary.NativeEndian.Uint64(buf[:])
		}
		unix.Close(fd)
	}
	m.fds = nil
	return c
}
