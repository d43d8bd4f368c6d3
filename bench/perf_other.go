//go:build !linux

package bench

// Monitor is a stub on platforms without perf_event_open.
type Monitor struct{}

func NewMonitor() *Monitor {
	return &Monitor{}
}

// Start always fails on non-Linux platforms.
func (m *Monitor) Start() error {
	return ErrCountersUnavailable
}

// Stop returns empty counters.
func (m *Monitor) Stop() Counters {
	return Counters{}
}
