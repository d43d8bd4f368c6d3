//go:build !webgpu

package webgpu

// Source is a GPU-resident input array.
type Source struct{}

// Available reports whether a WebGPU device can be used.
func Available() bool { return false }

// AdapterName returns the name of the selected GPU adapter.
func AdapterName() string { return "" }

// NewSource uploads host to the GPU.
func NewSource(host []int32) (*Source, error) { return nil, ErrUnavailable }

// Len returns the number of elements.
func (s *Source) Len() int { return 0 }

// Free releases the GPU buffer.
func (s *Source) Free() {}

// NewReducer builds the named strategy for sources up to capacity elements.
func NewReducer(name string, capacity int) (Reducer, error) { return nil, ErrUnavailable }
