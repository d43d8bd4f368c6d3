// Package webgpu runs the reduction strategies as WGSL compute kernels on a
// GPU through WebGPU. It is compiled only with the webgpu build tag;
// without it every constructor returns ErrUnavailable.
//
// The kernels follow the same round structure as package reduce. Each
// round is one queue submission, and queue order provides the barrier
// between rounds.
package webgpu

import "errors"

// ErrUnavailable is returned when the binary was built without the webgpu
// tag.
var ErrUnavailable = errors.New("webgpu: backend not compiled in (build with -tags webgpu)")

// Reducer produces the sum of a GPU-resident Source.
type Reducer interface {
	Name() string
	Reduce(src *Source) (int32, error)
	Close() error
}
