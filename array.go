package paraalgo

import "fmt"

// Int32Array is a device-resident array of int32 values allocated from a
// Context's memory pool.
type Int32Array struct {
	ctx *Context
	ptr DevicePtr
	n   int
}

// NewInt32Array allocates a zero-filled device array of n elements.
func NewInt32Array(ctx *Context, n int) (*Int32Array, error) {
	if n < 0 {
		return nil, NewInvalidArgError("NewInt32Array", fmt.Sprintf("negative length %d", n))
	}
	ptr, err := ctx.Malloc(n * 4)
	if err != nil {
		return nil, err
	}
	a := &Int32Array{ctx: ctx, ptr: ptr, n: n}
	clear(a.Data())
	return a, nil
}

// NewInt32ArrayFromHost allocates a device array and copies host into it.
func NewInt32ArrayFromHost(ctx *Context, host []int32) (*Int32Array, error) {
	a, err := NewInt32Array(ctx, len(host))
	if err != nil {
		return nil, err
	}
	if err := a.CopyFromHost(host); err != nil {
		a.Free()
		return nil, err
	}
	return a, nil
}

// Len returns the number of elements.
func (a *Int32Array) Len() int {
	return a.n
}

// Context returns the context the array was allocated from.
func (a *Int32Array) Context() *Context {
	return a.ctx
}

// Data returns the device view of the array. Kernels index it directly.
func (a *Int32Array) Data() []int32 {
	return a.ptr.Int32()[:a.n:a.n]
}

// Ptr returns the underlying device pointer.
func (a *Int32Array) Ptr() DevicePtr {
	return a.ptr
}

// CopyFromHost copies host into the start of the array.
func (a *Int32Array) CopyFromHost(host []int32) error {
	if len(host) > a.n {
		return NewInvalidArgError("CopyFromHost", fmt.Sprintf("%d elements do not fit in %d", len(host), a.n))
	}
	return a.ctx.Memcpy(a.ptr, host, len(host)*4, MemcpyHostToDevice)
}

// CopyToHost copies the first len(host) elements into host.
func (a *Int32Array) CopyToHost(host []int32) error {
	if len(host) > a.n {
		return NewInvalidArgError("CopyToHost", fmt.Sprintf("%d elements requested from %d", len(host), a.n))
	}
	return a.ctx.Memcpy(host, a.ptr, len(host)*4, MemcpyDeviceToHost)
}

// Fill sets the first n elements to v with one lane per element.
func (a *Int32Array) Fill(v int32, n int) error {
	if n > a.n {
		return NewInvalidArgError("Fill", fmt.Sprintf("%d elements requested from %d", n, a.n))
	}
	data := a.Data()
	return a.ctx.ParallelFor(n, func(i int) {
		data[i] = v
	})
}

// CopyFrom copies the first n elements of src into a with one lane per
// element. Both arrays must belong to the same context.
func (a *Int32Array) CopyFrom(src *Int32Array, n int) error {
	if n > a.n || n > src.n {
		return NewInvalidArgError("CopyFrom", fmt.Sprintf("%d elements exceed dst (%d) or src (%d)", n, a.n, src.n))
	}
	if src.ctx != a.ctx {
		return NewInvalidArgError("CopyFrom", "arrays belong to different contexts")
	}
	dst, in := a.Data(), src.Data()
	return a.ctx.ParallelFor(n, func(i int) {
		dst[i] = in[i]
	})
}

// Free returns the array's memory to its context. The array must not be
// used afterwards.
func (a *Int32Array) Free() error {
	err := a.ctx.Free(a.ptr)
	a.ptr = DevicePtr{}
	a.n = 0
	return err
}
