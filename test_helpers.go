package paraalgo

import (
	"testing"
)

// MallocOrFail allocates device memory and fails the test if unsuccessful
func MallocOrFail(t testing.TB, ctx *Context, size int) DevicePtr {
	t.Helper()
	ptr, err := ctx.Malloc(size)
	if err != nil {
		t.Fatalf("Failed to allocate %d bytes: %v", size, err)
	}
	return ptr
}

// ArrayOrFail uploads host into a new device array and fails the test if
// unsuccessful. The array is freed when the test ends.
func ArrayOrFail(t testing.TB, ctx *Context, host []int32) *Int32Array {
	t.Helper()
	a, err := NewInt32ArrayFromHost(ctx, host)
	if err != nil {
		t.Fatalf("Failed to upload %d elements: %v", len(host), err)
	}
	t.Cleanup(func() { a.Free() })
	return a
}

// ParallelForOrFail runs a ParallelFor and fails the test if unsuccessful
func ParallelForOrFail(t testing.TB, ctx *Context, n int, body func(i int)) {
	t.Helper()
	if err := ctx.ParallelFor(n, body); err != nil {
		t.Fatalf("ParallelFor(%d) failed: %v", n, err)
	}
}

// SynchronizeOrFail synchronizes and fails the test if unsuccessful
func SynchronizeOrFail(t testing.TB, ctx *Context) {
	t.Helper()
	if err := ctx.Synchronize(); err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}
}

// NewTestContext creates a context destroyed when the test ends.
func NewTestContext(t testing.TB, opts ...ContextOption) *Context {
	t.Helper()
	ctx := NewContext(opts...)
	t.Cleanup(ctx.Destroy)
	return ctx
}
