// Package paraalgo provides a CUDA-style compute runtime for CPU execution
// and the parallel reduction algorithms built on it.
//
// Example usage:
//
//	ctx := paraalgo.NewContext()
//	defer ctx.Destroy()
//
//	// Allocate device memory and upload host data
//	src, _ := paraalgo.NewInt32ArrayFromHost(ctx, host)
//	defer src.Free()
//
//	// Run one lane per element and wait for the round to finish
//	var acc paraalgo.AtomicInt32
//	data := src.Data()
//	err := ctx.ParallelFor(src.Len(), func(i int) {
//		acc.Add(data[i])
//	})
package paraalgo

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Device represents a compute device. In paraalgo, this is the CPU with its
// cores and available memory.
type Device struct {
	ID         int         // Unique device identifier
	Name       string      // Human-readable device name
	TotalMem   uint64      // Total available memory in bytes
	NumCores   int         // Number of CPU cores
	MaxThreads int         // Maximum concurrent threads
	Features   CPUFeatures // Detected instruction set extensions
}

// Context represents an execution context. It owns the device memory pool
// and the streams kernels are launched on. A Context should be destroyed
// when no longer needed.
type Context struct {
	device        *Device
	mu            sync.Mutex
	streams       map[int]*Stream
	streamID      int32
	memory        *MemoryPool
	defaultStream *Stream
	workers       int
}

// ContextOption configures a Context created by NewContext.
type ContextOption func(*Context)

// WithWorkers sets the number of goroutines a kernel launch is split across.
// Values <= 0 select runtime.NumCPU().
func WithWorkers(n int) ContextOption {
	return func(ctx *Context) {
		if n > 0 {
			ctx.workers = n
		}
	}
}

// WithMemoryLimit caps the number of bytes the context may have allocated
// at once. Allocations beyond the limit fail with ErrOutOfMemory.
func WithMemoryLimit(bytes int64) ContextOption {
	return func(ctx *Context) {
		ctx.memory.limit = bytes
	}
}

// Stream represents an ordered sequence of operations that execute
// asynchronously. Operations within a stream execute in order.
type Stream struct {
	id    int
	tasks chan func() error
	done  chan struct{}
	wg    sync.WaitGroup

	errMu sync.Mutex
	err   error
}

// Dim3 represents 3D dimensions for grid and block configurations.
type Dim3 struct {
	X, Y, Z int
}

// ThreadID identifies a thread's position within the execution hierarchy,
// with the same meaning as CUDA's blockIdx, threadIdx, blockDim and gridDim.
type ThreadID struct {
	BlockIdx  Dim3 // Block index within the grid
	ThreadIdx Dim3 // Thread index within the block
	BlockDim  Dim3 // Dimensions of the block
	GridDim   Dim3 // Dimensions of the grid
}

// Kernel represents a compute kernel that can be executed in parallel.
// Execute is called concurrently from multiple goroutines.
type Kernel interface {
	Execute(tid ThreadID, args ...interface{})
}

// KernelFunc is a function that can be launched as a kernel.
type KernelFunc func(tid ThreadID, args ...interface{})

// DevicePtr represents a pointer to device memory. Use the typed views
// (Int32, Byte) to access the underlying data.
type DevicePtr struct {
	ptr  unsafe.Pointer
	size int
}

var (
	defaultDevice  *Device
	defaultContext *Context
	initOnce       sync.Once
)

func initRuntime() {
	initOnce.Do(func() {
		defaultDevice = &Device{
			ID:         0,
			Name:       "CPU",
			TotalMem:   getSystemMemory(),
			NumCores:   runtime.NumCPU(),
			MaxThreads: runtime.NumCPU() * 2, // Hyperthreading
			Features:   cpuFeatures,
		}
		defaultContext = newContext(defaultDevice)
	})
}

// NewContext creates an execution context on the CPU device.
func NewContext(opts ...ContextOption) *Context {
	initRuntime()
	ctx := newContext(defaultDevice)
	for _, opt := range opts {
		opt(ctx)
	}
	return ctx
}

func newContext(device *Device) *Context {
	ctx := &Context{
		device:  device,
		streams: make(map[int]*Stream),
		memory:  NewMemoryPool(int64(device.TotalMem)),
		workers: runtime.NumCPU(),
	}
	ctx.defaultStream = ctx.CreateStream()
	return ctx
}

// DefaultContext returns the process-wide context used by the package-level
// helpers.
func DefaultContext() *Context {
	initRuntime()
	return defaultContext
}

// Malloc allocates device memory on the default context.
//
// Example:
//
//	d_data, err := paraalgo.Malloc(1024 * 4) // Allocate 1024 int32s
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer paraalgo.Free(d_data)
func Malloc(size int) (DevicePtr, error) {
	return DefaultContext().Malloc(size)
}

// Free releases device memory allocated by Malloc.
// It is safe to call Free with a zero-value DevicePtr.
func Free(ptr DevicePtr) error {
	return DefaultContext().Free(ptr)
}

// Memcpy copies memory between host and device on the default context.
func Memcpy(dst, src interface{}, size int, kind MemcpyKind) error {
	return DefaultContext().Memcpy(dst, src, size, kind)
}

// LaunchFunc executes a kernel function on the default stream.
func LaunchFunc(fn KernelFunc, grid, block Dim3, args ...interface{}) error {
	return DefaultContext().LaunchFunc(fn, grid, block, args...)
}

// Synchronize waits for all operations on all streams of the default
// context to complete.
func Synchronize() error {
	return DefaultContext().Synchronize()
}

// GetDevice returns the current device information.
func GetDevice() *Device {
	initRuntime()
	return defaultDevice
}

// SetDevice sets the active device (only device 0 exists)
func SetDevice(id int) error {
	if id != 0 {
		return ErrInvalidDevice
	}
	return nil
}

// GetDeviceCount returns the number of available devices.
func GetDeviceCount() int {
	return 1 // Only CPU
}

// GetDeviceProperties returns device properties
func GetDeviceProperties(id int) (*Device, error) {
	if id != 0 {
		return nil, NewInvalidArgError("GetDeviceProperties", fmt.Sprintf("invalid device ID: %d", id))
	}
	return GetDevice(), nil
}

// Context methods

// Device returns the device the context executes on.
func (ctx *Context) Device() *Device {
	return ctx.device
}

// Workers returns the number of goroutines a kernel launch is split across.
func (ctx *Context) Workers() int {
	return ctx.workers
}

// CreateStream creates a new execution stream
func (ctx *Context) CreateStream() *Stream {
	id := int(atomic.AddInt32(&ctx.streamID, 1))
	stream := &Stream{
		id:    id,
		tasks: make(chan func() error, 1000),
		done:  make(chan struct{}),
	}

	go stream.worker()

	ctx.mu.Lock()
	ctx.streams[id] = stream
	ctx.mu.Unlock()
	return stream
}

// Launch executes a kernel on the default stream
func (ctx *Context) Launch(kernel Kernel, grid, block Dim3, args ...interface{}) error {
	return ctx.LaunchStream(kernel, grid, block, ctx.defaultStream, args...)
}

// LaunchFunc executes a kernel function on the default stream
func (ctx *Context) LaunchFunc(fn KernelFunc, grid, block Dim3, args ...interface{}) error {
	return ctx.LaunchFuncStream(fn, grid, block, ctx.defaultStream, args...)
}

// LaunchStream executes a kernel on a specific stream
func (ctx *Context) LaunchStream(kernel Kernel, grid, block Dim3, stream *Stream, args ...interface{}) error {
	return ctx.launchInternal(kernel.Execute, grid, block, stream, args...)
}

// LaunchFuncStream executes a kernel function on a specific stream
func (ctx *Context) LaunchFuncStream(fn KernelFunc, grid, block Dim3, stream *Stream, args ...interface{}) error {
	return ctx.launchInternal(fn, grid, block, stream, args...)
}

// Synchronize waits for all streams to complete and returns the first
// kernel failure recorded since the previous Synchronize.
func (ctx *Context) Synchronize() error {
	ctx.mu.Lock()
	streams := make([]*Stream, 0, len(ctx.streams))
	for _, stream := range ctx.streams {
		streams = append(streams, stream)
	}
	ctx.mu.Unlock()

	var first error
	for _, stream := range streams {
		if err := stream.Synchronize(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Destroy waits for outstanding work and stops the context's streams.
// Memory still held by the pool is released to the garbage collector.
func (ctx *Context) Destroy() {
	ctx.Synchronize()

	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	for id, stream := range ctx.streams {
		close(stream.tasks)
		<-stream.done
		delete(ctx.streams, id)
	}
	ctx.memory.Reset()
}

// Stream methods

// worker processes tasks for a stream
func (s *Stream) worker() {
	for task := range s.tasks {
		if err := task(); err != nil {
			s.errMu.Lock()
			if s.err == nil {
				s.err = err
			}
			s.errMu.Unlock()
		}
		s.wg.Done()
	}
	close(s.done)
}

// Synchronize waits for all tasks in the stream to complete and returns
// the first error raised by them.
func (s *Stream) Synchronize() error {
	s.wg.Wait()

	s.errMu.Lock()
	defer s.errMu.Unlock()
	err := s.err
	s.err = nil
	return err
}

// Submit adds a task to the stream
func (s *Stream) Submit(task func() error) {
	s.wg.Add(1)
	s.tasks <- task
}

// Helper functions

// Global returns the global thread index
func (tid ThreadID) Global() int {
	return tid.BlockIdx.X*tid.BlockDim.X + tid.ThreadIdx.X
}

// Size returns the total number of elements
func (d Dim3) Size() int {
	return d.X * d.Y * d.Z
}

// Execute implements Kernel for KernelFunc.
func (fn KernelFunc) Execute(tid ThreadID, args ...interface{}) {
	fn(tid, args...)
}
