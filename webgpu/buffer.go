//go:build webgpu

package webgpu

import (
	"fmt"
	"time"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/chunleili/paraAlgo"
)

const (
	storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	readTimeout  = 5 * time.Second
)

// Source is a GPU-resident input array. Kernels only bind it read-only.
type Source struct {
	buf *wgpu.Buffer
	n   int
}

// NewSource uploads host to the GPU.
func NewSource(host []int32) (*Source, error) {
	buf, err := newInt32Buffer("Source", host, len(host))
	if err != nil {
		return nil, err
	}
	return &Source{buf: buf, n: len(host)}, nil
}

// Len returns the number of elements.
func (s *Source) Len() int { return s.n }

// Free releases the GPU buffer.
func (s *Source) Free() {
	if s.buf != nil {
		s.buf.Destroy()
		s.buf = nil
	}
	s.n = 0
}

// newInt32Buffer creates a storage buffer holding n elements, initialized
// from data when data is non-empty. Zero-length buffers are padded to one
// element because empty bindings are invalid.
func newInt32Buffer(label string, data []int32, n int) (*wgpu.Buffer, error) {
	c, err := GetContext()
	if err != nil {
		return nil, err
	}
	if n < 1 {
		n = 1
	}

	var buf *wgpu.Buffer
	if len(data) > 0 {
		buf, err = c.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
			Label:    label,
			Contents: wgpu.ToBytes(data),
			Usage:    storageUsage,
		})
	} else {
		buf, err = c.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: label,
			Size:  uint64(n * 4),
			Usage: storageUsage,
		})
	}
	if err != nil {
		return nil, paraalgo.NewMemoryError("CreateBuffer", fmt.Sprintf("%s: %d elements", label, n), err)
	}
	return buf, nil
}

// newParamsBuffer creates the uniform buffer carrying per-round parameters.
func newParamsBuffer(label string) (*wgpu.Buffer, error) {
	c, err := GetContext()
	if err != nil {
		return nil, err
	}
	buf, err := c.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  16,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, paraalgo.NewMemoryError("CreateBuffer", label, err)
	}
	return buf, nil
}

// writeParams uploads length, half and carry into a params buffer. The write
// is ordered before any later submission on the queue.
func writeParams(c *Context, buf *wgpu.Buffer, length, half, carry uint32) {
	c.Queue.WriteBuffer(buf, 0, wgpu.ToBytes([]uint32{length, half, carry, 0}))
}

// readInt32 copies count elements starting at element offset back to the host.
func readInt32(buffer *wgpu.Buffer, offset, count int) ([]int32, error) {
	c, err := GetContext()
	if err != nil {
		return nil, err
	}

	sizeBytes := uint64(count * 4)
	staging, err := c.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "ReadStaging",
		Size:  sizeBytes,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, paraalgo.NewMemoryError("CreateBuffer", "ReadStaging", err)
	}
	defer staging.Destroy()

	encoder, err := c.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, paraalgo.NewDeviceError("CreateCommandEncoder", "readback", err)
	}
	encoder.CopyBufferToBuffer(buffer, uint64(offset*4), staging, 0, sizeBytes)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, paraalgo.NewDeviceError("Finish", "readback", err)
	}
	c.Queue.Submit(cmd)

	done := make(chan struct{})
	var mapErr error
	err = staging.MapAsync(wgpu.MapModeRead, 0, sizeBytes, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			mapErr = paraalgo.NewDeviceError("MapAsync", fmt.Sprintf("status %v", status), nil)
		}
		close(done)
	})
	if err != nil {
		return nil, paraalgo.NewDeviceError("MapAsync", "ReadStaging", err)
	}

	timeout := time.After(readTimeout)
Loop:
	for {
		c.Device.Poll(false, nil)
		select {
		case <-done:
			break Loop
		case <-timeout:
			return nil, paraalgo.NewDeviceError("MapAsync", fmt.Sprintf("readback timed out after %v", readTimeout), nil)
		default:
			time.Sleep(100 * time.Microsecond)
		}
	}
	if mapErr != nil {
		return nil, mapErr
	}

	data := staging.GetMappedRange(0, uint(sizeBytes))
	if data == nil {
		return nil, paraalgo.NewDeviceError("GetMappedRange", "ReadStaging", nil)
	}
	out := make([]int32, count)
	copy(out, wgpu.FromBytes[int32](data))
	staging.Unmap()
	return out, nil
}
