//go:build webgpu

package webgpu

import (
	"fmt"
	"sync"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/chunleili/paraAlgo"
)

// Context holds the single WebGPU device used by the package
type Context struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Name     string
	once     sync.Once
	err      error
}

var ctx Context

// GetContext returns the singleton GPU context, initializing it if necessary.
// Adapter selection prefers high performance, then low power, then the
// platform default.
func GetContext() (*Context, error) {
	ctx.once.Do(func() {
		ctx.Instance = wgpu.CreateInstance(nil)
		if ctx.Instance == nil {
			ctx.err = paraalgo.NewDeviceError("CreateInstance", "no WebGPU instance", nil)
			return
		}

		var err error
		for _, opts := range []*wgpu.RequestAdapterOptions{
			{PowerPreference: wgpu.PowerPreferenceHighPerformance},
			{PowerPreference: wgpu.PowerPreferenceLowPower},
			nil,
		} {
			ctx.Adapter, err = ctx.Instance.RequestAdapter(opts)
			if err == nil && ctx.Adapter != nil {
				break
			}
		}
		if ctx.Adapter == nil {
			ctx.err = paraalgo.NewDeviceError("RequestAdapter", "all adapter attempts failed", err)
			return
		}

		info := ctx.Adapter.GetInfo()
		ctx.Name = fmt.Sprintf("%s (%s)", info.Name, info.VendorName)

		ctx.Device, err = ctx.Adapter.RequestDevice(nil)
		if err != nil {
			ctx.err = paraalgo.NewDeviceError("RequestDevice", ctx.Name, err)
			return
		}
		ctx.Queue = ctx.Device.GetQueue()
	})

	if ctx.err != nil {
		return nil, ctx.err
	}
	if ctx.Device == nil || ctx.Queue == nil {
		return nil, paraalgo.NewDeviceError("GetContext", "device or queue not initialized", nil)
	}
	return &ctx, nil
}

// Available reports whether a WebGPU device can be used.
func Available() bool {
	_, err := GetContext()
	return err == nil
}

// AdapterName returns the name of the selected GPU adapter.
func AdapterName() string {
	c, err := GetContext()
	if err != nil {
		return ""
	}
	return c.Name
}
