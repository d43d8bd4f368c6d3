//go:build webgpu

package webgpu

import (
	"github.com/openfluke/webgpu/wgpu"

	"github.com/chunleili/paraAlgo"
)

const (
	workgroupSize    = 256
	maxWorkgroupsDim = 65535
)

// Every kernel runs one lane per index in [0, params.length). Grids larger
// than maxWorkgroupsDim workgroups spill into the y dimension.
const kernelHeader = `
struct Params {
	length: u32,
	span: u32,
	carry: u32,
	pad: u32,
}

fn lane(gid: vec3<u32>, nwg: vec3<u32>) -> u32 {
	return gid.x + gid.y * nwg.x * 256u;
}
`

const atomicSumWGSL = kernelHeader + `
@group(0) @binding(0) var<storage, read> src: array<i32>;
@group(0) @binding(1) var<storage, read_write> acc: atomic<i32>;
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
	let i = lane(gid, nwg);
	if (i < params.length) {
		atomicAdd(&acc, src[i]);
	}
}
`

const fillZeroWGSL = kernelHeader + `
@group(0) @binding(0) var<storage, read_write> dst: array<i32>;
@group(0) @binding(1) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
	let i = lane(gid, nwg);
	if (i < params.length) {
		dst[i] = 0;
	}
}
`

const pairSumWGSL = kernelHeader + `
@group(0) @binding(0) var<storage, read> src: array<i32>;
@group(0) @binding(1) var<storage, read_write> reduced: array<i32>;
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
	let i = lane(gid, nwg);
	if (i >= params.length || i % 2u != 0u) {
		return;
	}
	if (i + 1u < params.length) {
		reduced[i] = src[i] + src[i + 1u];
	} else {
		reduced[i] = src[i];
	}
}
`

const compactWGSL = kernelHeader + `
@group(0) @binding(0) var<storage, read> reduced: array<i32>;
@group(0) @binding(1) var<storage, read_write> packed: array<i32>;
@group(0) @binding(2) var<storage, read_write> counter: atomic<u32>;
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
	let i = lane(gid, nwg);
	if (i < params.length && reduced[i] != 0) {
		let k = atomicAdd(&counter, 1u);
		packed[k] = reduced[i];
	}
}
`

// halvingFirstWGSL reads the source and writes the first halved round into
// the scratch buffer, so the source is never written.
const halvingFirstWGSL = kernelHeader + `
@group(0) @binding(0) var<storage, read> src: array<i32>;
@group(0) @binding(1) var<storage, read_write> buf: array<i32>;
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
	let i = lane(gid, nwg);
	if (i >= params.span) {
		return;
	}
	var v = src[i] + src[i + params.span];
	if (i == 0u && params.carry != 0u) {
		v = v + src[params.length - 1u];
	}
	buf[i] = v;
}
`

const halvingStepWGSL = kernelHeader + `
@group(0) @binding(0) var<storage, read_write> buf: array<i32>;
@group(0) @binding(1) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
	let i = lane(gid, nwg);
	if (i >= params.span) {
		return;
	}
	var v = buf[i] + buf[i + params.span];
	if (i == 0u && params.carry != 0u) {
		v = v + buf[params.length - 1u];
	}
	buf[i] = v;
}
`

func compile(c *Context, label, shader string) (*wgpu.ComputePipeline, error) {
	module, err := c.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label + "_Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shader},
	})
	if err != nil {
		return nil, paraalgo.NewDeviceError("CreateShaderModule", label, err)
	}
	defer module.Release()

	pipeline, err := c.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:   label + "_Pipe",
		Compute: wgpu.ProgrammableStageDescriptor{Module: module, EntryPoint: "main"},
	})
	if err != nil {
		return nil, paraalgo.NewDeviceError("CreateComputePipeline", label, err)
	}
	return pipeline, nil
}

// bind creates a bind group with buffers bound to consecutive bindings.
func bind(c *Context, label string, pipeline *wgpu.ComputePipeline, buffers ...*wgpu.Buffer) (*wgpu.BindGroup, error) {
	entries := make([]wgpu.BindGroupEntry, len(buffers))
	for i, b := range buffers {
		entries[i] = wgpu.BindGroupEntry{Binding: uint32(i), Buffer: b, Size: b.GetSize()}
	}
	bg, err := c.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label + "_Bind",
		Layout:  pipeline.GetBindGroupLayout(0),
		Entries: entries,
	})
	if err != nil {
		return nil, paraalgo.NewDeviceError("CreateBindGroup", label, err)
	}
	return bg, nil
}

// gridFor returns the workgroup counts covering n lanes.
func gridFor(n int) (x, y uint32) {
	groups := (n + workgroupSize - 1) / workgroupSize
	if groups < 1 {
		groups = 1
	}
	gx := groups
	if gx > maxWorkgroupsDim {
		gx = maxWorkgroupsDim
	}
	gy := (groups + gx - 1) / gx
	return uint32(gx), uint32(gy)
}

func dispatch(enc *wgpu.CommandEncoder, pipeline *wgpu.ComputePipeline, bg *wgpu.BindGroup, lanes int) {
	x, y := gridFor(lanes)
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.DispatchWorkgroups(x, y, 1)
	pass.End()
}

// submit records one round with record and submits it.
func submit(c *Context, record func(enc *wgpu.CommandEncoder)) error {
	enc, err := c.Device.CreateCommandEncoder(nil)
	if err != nil {
		return paraalgo.NewDeviceError("CreateCommandEncoder", "round", err)
	}
	record(enc)
	cmd, err := enc.Finish(nil)
	if err != nil {
		return paraalgo.NewDeviceError("Finish", "round", err)
	}
	c.Queue.Submit(cmd)
	return nil
}
