// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package compute

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/sdfscene/internal/ir"
	"github.com/gogpu/sdfscene/internal/ir/wgsl"
	"github.com/gogpu/sdfscene/internal/layout"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// DefaultTimeout bounds how long a dispatch waits for its fence.
const DefaultTimeout = 5 * time.Second

// paramsSize is the size of the WGSL Params uniform (4 x u32).
const paramsSize = 16

// HALDevice runs kernels through wgpu/hal compute pipelines.
//
// Each compiled Program owns its shader module, bind group layout, pipeline
// layout and pipeline. Buffers are created per dispatch. Dispatches on one
// device are serialized.
type HALDevice struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	name     string
	timeout  time.Duration

	externalDevice bool // true when using a shared device (don't destroy on Close)
	closed         bool
}

var _ Device = (*HALDevice)(nil)

// NewHAL opens the Vulkan backend and picks a discrete or integrated GPU,
// falling back to the first adapter.
func NewHAL() (*HALDevice, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", ErrNoAdapter)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %v", ErrNoAdapter, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: no GPU adapters found", ErrNoAdapter)
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: open device: %v", ErrNoAdapter, err)
	}
	slogger().Info("compute: GPU adapter selected", "name", selected.Info.Name)
	return &HALDevice{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		name:     "hal:" + selected.Info.Name,
		timeout:  DefaultTimeout,
	}, nil
}

// NewHALWithDevice wraps an already opened device and queue. The caller keeps
// ownership: Close does not destroy them.
func NewHALWithDevice(device hal.Device, queue hal.Queue) *HALDevice {
	return &HALDevice{
		device:         device,
		queue:          queue,
		name:           "hal:shared",
		timeout:        DefaultTimeout,
		externalDevice: true,
	}
}

// NewHALFromProvider shares the device of a host application. The provider
// must implement HalDevice() any and HalQueue() any returning hal.Device and
// hal.Queue.
func NewHALFromProvider(provider gpucontext.DeviceProvider) (*HALDevice, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("%w: provider does not expose HAL types", ErrNoAdapter)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: provider HalDevice is not hal.Device", ErrNoAdapter)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: provider HalQueue is not hal.Queue", ErrNoAdapter)
	}
	slogger().Info("compute: using shared GPU device")
	return NewHALWithDevice(device, queue), nil
}

func (d *HALDevice) Name() string { return d.name }

// SetTimeout overrides the per-dispatch fence timeout.
func (d *HALDevice) SetTimeout(t time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t > 0 {
		d.timeout = t
	}
}

// Close destroys the device unless it is shared. Programs must be released
// first.
func (d *HALDevice) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	if !d.externalDevice {
		if d.device != nil {
			d.device.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.queue = nil
	d.instance = nil
}

// CompileSPIRV lowers k to WGSL and compiles it to SPIR-V words.
func CompileSPIRV(k *ir.Kernel) (string, []uint32, error) {
	src, err := wgsl.Lower(k)
	if err != nil {
		return "", nil, err
	}
	spirvBytes, err := naga.Compile(src)
	if err != nil {
		return src, nil, fmt.Errorf("naga: %w", err)
	}
	// SPIR-V is little-endian 32-bit words
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return src, words, nil
}

// Compile builds a compute pipeline for k.
func (d *HALDevice) Compile(k *ir.Kernel) (Program, error) {
	src, spirv, err := CompileSPIRV(k)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrReleased
	}

	p := &halProgram{dev: d, stride: k.Stride, label: k.Name}
	p.shader, err = d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  k.Name,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("create shader module: %w", err)
	}
	p.bindLayout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: k.Name + "_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		p.destroyLocked()
		return nil, fmt.Errorf("create bind group layout: %w", err)
	}
	p.pipeLayout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: k.Name + "_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		p.destroyLocked()
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}
	p.pipeline, err = d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: k.Name + "_pipeline", Layout: p.pipeLayout,
		Compute: hal.ComputeState{Module: p.shader, EntryPoint: wgsl.EntryPoint},
	})
	if err != nil {
		p.destroyLocked()
		return nil, fmt.Errorf("create compute pipeline: %w", err)
	}
	slogger().Debug("compute: compiled hal program",
		"kernel", k.Name, "wgsl_bytes", len(src), "spirv_words", len(spirv))
	return p, nil
}

type halProgram struct {
	dev    *HALDevice
	stride int
	label  string

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline

	released atomic.Bool
}

func (p *halProgram) Stride() int { return p.stride }

func (p *halProgram) Release() {
	if !p.released.CompareAndSwap(false, true) {
		return
	}
	p.dev.mu.Lock()
	defer p.dev.mu.Unlock()
	p.destroyLocked()
}

func (p *halProgram) destroyLocked() {
	d := p.dev.device
	if d == nil {
		return
	}
	if p.pipeline != nil {
		d.DestroyComputePipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipeLayout != nil {
		d.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		d.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.shader != nil {
		d.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

func makeParams(width, height, stride int) []byte {
	b := make([]byte, paramsSize)
	binary.LittleEndian.PutUint32(b[0:], uint32(width))  //nolint:gosec // grid dimensions fit uint32
	binary.LittleEndian.PutUint32(b[4:], uint32(height)) //nolint:gosec // grid dimensions fit uint32
	binary.LittleEndian.PutUint32(b[8:], uint32(stride)) //nolint:gosec // stride fits uint32
	return b
}

// Dispatch uploads data, runs the pipeline over the grid and reads back the
// output records.
func (p *halProgram) Dispatch(ctx context.Context, data []float32, width, height int) ([]float32, error) {
	if err := checkGrid(width, height); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.released.Load() {
		return nil, ErrReleased
	}

	d := p.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrReleased
	}

	// Storage buffers may not be empty.
	dataBytes := layout.Encode(data)
	if len(dataBytes) == 0 {
		dataBytes = make([]byte, 4)
	}
	outSize := uint64(width * height * p.stride * 4) //nolint:gosec // grid size is positive

	paramsBuf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: p.label + "_params", Size: paramsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create params buffer: %w", err)
	}
	defer d.device.DestroyBuffer(paramsBuf)

	dataBuf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: p.label + "_data", Size: uint64(len(dataBytes)),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create data buffer: %w", err)
	}
	defer d.device.DestroyBuffer(dataBuf)

	outBuf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: p.label + "_out", Size: outSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create output buffer: %w", err)
	}
	defer d.device.DestroyBuffer(outBuf)

	stagingBuf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: p.label + "_staging", Size: outSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(stagingBuf)

	d.queue.WriteBuffer(paramsBuf, 0, makeParams(width, height, p.stride))
	d.queue.WriteBuffer(dataBuf, 0, dataBytes)

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: p.label + "_bind", Layout: p.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: paramsBuf.NativeHandle(), Offset: 0, Size: paramsSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: dataBuf.NativeHandle(), Offset: 0, Size: uint64(len(dataBytes))}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: outBuf.NativeHandle(), Offset: 0, Size: outSize}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group: %w", err)
	}
	defer d.device.DestroyBindGroup(bg)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: p.label + "_encoder"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(p.label); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: p.label + "_pass"})
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, bg, nil)
	groups := func(n int) uint32 { return uint32((n + wgsl.WorkgroupSize - 1) / wgsl.WorkgroupSize) } //nolint:gosec // positive
	pass.Dispatch(groups(width), groups(height), 1)
	pass.End()
	encoder.CopyBufferToBuffer(outBuf, stagingBuf, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: outSize},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)
	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := d.device.Wait(fence, 1, d.timeout)
	if err != nil || !fenceOK {
		return nil, fmt.Errorf("%w: wait for GPU: ok=%v err=%v", ErrDeviceLost, fenceOK, err)
	}

	readback := make([]byte, outSize)
	if err := d.queue.ReadBuffer(stagingBuf, 0, readback); err != nil {
		return nil, fmt.Errorf("readback: %w", err)
	}
	slogger().Debug("compute: dispatch done", "kernel", p.label, "width", width, "height", height, "bytes", outSize)
	return layout.Decode(readback), nil
}
