// Package wgpu_backend implements compute.Device on WebGPU through cogentcore/webgpu.
package wgpu_backend

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-ik/common"
	"github.com/Carmen-Shannon/oxy-ik/engine/compute"
	"github.com/cogentcore/webgpu/wgpu"
)

// defaultComputeUnits stands in for the compute unit count, which WebGPU does not expose.
const defaultComputeUnits = 64

// wgpuDevice is the implementation of compute.Device on a WebGPU device.
// Dispatches are recorded into a pending command encoder that is submitted before any buffer
// transfer, so queue writes and reads observe every previously dispatched kernel.
type wgpuDevice struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	encoder     *wgpu.CommandEncoder
	staging     *wgpu.Buffer
	stagingSize uint64

	// generation is bumped whenever a buffer is released so cached bind groups are rebuilt.
	generation uint64

	label                string
	computeUnits         int
	forceFallbackAdapter bool
	lowPower             bool
	released             bool
}

type wgpuBuffer struct {
	device   *wgpuDevice
	label    string
	size     int
	usage    compute.BufferUsage
	buffer   *wgpu.Buffer
	released bool
}

type wgpuProgram struct {
	device         *wgpuDevice
	label          string
	module         *wgpu.ShaderModule
	layout         *wgpu.BindGroupLayout
	pipelineLayout *wgpu.PipelineLayout
	kernels        map[string]*wgpuKernel
	workgroupSize  int

	bindGroups    map[string]*wgpu.BindGroup
	bindGroupsGen uint64
	released      bool
}

type wgpuKernel struct {
	program  *wgpuProgram
	name     string
	pipeline *wgpu.ComputePipeline
}

var _ compute.Device = &wgpuDevice{}

// NewDevice requests a WebGPU adapter and device for compute work.
//
// Parameters:
//   - options: variadic list of DeviceOption functions to configure the device
//
// Returns:
//   - compute.Device: the WebGPU device
//   - error: an error if no adapter or device could be obtained
func NewDevice(options ...DeviceOption) (compute.Device, error) {
	d := &wgpuDevice{
		mu:    &sync.Mutex{},
		label: "IK Compute",
	}
	for _, opt := range options {
		opt(d)
	}
	d.computeUnits = common.Coalesce(d.computeUnits, defaultComputeUnits)

	d.instance = wgpu.CreateInstance(nil)

	power := wgpu.PowerPreferenceHighPerformance
	if d.lowPower {
		power = wgpu.PowerPreferenceLowPower
	}
	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallbackAdapter,
		PowerPreference:      power,
	})
	if err != nil {
		d.instance.Release()
		return nil, fmt.Errorf("wgpu: request adapter: %w", err)
	}
	d.adapter = a

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: d.label + " Device",
	})
	if err != nil {
		d.adapter.Release()
		d.instance.Release()
		return nil, fmt.Errorf("wgpu: request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()
	return d, nil
}

func (d *wgpuDevice) Name() string {
	return "webgpu:" + d.label
}

func (d *wgpuDevice) ComputeUnits() int {
	return d.computeUnits
}

func (d *wgpuDevice) CreateProgram(src compute.ProgramSource) (compute.Program, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil, compute.ErrReleased
	}
	if src.WGSL == "" {
		return nil, fmt.Errorf("wgpu: program %q has no WGSL source", src.Label)
	}
	if src.WorkgroupSize <= 0 {
		return nil, fmt.Errorf("wgpu: program %q has no workgroup size", src.Label)
	}

	p := &wgpuProgram{
		device:        d,
		label:         src.Label,
		kernels:       make(map[string]*wgpuKernel, len(src.EntryPoints)),
		workgroupSize: src.WorkgroupSize,
		bindGroups:    make(map[string]*wgpu.BindGroup),
	}

	var err error
	p.module, err = d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: src.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: src.WGSL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: compile %q: %w", src.Label, err)
	}

	entries := make([]wgpu.BindGroupLayoutEntry, len(src.Bindings))
	for i, usage := range src.Bindings {
		entries[i] = wgpu.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: wgpu.ShaderStageCompute,
		}
		switch usage {
		case compute.BufferUsageUniform:
			entries[i].Buffer.Type = wgpu.BufferBindingTypeUniform
		case compute.BufferUsageStorageRead:
			entries[i].Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		default:
			entries[i].Buffer.Type = wgpu.BufferBindingTypeStorage
		}
	}
	p.layout, err = d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   src.Label + " Bind Group Layout",
		Entries: entries,
	})
	if err != nil {
		p.release()
		return nil, fmt.Errorf("wgpu: bind group layout for %q: %w", src.Label, err)
	}

	p.pipelineLayout, err = d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            src.Label + " Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{p.layout},
	})
	if err != nil {
		p.release()
		return nil, fmt.Errorf("wgpu: pipeline layout for %q: %w", src.Label, err)
	}

	for _, name := range src.EntryPoints {
		pipeline, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label:  src.Label + " " + name + " Compute Pipeline",
			Layout: p.pipelineLayout,
			Compute: wgpu.ProgrammableStageDescriptor{
				Module:     p.module,
				EntryPoint: name,
			},
		})
		if err != nil {
			p.release()
			return nil, fmt.Errorf("wgpu: pipeline %q: %w", name, err)
		}
		p.kernels[name] = &wgpuKernel{program: p, name: name, pipeline: pipeline}
	}
	return p, nil
}

func (d *wgpuDevice) CreateBuffer(label string, size int, usage compute.BufferUsage) (compute.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil, compute.ErrReleased
	}
	if size <= 0 {
		return nil, fmt.Errorf("wgpu: buffer %q: invalid size %d", label, size)
	}

	size = common.AlignUp(size, 4)
	flags := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	if usage == compute.BufferUsageUniform {
		flags = wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
	}
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             uint64(size),
		Usage:            flags,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create buffer %q: %w", label, err)
	}
	return &wgpuBuffer{device: d, label: label, size: size, usage: usage, buffer: buf}, nil
}

func (d *wgpuDevice) WriteBuffer(buf compute.Buffer, offset int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, err := d.bufferLocked(buf)
	if err != nil {
		return err
	}
	if offset < 0 || offset%4 != 0 || offset+len(data) > b.size {
		return fmt.Errorf("wgpu: write %d bytes at %d to %q (%d bytes): %w", len(data), offset, b.label, b.size, compute.ErrOutOfRange)
	}
	if len(data) == 0 {
		return nil
	}
	if err := d.flushLocked(); err != nil {
		return err
	}

	// Queue writes must cover whole words.
	if len(data)%4 != 0 {
		padded := make([]byte, common.AlignUp(len(data), 4))
		copy(padded, data)
		data = padded
	}
	d.queue.WriteBuffer(b.buffer, uint64(offset), data)
	return nil
}

func (d *wgpuDevice) ReadBuffer(buf compute.Buffer, offset int, dst []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, err := d.bufferLocked(buf)
	if err != nil {
		return err
	}
	if offset < 0 || offset%4 != 0 || offset+len(dst) > b.size {
		return fmt.Errorf("wgpu: read %d bytes at %d from %q (%d bytes): %w", len(dst), offset, b.label, b.size, compute.ErrOutOfRange)
	}
	if len(dst) == 0 {
		return nil
	}
	if b.usage == compute.BufferUsageUniform {
		return fmt.Errorf("wgpu: uniform buffer %q cannot be read back", b.label)
	}
	if err := d.flushLocked(); err != nil {
		return err
	}

	size := uint64(common.AlignUp(len(dst), 4))
	if err := d.ensureStagingLocked(size); err != nil {
		return err
	}

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("wgpu: readback encoder: %w", err)
	}
	encoder.CopyBufferToBuffer(b.buffer, uint64(offset), d.staging, 0, size)
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		return fmt.Errorf("wgpu: readback encoder: %w", err)
	}
	d.queue.Submit(commandBuffer)
	commandBuffer.Release()
	encoder.Release()

	var status wgpu.BufferMapAsyncStatus
	done := false
	d.staging.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
		done = true
	})
	for !done {
		d.device.Poll(true, nil)
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return fmt.Errorf("wgpu: map staging buffer for %q: status %d", b.label, status)
	}
	copy(dst, d.staging.GetMappedRange(0, uint(size)))
	d.staging.Unmap()
	return nil
}

func (d *wgpuDevice) Dispatch(kernel compute.Kernel, bindings []compute.Buffer, workItems int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	k, ok := kernel.(*wgpuKernel)
	if !ok || k.program.device != d {
		return compute.ErrForeignResource
	}
	if d.released || k.program.released {
		return compute.ErrReleased
	}
	if workItems <= 0 {
		return nil
	}

	bindGroup, err := k.program.bindGroupLocked(bindings)
	if err != nil {
		return fmt.Errorf("wgpu: kernel %q: %w", k.name, err)
	}

	if d.encoder == nil {
		if d.encoder, err = d.device.CreateCommandEncoder(nil); err != nil {
			return fmt.Errorf("wgpu: dispatch encoder: %w", err)
		}
	}

	groups := uint32((workItems + k.program.workgroupSize - 1) / k.program.workgroupSize)
	pass := d.encoder.BeginComputePass(nil)
	pass.SetPipeline(k.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(groups, 1, 1)
	pass.End()
	return nil
}

func (d *wgpuDevice) Finish() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return compute.ErrReleased
	}
	if err := d.flushLocked(); err != nil {
		return err
	}
	d.device.Poll(true, nil)
	return nil
}

func (d *wgpuDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return
	}
	d.released = true

	if d.encoder != nil {
		d.encoder.Release()
		d.encoder = nil
	}
	if d.staging != nil {
		d.staging.Release()
		d.staging = nil
	}
	d.queue.Release()
	d.device.Release()
	d.adapter.Release()
	d.instance.Release()
}

// flushLocked submits the pending dispatch encoder, if any.
func (d *wgpuDevice) flushLocked() error {
	if d.encoder == nil {
		return nil
	}
	encoder := d.encoder
	d.encoder = nil

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		return fmt.Errorf("wgpu: finish dispatch encoder: %w", err)
	}
	d.queue.Submit(commandBuffer)
	commandBuffer.Release()
	encoder.Release()
	return nil
}

// ensureStagingLocked grows the MapRead staging buffer to at least size bytes.
func (d *wgpuDevice) ensureStagingLocked(size uint64) error {
	if d.staging != nil && d.stagingSize >= size {
		return nil
	}
	if d.staging != nil {
		d.staging.Release()
		d.staging = nil
	}
	staging, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: d.label + " Staging Buffer",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		d.stagingSize = 0
		return fmt.Errorf("wgpu: staging buffer of %d bytes: %w", size, err)
	}
	d.staging = staging
	d.stagingSize = size
	return nil
}

func (d *wgpuDevice) bufferLocked(buf compute.Buffer) (*wgpuBuffer, error) {
	if d.released {
		return nil, compute.ErrReleased
	}
	b, ok := buf.(*wgpuBuffer)
	if !ok || b.device != d {
		return nil, compute.ErrForeignResource
	}
	if b.released {
		return nil, fmt.Errorf("buffer %q: %w", b.label, compute.ErrReleased)
	}
	return b, nil
}

func (b *wgpuBuffer) Label() string {
	return b.label
}

func (b *wgpuBuffer) Size() int {
	return b.size
}

func (b *wgpuBuffer) Release() {
	d := b.device
	d.mu.Lock()
	defer d.mu.Unlock()
	if b.released {
		return
	}
	b.released = true
	d.generation++
	if d.released {
		return
	}
	// Work recorded against the buffer must be submitted before the buffer goes away.
	if err := d.flushLocked(); err != nil {
		b.buffer.Release()
		return
	}
	b.buffer.Release()
}

func (p *wgpuProgram) Label() string {
	return p.label
}

func (p *wgpuProgram) Kernel(name string) (compute.Kernel, error) {
	p.device.mu.Lock()
	defer p.device.mu.Unlock()
	if p.released {
		return nil, compute.ErrReleased
	}
	k, ok := p.kernels[name]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", p.label, name, compute.ErrKernelNotFound)
	}
	return k, nil
}

func (p *wgpuProgram) Release() {
	p.device.mu.Lock()
	defer p.device.mu.Unlock()
	if p.released {
		return
	}
	if !p.device.released {
		_ = p.device.flushLocked()
	}
	p.release()
}

// release frees every object the program owns. The device lock must be held.
func (p *wgpuProgram) release() {
	p.released = true
	p.clearBindGroups()
	for _, k := range p.kernels {
		k.pipeline.Release()
	}
	p.kernels = nil
	if p.pipelineLayout != nil {
		p.pipelineLayout.Release()
	}
	if p.layout != nil {
		p.layout.Release()
	}
	if p.module != nil {
		p.module.Release()
	}
}

func (p *wgpuProgram) clearBindGroups() {
	for key, bg := range p.bindGroups {
		bg.Release()
		delete(p.bindGroups, key)
	}
}

// bindGroupLocked returns a cached bind group for bindings, creating it on first use.
func (p *wgpuProgram) bindGroupLocked(bindings []compute.Buffer) (*wgpu.BindGroup, error) {
	if p.bindGroupsGen != p.device.generation {
		p.clearBindGroups()
		p.bindGroupsGen = p.device.generation
	}

	var key strings.Builder
	entries := make([]wgpu.BindGroupEntry, len(bindings))
	for i, buf := range bindings {
		b, err := p.device.bufferLocked(buf)
		if err != nil {
			return nil, fmt.Errorf("binding %d: %w", i, err)
		}
		fmt.Fprintf(&key, "%p;", b)
		entries[i] = wgpu.BindGroupEntry{
			Binding: uint32(i),
			Buffer:  b.buffer,
			Offset:  0,
			Size:    wgpu.WholeSize,
		}
	}

	if bg, ok := p.bindGroups[key.String()]; ok {
		return bg, nil
	}
	bg, err := p.device.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   p.label + " Bind Group",
		Layout:  p.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, errors.Join(errors.New("create bind group"), err)
	}
	p.bindGroups[key.String()] = bg
	return bg, nil
}

func (k *wgpuKernel) Name() string {
	return k.name
}
