//go:build opencl

package opencl_backend

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-ik/common"
	"github.com/Carmen-Shannon/oxy-ik/engine/compute"
	"github.com/jgillich/go-opencl/cl"
)

// clDevice is the implementation of compute.Device on an OpenCL command queue.
// Transfers are blocking; kernels are enqueued in order on a single in-order queue.
type clDevice struct {
	mu *sync.Mutex

	device  *cl.Device
	context *cl.Context
	queue   *cl.CommandQueue

	cpuOnly      bool
	buildOptions string
	released     bool
}

type clBuffer struct {
	device   *clDevice
	label    string
	size     int
	mem      *cl.MemObject
	released bool
}

type clProgram struct {
	device   *clDevice
	label    string
	program  *cl.Program
	kernels  map[string]*clKernel
	released bool
}

type clKernel struct {
	program *clProgram
	name    string
	kernel  *cl.Kernel
}

var _ compute.Device = &clDevice{}

// NewDevice opens the first OpenCL GPU device of any platform, falling back to a CPU device.
//
// Parameters:
//   - options: variadic list of DeviceOption functions to configure the device
//
// Returns:
//   - compute.Device: the OpenCL device
//   - error: an error if no platform or device is available
func NewDevice(options ...DeviceOption) (compute.Device, error) {
	d := &clDevice{
		mu: &sync.Mutex{},
	}
	for _, opt := range options {
		opt(d)
	}

	platforms, err := cl.GetPlatforms()
	if err != nil {
		msg := "opencl: querying platforms"
		if strings.Contains(err.Error(), "-1001") {
			msg += ": no ICD loader reported any platforms"
		}
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	if len(platforms) == 0 {
		return nil, errors.New("opencl: no platforms available")
	}

	types := []cl.DeviceType{cl.DeviceTypeGPU, cl.DeviceTypeCPU}
	if d.cpuOnly {
		types = types[1:]
	}
	for _, typ := range types {
		for _, p := range platforms {
			devices, derr := p.GetDevices(typ)
			if derr != nil && derr != cl.ErrDeviceNotFound {
				continue
			}
			if len(devices) > 0 {
				d.device = devices[0]
				break
			}
		}
		if d.device != nil {
			break
		}
	}
	if d.device == nil {
		return nil, errors.New("opencl: no suitable devices found")
	}

	d.context, err = cl.CreateContext([]*cl.Device{d.device})
	if err != nil {
		return nil, fmt.Errorf("opencl: creating context: %w", err)
	}
	d.queue, err = d.context.CreateCommandQueue(d.device, 0)
	if err != nil {
		d.context.Release()
		return nil, fmt.Errorf("opencl: creating command queue: %w", err)
	}
	return d, nil
}

func (d *clDevice) Name() string {
	return "opencl:" + d.device.Name()
}

func (d *clDevice) ComputeUnits() int {
	return d.device.MaxComputeUnits()
}

func (d *clDevice) CreateProgram(src compute.ProgramSource) (compute.Program, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil, compute.ErrReleased
	}
	if src.OpenCL == "" {
		return nil, fmt.Errorf("opencl: program %q has no OpenCL source", src.Label)
	}

	program, err := d.context.CreateProgramWithSource([]string{src.OpenCL})
	if err != nil {
		return nil, fmt.Errorf("opencl: creating program %q: %w", src.Label, err)
	}
	if err := program.BuildProgram([]*cl.Device{d.device}, d.buildOptions); err != nil {
		program.Release()
		var buildErr cl.BuildError
		if errors.As(err, &buildErr) {
			return nil, fmt.Errorf("opencl: building program %q: %s", src.Label, string(buildErr))
		}
		return nil, fmt.Errorf("opencl: building program %q: %w", src.Label, err)
	}

	p := &clProgram{
		device:  d,
		label:   src.Label,
		program: program,
		kernels: make(map[string]*clKernel, len(src.EntryPoints)),
	}
	for _, name := range src.EntryPoints {
		k, err := program.CreateKernel(name)
		if err != nil {
			p.release()
			return nil, fmt.Errorf("opencl: creating kernel %q: %w", name, err)
		}
		p.kernels[name] = &clKernel{program: p, name: name, kernel: k}
	}
	return p, nil
}

func (d *clDevice) CreateBuffer(label string, size int, usage compute.BufferUsage) (compute.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil, compute.ErrReleased
	}
	if size <= 0 {
		return nil, fmt.Errorf("opencl: buffer %q: invalid size %d", label, size)
	}

	size = common.AlignUp(size, 4)
	flags := cl.MemReadWrite
	if usage != compute.BufferUsageStorage {
		flags = cl.MemReadOnly
	}
	mem, err := d.context.CreateEmptyBuffer(flags, size)
	if err != nil {
		return nil, fmt.Errorf("opencl: creating buffer %q: %w", label, err)
	}

	// Device buffers start zeroed like every other backend's.
	zero := make([]byte, size)
	if _, err := d.queue.EnqueueWriteBuffer(mem, true, 0, size, unsafe.Pointer(&zero[0]), nil); err != nil {
		mem.Release()
		return nil, fmt.Errorf("opencl: clearing buffer %q: %w", label, err)
	}
	return &clBuffer{device: d, label: label, size: size, mem: mem}, nil
}

func (d *clDevice) WriteBuffer(buf compute.Buffer, offset int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, err := d.bufferLocked(buf)
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(data) > b.size {
		return fmt.Errorf("opencl: write %d bytes at %d to %q (%d bytes): %w", len(data), offset, b.label, b.size, compute.ErrOutOfRange)
	}
	if len(data) == 0 {
		return nil
	}
	if _, err := d.queue.EnqueueWriteBuffer(b.mem, true, offset, len(data), unsafe.Pointer(&data[0]), nil); err != nil {
		return fmt.Errorf("opencl: write %q: %w", b.label, err)
	}
	return nil
}

func (d *clDevice) ReadBuffer(buf compute.Buffer, offset int, dst []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, err := d.bufferLocked(buf)
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(dst) > b.size {
		return fmt.Errorf("opencl: read %d bytes at %d from %q (%d bytes): %w", len(dst), offset, b.label, b.size, compute.ErrOutOfRange)
	}
	if len(dst) == 0 {
		return nil
	}
	if _, err := d.queue.EnqueueReadBuffer(b.mem, true, offset, len(dst), unsafe.Pointer(&dst[0]), nil); err != nil {
		return fmt.Errorf("opencl: read %q: %w", b.label, err)
	}
	return nil
}

func (d *clDevice) Dispatch(kernel compute.Kernel, bindings []compute.Buffer, workItems int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	k, ok := kernel.(*clKernel)
	if !ok || k.program.device != d {
		return compute.ErrForeignResource
	}
	if d.released || k.program.released {
		return compute.ErrReleased
	}
	if workItems <= 0 {
		return nil
	}

	for i, buf := range bindings {
		b, err := d.bufferLocked(buf)
		if err != nil {
			return fmt.Errorf("opencl: kernel %q binding %d: %w", k.name, i, err)
		}
		if err := k.kernel.SetArgBuffer(i, b.mem); err != nil {
			return fmt.Errorf("opencl: kernel %q binding %d: %w", k.name, i, err)
		}
	}
	if _, err := d.queue.EnqueueNDRangeKernel(k.kernel, nil, []int{workItems}, nil, nil); err != nil {
		return fmt.Errorf("opencl: enqueue %q: %w", k.name, err)
	}
	return nil
}

func (d *clDevice) Finish() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return compute.ErrReleased
	}
	return d.queue.Finish()
}

func (d *clDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return
	}
	d.released = true
	_ = d.queue.Finish()
	d.queue.Release()
	d.context.Release()
}

func (d *clDevice) bufferLocked(buf compute.Buffer) (*clBuffer, error) {
	if d.released {
		return nil, compute.ErrReleased
	}
	b, ok := buf.(*clBuffer)
	if !ok || b.device != d {
		return nil, compute.ErrForeignResource
	}
	if b.released {
		return nil, fmt.Errorf("buffer %q: %w", b.label, compute.ErrReleased)
	}
	return b, nil
}

func (b *clBuffer) Label() string {
	return b.label
}

func (b *clBuffer) Size() int {
	return b.size
}

func (b *clBuffer) Release() {
	b.device.mu.Lock()
	defer b.device.mu.Unlock()
	if b.released {
		return
	}
	b.released = true
	b.mem.Release()
}

func (p *clProgram) Label() string {
	return p.label
}

func (p *clProgram) Kernel(name string) (compute.Kernel, error) {
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

func (p *clProgram) Release() {
	p.device.mu.Lock()
	defer p.device.mu.Unlock()
	if p.released {
		return
	}
	p.release()
}

// release frees the kernels and the program. The device lock must be held.
func (p *clProgram) release() {
	p.released = true
	for _, k := range p.kernels {
		k.kernel.Release()
	}
	p.kernels = nil
	p.program.Release()
}

func (k *clKernel) Name() string {
	return k.name
}
