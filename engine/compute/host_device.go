package compute

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-ik/common"
	"github.com/gogpu/naga"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/cpu"
)

// hostDevice is the implementation of Device that executes HostKernels on the CPU.
type hostDevice struct {
	mu *sync.Mutex

	workers  int
	validate bool
	released bool
}

// hostBuffer is a word-aligned host allocation.
type hostBuffer struct {
	device   *hostDevice
	label    string
	usage    BufferUsage
	words    []uint32
	data     []byte
	released bool
}

// hostProgram holds the Go kernels resolved from a ProgramSource.
type hostProgram struct {
	device   *hostDevice
	label    string
	kernels  map[string]*hostKernel
	released bool
}

type hostKernel struct {
	program *hostProgram
	name    string
	fn      HostKernel
}

var _ Device = &hostDevice{}

// NewHostDevice creates a Device that runs kernel programs on a bounded group of worker
// goroutines, one kernel invocation per work item. It is the reference backend and the
// fallback when no GPU is available.
//
// Parameters:
//   - options: variadic list of HostDeviceOption functions to configure the device
//
// Returns:
//   - Device: the host device
func NewHostDevice(options ...HostDeviceOption) Device {
	d := &hostDevice{
		mu: &sync.Mutex{},
	}
	for _, opt := range options {
		opt(d)
	}
	d.workers = common.Coalesce(d.workers, runtime.GOMAXPROCS(0))
	return d
}

func (d *hostDevice) Name() string {
	var features []string
	switch {
	case cpu.X86.HasAVX512F:
		features = append(features, "avx512")
	case cpu.X86.HasAVX2:
		features = append(features, "avx2")
	case cpu.ARM64.HasASIMD:
		features = append(features, "neon")
	}
	if len(features) == 0 {
		return fmt.Sprintf("host %s/%s x%d", runtime.GOOS, runtime.GOARCH, d.workers)
	}
	return fmt.Sprintf("host %s/%s x%d (%s)", runtime.GOOS, runtime.GOARCH, d.workers, strings.Join(features, ","))
}

func (d *hostDevice) ComputeUnits() int {
	return d.workers
}

func (d *hostDevice) CreateProgram(src ProgramSource) (Program, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil, ErrReleased
	}

	if d.validate && src.WGSL != "" {
		if _, err := naga.Compile(src.WGSL); err != nil {
			return nil, fmt.Errorf("program %q: invalid WGSL: %w", src.Label, err)
		}
	}

	p := &hostProgram{
		device:  d,
		label:   src.Label,
		kernels: make(map[string]*hostKernel, len(src.EntryPoints)),
	}
	for _, name := range src.EntryPoints {
		fn, ok := src.Host[name]
		if !ok || fn == nil {
			return nil, fmt.Errorf("program %q: no host implementation for %q: %w", src.Label, name, ErrKernelNotFound)
		}
		p.kernels[name] = &hostKernel{program: p, name: name, fn: fn}
	}
	return p, nil
}

func (d *hostDevice) CreateBuffer(label string, size int, usage BufferUsage) (Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil, ErrReleased
	}
	if size < 0 {
		return nil, fmt.Errorf("buffer %q: negative size %d", label, size)
	}

	words := make([]uint32, common.AlignUp(size, 4)/4)
	b := &hostBuffer{
		device: d,
		label:  label,
		usage:  usage,
		words:  words,
	}
	if len(words) > 0 {
		b.data = common.SliceToBytes(words)
	}
	return b, nil
}

func (d *hostDevice) WriteBuffer(buf Buffer, offset int, data []byte) error {
	b, err := d.buffer(buf)
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(data) > len(b.data) {
		return fmt.Errorf("write %d bytes at %d into %q (%d bytes): %w", len(data), offset, b.label, len(b.data), ErrOutOfRange)
	}
	copy(b.data[offset:], data)
	return nil
}

func (d *hostDevice) ReadBuffer(buf Buffer, offset int, dst []byte) error {
	b, err := d.buffer(buf)
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(dst) > len(b.data) {
		return fmt.Errorf("read %d bytes at %d from %q (%d bytes): %w", len(dst), offset, b.label, len(b.data), ErrOutOfRange)
	}
	copy(dst, b.data[offset:])
	return nil
}

func (d *hostDevice) Dispatch(kernel Kernel, bindings []Buffer, workItems int) error {
	k, ok := kernel.(*hostKernel)
	if !ok || k.program.device != d {
		return ErrForeignResource
	}
	if k.program.released {
		return ErrReleased
	}

	views := make([][]byte, len(bindings))
	for i, buf := range bindings {
		b, err := d.buffer(buf)
		if err != nil {
			return fmt.Errorf("kernel %q binding %d: %w", k.name, i, err)
		}
		views[i] = b.data
	}

	d.mu.Lock()
	released := d.released
	d.mu.Unlock()
	if released {
		return ErrReleased
	}

	// Dispatch is synchronous, so submission order is execution order.
	d.parallelFor(workItems, func(id int) {
		k.fn(id, views)
	})
	return nil
}

// parallelFor calls fn for every id in [0, n). Workers claim ids from a shared counter so
// chains of uneven length balance across goroutines.
func (d *hostDevice) parallelFor(n int, fn func(id int)) {
	if n <= 0 {
		return
	}
	workers := min(d.workers, n)
	if workers == 1 {
		for id := range n {
			fn(id)
		}
		return
	}

	var next atomic.Int64
	var g errgroup.Group
	g.SetLimit(workers)
	for range workers {
		g.Go(func() error {
			for {
				id := int(next.Add(1) - 1)
				if id >= n {
					return nil
				}
				fn(id)
			}
		})
	}
	_ = g.Wait()
}

func (d *hostDevice) Finish() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return ErrReleased
	}
	return nil
}

func (d *hostDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return
	}
	d.released = true
}

// buffer validates that buf is a live buffer owned by d.
func (d *hostDevice) buffer(buf Buffer) (*hostBuffer, error) {
	b, ok := buf.(*hostBuffer)
	if !ok || b.device != d {
		return nil, ErrForeignResource
	}
	if b.released {
		return nil, fmt.Errorf("buffer %q: %w", b.label, ErrReleased)
	}
	return b, nil
}

func (b *hostBuffer) Label() string {
	return b.label
}

func (b *hostBuffer) Size() int {
	return len(b.data)
}

func (b *hostBuffer) Release() {
	b.released = true
	b.words = nil
	b.data = nil
}

func (p *hostProgram) Label() string {
	return p.label
}

func (p *hostProgram) Kernel(name string) (Kernel, error) {
	if p.released {
		return nil, ErrReleased
	}
	k, ok := p.kernels[name]
	if !ok {
		return nil, fmt.Errorf("program %q: %q: %w", p.label, name, ErrKernelNotFound)
	}
	return k, nil
}

func (p *hostProgram) Release() {
	p.released = true
}

func (k *hostKernel) Name() string {
	return k.name
}
