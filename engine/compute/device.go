// Package compute defines the compute-context collaborator consumed by the GPU IK solver:
// devices that compile kernel programs, own linear buffers and dispatch one kernel invocation
// per work item. A host implementation backed by a bounded group of worker goroutines lives here; GPU
// implementations live in the wgpu_backend and opencl_backend sub-packages.
package compute

// BufferUsage describes how a kernel binding accesses a buffer.
type BufferUsage int

const (
	// BufferUsageStorage is a read-write storage buffer.
	BufferUsageStorage BufferUsage = iota

	// BufferUsageStorageRead is a read-only storage buffer.
	BufferUsageStorageRead

	// BufferUsageUniform is a small constant parameter block.
	BufferUsageUniform
)

// HostKernel is the host implementation of one kernel entry point. It is invoked once per work
// item with the raw bytes of every bound buffer, in binding order. Invocations for different
// ids may run concurrently and must only write memory owned by their id.
type HostKernel func(id int, bindings [][]byte)

// ProgramSource bundles every representation of a kernel program so that any Device
// implementation can pick the one it executes.
type ProgramSource struct {
	// Label is a debug label used in device object names and error messages.
	Label string

	// EntryPoints lists the kernel names the program must expose.
	EntryPoints []string

	// Bindings lists the usage of each buffer binding, indexed by binding number.
	// Every kernel of the program shares this layout.
	Bindings []BufferUsage

	// WorkgroupSize is the @workgroup_size declared by the WGSL entry points.
	WorkgroupSize int

	// WGSL is the WebGPU shading language source.
	WGSL string

	// OpenCL is the OpenCL C source.
	OpenCL string

	// Host maps entry point names to their Go implementations.
	Host map[string]HostKernel
}

// Buffer is a linear device allocation.
type Buffer interface {
	// Label returns the debug label the buffer was created with.
	Label() string

	// Size returns the buffer size in bytes.
	Size() int

	// Release frees the device memory. Calling Release twice is a no-op.
	Release()
}

// Kernel is a compiled entry point of a Program.
type Kernel interface {
	// Name returns the entry point name.
	Name() string
}

// Program is a compiled kernel program.
type Program interface {
	// Label returns the debug label of the program.
	Label() string

	// Kernel looks up a compiled entry point by name.
	//
	// Parameters:
	//   - name: the entry point name
	//
	// Returns:
	//   - Kernel: the kernel
	//   - error: ErrKernelNotFound if the program has no such entry point
	Kernel(name string) (Kernel, error)

	// Release frees the compiled program and its kernels.
	Release()
}

// Device is a compute context able to run data-parallel kernels over buffers it owns.
// Operations are executed in submission order. Implementations are not required to be safe
// for concurrent use.
type Device interface {
	// Name returns a human readable device description.
	Name() string

	// ComputeUnits returns the number of parallel compute units the device reports.
	ComputeUnits() int

	// CreateProgram compiles a kernel program.
	//
	// Parameters:
	//   - src: the program sources
	//
	// Returns:
	//   - Program: the compiled program
	//   - error: an error if compilation failed
	CreateProgram(src ProgramSource) (Program, error)

	// CreateBuffer allocates a zero-initialized device buffer.
	//
	// Parameters:
	//   - label: a debug label
	//   - size: the size in bytes (rounded up to a multiple of 4)
	//   - usage: how kernels access the buffer
	//
	// Returns:
	//   - Buffer: the new buffer
	//   - error: an error if the allocation failed
	CreateBuffer(label string, size int, usage BufferUsage) (Buffer, error)

	// WriteBuffer copies data from host memory into buf at the given byte offset.
	WriteBuffer(buf Buffer, offset int, data []byte) error

	// ReadBuffer copies len(dst) bytes from buf at the given byte offset into dst, waiting for
	// all previously submitted work to complete.
	ReadBuffer(buf Buffer, offset int, dst []byte) error

	// Dispatch runs kernel once for each work item in [0, workItems) with bindings bound in order.
	Dispatch(kernel Kernel, bindings []Buffer, workItems int) error

	// Finish blocks until all submitted work has completed.
	Finish() error

	// Release frees the device and everything it still owns.
	Release()
}
