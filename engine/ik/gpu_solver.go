package ik

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-ik/common"
	"github.com/Carmen-Shannon/oxy-ik/engine/compute"
	"github.com/Carmen-Shannon/oxy-ik/engine/profiler"
)

const (
	// batchSizePerComputeUnit is the number of chains per compute unit used for automatic batch sizing.
	batchSizePerComputeUnit = 64

	// MinAutoBatchSize and MaxAutoBatchSize bound the automatically derived batch size.
	MinAutoBatchSize = 64
	MaxAutoBatchSize = 65536
)

// ErrNotInitialized is returned when a GPU solver is used before a successful Initialize.
var ErrNotInitialized = errors.New("ik: gpu solver not initialized")

// GPUSolver solves many chains per call on a compute device. Device buffers are allocated lazily,
// grow to the largest sub-batch seen and are reused until Shutdown.
//
// A GPUSolver serializes its own calls but is not meant to be shared between goroutines; use one
// solver per worker for parallel solving.
type GPUSolver struct {
	mu *sync.Mutex

	device        compute.Device
	tolerance     float32
	maxIterations int
	batchSize     int
	profiler      *profiler.Profiler

	program compute.Program
	prepare compute.Kernel
	forward compute.Kernel
	back    compute.Kernel
	errKern compute.Kernel

	buffers     [bindingCount]compute.Buffer
	capJoints   int
	capSegments int
	capChains   int

	packer     batchPacker
	errors     []float32
	iterations []uint32

	initialized bool
}

var _ BatchSolver = &GPUSolver{}

// NewGPUSolver creates a GPU solver bound to device. The solver does nothing on the device until
// Initialize is called.
//
// Parameters:
//   - device: the compute device the solver dispatches to
//   - options: variadic list of GPUSolverOption functions to configure the solver
//
// Returns:
//   - *GPUSolver: the configured, uninitialized solver
func NewGPUSolver(device compute.Device, options ...GPUSolverOption) *GPUSolver {
	s := &GPUSolver{
		mu:            &sync.Mutex{},
		device:        device,
		tolerance:     DefaultTolerance,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Initialize compiles the FABRIK program on the device and resolves its kernels.
// On failure every partially created resource is released and the solver stays uninitialized.
// Calling Initialize on an initialized solver is a no-op.
//
// Returns:
//   - error: an error if the device is missing or the program could not be built
func (s *GPUSolver) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	if s.device == nil {
		return errors.New("ik: gpu solver has no compute device")
	}

	program, err := s.device.CreateProgram(fabrikProgramSource())
	if err != nil {
		return fmt.Errorf("ik: failed to build fabrik program on %s: %w", s.device.Name(), err)
	}

	kernels := make([]compute.Kernel, 4)
	for i, name := range []string{kernelPrepare, kernelForward, kernelBackward, kernelError} {
		if kernels[i], err = program.Kernel(name); err != nil {
			program.Release()
			return fmt.Errorf("ik: failed to resolve kernel %s: %w", name, err)
		}
	}

	var params GPUIKParams
	paramsBuf, err := s.device.CreateBuffer("ik_params", params.Size(), compute.BufferUsageUniform)
	if err != nil {
		program.Release()
		return fmt.Errorf("ik: failed to create params buffer: %w", err)
	}

	s.program = program
	s.prepare, s.forward, s.back, s.errKern = kernels[0], kernels[1], kernels[2], kernels[3]
	s.buffers[bindingParams] = paramsBuf
	s.batchSize = common.Coalesce(s.batchSize, autoBatchSize(s.device.ComputeUnits()))
	s.initialized = true

	Logger().Debug("ik: gpu solver initialized", "device", s.device.Name(), "batch_size", s.batchSize)
	return nil
}

// IsInitialized reports whether Initialize succeeded and Shutdown has not been called since.
func (s *GPUSolver) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// BatchSize returns the number of chains dispatched per sub-batch. Before Initialize it returns
// the explicitly configured size, or 0 when the size is derived from the device.
func (s *GPUSolver) BatchSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batchSize
}

// Tolerance returns the convergence distance threshold.
func (s *GPUSolver) Tolerance() float32 {
	return s.tolerance
}

// MaxIterations returns the cap on forward/backward passes.
func (s *GPUSolver) MaxIterations() int {
	return s.maxIterations
}

// SolveBatch solves every entry on the device and returns one result per entry in input order.
// Results are interchangeable with the CPU solver's. An uninitialized solver, or a device failure,
// logs a warning and yields an empty slice; use TrySolveBatch to receive the error instead.
//
// Parameters:
//   - entries: the chains to solve
//
// Returns:
//   - []IKSolveResult: one result per entry, or an empty slice on failure
func (s *GPUSolver) SolveBatch(entries []GPUIKBatchEntry) []IKSolveResult {
	results, err := s.TrySolveBatch(entries)
	if err != nil {
		Logger().Warn("ik: gpu batch solve failed", "entries", len(entries), "error", err)
		return []IKSolveResult{}
	}
	return results
}

// TrySolveBatch is SolveBatch with the failure reported as an error.
//
// Parameters:
//   - entries: the chains to solve
//
// Returns:
//   - []IKSolveResult: one result per entry, in input order
//   - error: ErrNotInitialized, or a wrapped device error
func (s *GPUSolver) TrySolveBatch(entries []GPUIKBatchEntry) ([]IKSolveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	start := time.Now()
	results := make([]IKSolveResult, len(entries))
	for offset := 0; offset < len(entries); offset += s.batchSize {
		end := min(offset+s.batchSize, len(entries))
		if err := s.solveSubBatch(entries[offset:end], results[offset:end]); err != nil {
			return nil, fmt.Errorf("ik: sub-batch [%d,%d): %w", offset, end, err)
		}
	}

	if s.profiler != nil {
		var iterations, converged int
		for i := range results {
			iterations += results[i].Iterations
			if results[i].Converged {
				converged++
			}
		}
		s.profiler.RecordBatch(len(entries), iterations, converged, time.Since(start))
	}
	return results, nil
}

// Shutdown releases the device buffers and the compiled program. The solver may be initialized
// again afterwards. Calling Shutdown twice is a no-op.
func (s *GPUSolver) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, buf := range s.buffers {
		if buf != nil {
			buf.Release()
			s.buffers[i] = nil
		}
	}
	s.capJoints, s.capSegments, s.capChains = 0, 0, 0

	if s.program != nil {
		s.program.Release()
		s.program = nil
	}
	s.prepare, s.forward, s.back, s.errKern = nil, nil, nil, nil
	s.initialized = false
}

// solveSubBatch runs one pack/upload/dispatch/readback cycle and writes the results into out,
// which has the same length as entries.
func (s *GPUSolver) solveSubBatch(entries []GPUIKBatchEntry, out []IKSolveResult) error {
	p := &s.packer
	p.pack(entries)
	chains := p.chainCount()

	if err := s.ensureCapacity(p.jointCount(), p.segmentCount(), chains); err != nil {
		return err
	}

	params := GPUIKParams{
		ChainCount:    uint32(chains),
		MaxIterations: uint32(s.maxIterations),
		Tolerance:     s.tolerance,
	}
	uploads := []struct {
		binding int
		data    []byte
	}{
		{bindingParams, params.Marshal()},
		{bindingPositionsA, p.positionBytes()},
		{bindingLengths, p.lengthBytes()},
		{bindingGeometry, p.geometryBytes()},
		{bindingMeta, p.metaBytes()},
	}
	for _, u := range uploads {
		if err := s.write(u.binding, u.data); err != nil {
			return err
		}
	}

	bindings := s.buffers[:]
	if err := s.device.Dispatch(s.prepare, bindings, chains); err != nil {
		return fmt.Errorf("dispatch %s: %w", kernelPrepare, err)
	}
	for iter := 0; iter < s.maxIterations; iter++ {
		if err := s.device.Dispatch(s.forward, bindings, chains); err != nil {
			return fmt.Errorf("dispatch %s: %w", kernelForward, err)
		}
		if err := s.device.Dispatch(s.back, bindings, chains); err != nil {
			return fmt.Errorf("dispatch %s: %w", kernelBackward, err)
		}
	}
	if err := s.device.Dispatch(s.errKern, bindings, chains); err != nil {
		return fmt.Errorf("dispatch %s: %w", kernelError, err)
	}

	if err := s.readBack(chains); err != nil {
		return err
	}

	for i := range entries {
		meta := p.meta[i]
		if meta.Flags&ChainFlagDegenerate != 0 {
			Logger().Warn("ik: refusing to solve invalid chain",
				"chain", chainName(entries[i].Chain), "joints", entries[i].Chain.Len())
			out[i] = IKSolveResult{}
			continue
		}
		solved := p.positions[meta.JointOffset : meta.JointOffset+meta.JointCount]
		out[i] = IKSolveResult{
			Converged:        meta.Flags&ChainFlagConverged != 0,
			Iterations:       int(s.iterations[i]),
			FinalError:       s.errors[i],
			SolvedTransforms: SolvedLocalTransforms(entries[i].Skeleton, entries[i].Chain, solved),
		}
	}
	return nil
}

// readBack copies the solved positions, per-chain errors, iteration counts and flags into host memory.
func (s *GPUSolver) readBack(chains int) error {
	if cap(s.errors) < chains {
		s.errors = make([]float32, chains)
		s.iterations = make([]uint32, chains)
	}
	s.errors = s.errors[:chains]
	s.iterations = s.iterations[:chains]

	p := &s.packer
	reads := []struct {
		binding int
		dst     []byte
	}{
		{bindingPositionsA, p.positionBytes()},
		{bindingErrors, common.SliceToBytes(s.errors)},
		{bindingIterations, common.SliceToBytes(s.iterations)},
		{bindingMeta, p.metaBytes()},
	}
	for _, r := range reads {
		if len(r.dst) == 0 {
			continue
		}
		if err := s.device.ReadBuffer(s.buffers[r.binding], 0, r.dst); err != nil {
			return fmt.Errorf("read %s: %w", s.buffers[r.binding].Label(), err)
		}
	}
	return nil
}

func (s *GPUSolver) write(binding int, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	buf := s.buffers[binding]
	if err := s.device.WriteBuffer(buf, 0, data); err != nil {
		return fmt.Errorf("write %s: %w", buf.Label(), err)
	}
	return nil
}

// ensureCapacity grows the device buffers so they can hold joints, segments and chains.
// Buffers are only ever reallocated to a larger size; smaller batches reuse them as they are.
func (s *GPUSolver) ensureCapacity(joints, segments, chains int) error {
	joints, segments, chains = max(joints, 1), max(segments, 1), max(chains, 1)

	var (
		geometry GPUChainGeometry
		meta     GPUChainMeta
	)
	type bufferDesc struct {
		binding int
		label   string
		stride  int
		usage   compute.BufferUsage
	}
	grow := func(capacity *int, want int, descs ...bufferDesc) error {
		if want <= *capacity {
			return nil
		}
		for _, desc := range descs {
			if old := s.buffers[desc.binding]; old != nil {
				old.Release()
				s.buffers[desc.binding] = nil
			}
			buf, err := s.device.CreateBuffer(desc.label, want*desc.stride, desc.usage)
			if err != nil {
				*capacity = 0
				return fmt.Errorf("allocate %s for %d elements: %w", desc.label, want, err)
			}
			s.buffers[desc.binding] = buf
		}
		Logger().Debug("ik: grew gpu buffers", "from", *capacity, "to", want, "buffers", len(descs))
		*capacity = want
		return nil
	}

	if err := grow(&s.capJoints, joints,
		bufferDesc{bindingPositionsA, "ik_positions_a", 12, compute.BufferUsageStorage},
		bufferDesc{bindingPositionsB, "ik_positions_b", 12, compute.BufferUsageStorage},
	); err != nil {
		return err
	}
	if err := grow(&s.capSegments, segments,
		bufferDesc{bindingLengths, "ik_lengths", 4, compute.BufferUsageStorageRead},
	); err != nil {
		return err
	}
	return grow(&s.capChains, chains,
		bufferDesc{bindingGeometry, "ik_chain_geometry", geometry.Size(), compute.BufferUsageStorageRead},
		bufferDesc{bindingMeta, "ik_chain_meta", meta.Size(), compute.BufferUsageStorage},
		bufferDesc{bindingErrors, "ik_errors", 4, compute.BufferUsageStorage},
		bufferDesc{bindingIterations, "ik_iterations", 4, compute.BufferUsageStorage},
	)
}

// autoBatchSize derives a batch size from the device's compute unit count.
func autoBatchSize(computeUnits int) int {
	return common.Clamp(computeUnits*batchSizePerComputeUnit, MinAutoBatchSize, MaxAutoBatchSize)
}
