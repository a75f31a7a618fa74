package ik

import "github.com/Carmen-Shannon/oxy-ik/engine/profiler"

// GPUSolverOption is a functional option for configuring a GPUSolver during construction.
type GPUSolverOption func(*GPUSolver)

// WithGPUTolerance is an option builder that sets the convergence distance threshold.
// Non-positive values are ignored.
//
// Parameters:
//   - tolerance: the maximum acceptable tip-to-target distance
//
// Returns:
//   - GPUSolverOption: a function that applies the tolerance option to a GPU solver
func WithGPUTolerance(tolerance float32) GPUSolverOption {
	return func(s *GPUSolver) {
		if tolerance > 0 {
			s.tolerance = tolerance
		}
	}
}

// WithGPUMaxIterations is an option builder that sets the number of forward/backward rounds.
// Negative values are ignored.
//
// Parameters:
//   - maxIterations: the iteration cap
//
// Returns:
//   - GPUSolverOption: a function that applies the iteration option to a GPU solver
func WithGPUMaxIterations(maxIterations int) GPUSolverOption {
	return func(s *GPUSolver) {
		if maxIterations >= 0 {
			s.maxIterations = maxIterations
		}
	}
}

// WithBatchSize is an option builder that sets the number of chains per sub-batch.
// 0 derives the size from the device at Initialize; negative values are ignored.
//
// Parameters:
//   - batchSize: chains per dispatch, or 0 for automatic sizing
//
// Returns:
//   - GPUSolverOption: a function that applies the batch size option to a GPU solver
func WithBatchSize(batchSize int) GPUSolverOption {
	return func(s *GPUSolver) {
		if batchSize >= 0 {
			s.batchSize = batchSize
		}
	}
}

// WithProfiler is an option builder that attaches a profiler receiving one record per SolveBatch.
//
// Parameters:
//   - p: the profiler, or nil to disable profiling
//
// Returns:
//   - GPUSolverOption: a function that applies the profiler option to a GPU solver
func WithProfiler(p *profiler.Profiler) GPUSolverOption {
	return func(s *GPUSolver) {
		s.profiler = p
	}
}
