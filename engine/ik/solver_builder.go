package ik

// SolverOption is a functional option for configuring a CPU Solver during construction.
type SolverOption func(*Solver)

// WithTolerance is an option builder that sets the convergence distance threshold.
// Non-positive values are ignored.
//
// Parameters:
//   - tolerance: the maximum acceptable tip-to-target distance
//
// Returns:
//   - SolverOption: a function that applies the tolerance option to a solver
func WithTolerance(tolerance float32) SolverOption {
	return func(s *Solver) {
		if tolerance > 0 {
			s.tolerance = tolerance
		}
	}
}

// WithMaxIterations is an option builder that sets the cap on forward/backward passes.
// Negative values are ignored.
//
// Parameters:
//   - maxIterations: the iteration cap
//
// Returns:
//   - SolverOption: a function that applies the iteration option to a solver
func WithMaxIterations(maxIterations int) SolverOption {
	return func(s *Solver) {
		if maxIterations >= 0 {
			s.maxIterations = maxIterations
		}
	}
}
