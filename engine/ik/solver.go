package ik

import (
	"github.com/Carmen-Shannon/oxy-ik/common"
	"github.com/Carmen-Shannon/oxy-ik/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// DefaultTolerance is the default convergence distance threshold.
	DefaultTolerance float32 = 0.001

	// DefaultMaxIterations is the default cap on forward/backward passes.
	DefaultMaxIterations = 10
)

// Solver is the single-chain CPU FABRIK solver. It holds only configuration, so one Solver may
// be used from several goroutines as long as the skeletons they read are not mutated concurrently.
type Solver struct {
	tolerance     float32
	maxIterations int
}

var _ BatchSolver = &Solver{}

// NewSolver creates a CPU solver configured with the given options.
//
// Parameters:
//   - options: variadic list of SolverOption functions to configure the solver
//
// Returns:
//   - *Solver: the configured solver
func NewSolver(options ...SolverOption) *Solver {
	s := &Solver{
		tolerance:     DefaultTolerance,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Tolerance returns the convergence distance threshold.
func (s *Solver) Tolerance() float32 {
	return s.tolerance
}

// MaxIterations returns the cap on forward/backward passes.
func (s *Solver) MaxIterations() int {
	return s.maxIterations
}

// Solve runs FABRIK for one chain with the solver's tolerance and iteration cap.
//
// Parameters:
//   - skel: the skeleton the chain belongs to
//   - chain: the chain to solve
//   - target: the goal for the chain's tip
//
// Returns:
//   - IKSolveResult: the solve outcome with one local transform per chain bone
func (s *Solver) Solve(skel *model.Skeleton, chain *IKChain, target IKTarget) IKSolveResult {
	return Solve(skel, chain, target, s.tolerance, s.maxIterations)
}

// SolveBatch solves every entry sequentially on the calling goroutine.
func (s *Solver) SolveBatch(entries []GPUIKBatchEntry) []IKSolveResult {
	results := make([]IKSolveResult, len(entries))
	for i := range entries {
		results[i] = s.Solve(entries[i].Skeleton, entries[i].Chain, entries[i].Target)
	}
	return results
}

// Solve runs the FABRIK algorithm for one chain.
//
// When the target lies farther from the chain root than the chain's total length the chain is
// stretched straight toward it without iterating: Converged is false, Iterations is 0 and
// FinalError is the distance beyond reach. Otherwise up to maxIterations forward/backward passes
// run, stopping early once the tip is closer than tolerance to the target.
// Invalid input (nil skeleton, invalid chain, fewer than two joints, bone indices outside the
// skeleton) logs a warning and yields a zero result.
//
// Parameters:
//   - skel: the skeleton the chain belongs to
//   - chain: the chain to solve
//   - target: the goal for the chain's tip
//   - tolerance: the convergence distance threshold
//   - maxIterations: the cap on forward/backward passes
//
// Returns:
//   - IKSolveResult: the solve outcome with one local transform per chain bone
func Solve(skel *model.Skeleton, chain *IKChain, target IKTarget, tolerance float32, maxIterations int) IKSolveResult {
	if !solvable(skel, chain) {
		Logger().Warn("ik: refusing to solve invalid chain", "chain", chainName(chain), "joints", chain.Len())
		return IKSolveResult{}
	}

	n := chain.Len()
	positions := make([]mgl32.Vec3, n)
	lengths := make([]float32, n-1)
	chainWorldPositions(positions, skel, chain)
	total := segmentLengths(lengths, positions)

	root := positions[0]
	dist := common.Distance(root, target.Position)

	var result IKSolveResult
	if dist > total {
		stretchToward(positions, lengths, root, target.Position)
		result.FinalError = dist - total
	} else {
		result.FinalError = common.Distance(positions[n-1], target.Position)
		for iter := 1; iter <= maxIterations; iter++ {
			reachForward(positions, positions, lengths, target.Position)
			reachBackward(positions, positions, lengths, root)

			result.Iterations = iter
			result.FinalError = common.Distance(positions[n-1], target.Position)
			if result.FinalError < tolerance {
				result.Converged = true
				break
			}
		}
	}

	result.SolvedTransforms = SolvedLocalTransforms(skel, chain, positions)
	return result
}

// solvable reports whether a chain can be solved against skel.
func solvable(skel *model.Skeleton, chain *IKChain) bool {
	return skel != nil && chain.IsValid() && chain.Len() >= 2 && chainFitsSkeleton(skel, chain)
}

func chainName(chain *IKChain) string {
	if chain == nil {
		return "<nil>"
	}
	return chain.Name
}
