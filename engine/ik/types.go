package ik

import (
	"github.com/Carmen-Shannon/oxy-ik/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// IKTarget is a per-request goal for a chain's tip.
type IKTarget struct {
	// Position is the desired tip position in skeleton space.
	Position mgl32.Vec3

	// Rotation is the desired tip orientation. Only meaningful when UseRotation is set;
	// the position-only FABRIK pass does not read it.
	Rotation mgl32.Quat

	// UseRotation requests that Rotation be honored.
	UseRotation bool

	// BlendWeight is the weight in [0,1] used when applying the solved pose.
	BlendWeight float32
}

// NewIKTarget returns a position target with identity rotation and full blend weight.
func NewIKTarget(position mgl32.Vec3) IKTarget {
	return IKTarget{
		Position:    position,
		Rotation:    mgl32.QuatIdent(),
		BlendWeight: 1,
	}
}

// IKSolveResult is the outcome of solving one chain.
type IKSolveResult struct {
	// Converged is true when the tip ended within tolerance of the target.
	Converged bool

	// Iterations is the number of forward/backward passes performed.
	Iterations int

	// FinalError is the final tip-to-target distance.
	FinalError float32

	// SolvedTransforms holds one local transform per chain bone, in chain order.
	SolvedTransforms []model.Transform
}

// GPUIKBatchEntry identifies one chain to solve in a batch. The skeleton and chain are borrowed
// for the duration of the SolveBatch call.
type GPUIKBatchEntry struct {
	Skeleton *model.Skeleton
	Chain    *IKChain
	Target   IKTarget
}

// BatchSolver is the capability shared by the CPU and GPU solvers: solve many independent
// chains and return one result per entry in input order.
type BatchSolver interface {
	// SolveBatch solves every entry.
	//
	// Parameters:
	//   - entries: the chains to solve
	//
	// Returns:
	//   - []IKSolveResult: one result per entry, in the same order
	SolveBatch(entries []GPUIKBatchEntry) []IKSolveResult
}
