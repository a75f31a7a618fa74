package ik

import (
	"github.com/Carmen-Shannon/oxy-ik/common"
	"github.com/Carmen-Shannon/oxy-ik/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// fallbackDirection is used when two joints coincide and no direction can be derived from them.
var fallbackDirection = mgl32.Vec3{0, 1, 0}

// reachForward pins the tip to target and walks towards the root, placing each joint on the line
// to its already placed successor at the fixed segment length. src holds the previous pose and
// dst receives the new one; they may alias.
func reachForward(dst, src []mgl32.Vec3, lengths []float32, target mgl32.Vec3) {
	n := len(dst)
	dst[n-1] = target
	for i := n - 2; i >= 0; i-- {
		dir := common.DirectionOr(dst[i+1], src[i], fallbackDirection)
		dst[i] = dst[i+1].Add(dir.Mul(lengths[i]))
	}
}

// reachBackward pins the root to root and walks towards the tip, placing each joint on the line
// from its already placed predecessor at the fixed segment length. src holds the pose produced
// by reachForward and dst receives the new one; they may alias.
func reachBackward(dst, src []mgl32.Vec3, lengths []float32, root mgl32.Vec3) {
	dst[0] = root
	for i := 1; i < len(dst); i++ {
		dir := common.DirectionOr(dst[i-1], src[i], fallbackDirection)
		dst[i] = dst[i-1].Add(dir.Mul(lengths[i-1]))
	}
}

// stretchToward lays the chain out in a straight line from root toward target.
func stretchToward(dst []mgl32.Vec3, lengths []float32, root, target mgl32.Vec3) {
	dir := common.DirectionOr(root, target, fallbackDirection)
	dst[0] = root
	for i := 1; i < len(dst); i++ {
		dst[i] = dst[i-1].Add(dir.Mul(lengths[i-1]))
	}
}

// segmentLengths fills lengths with the distances between consecutive positions and returns their sum.
func segmentLengths(lengths []float32, positions []mgl32.Vec3) float32 {
	var total float32
	for i := range lengths {
		lengths[i] = common.Distance(positions[i], positions[i+1])
		total += lengths[i]
	}
	return total
}

// SolvedLocalTransforms converts solved joint world positions into local transforms for the
// chain's bones. Joints are visited root to tip; for each joint except the tip, the rotation
// that turns its current bone direction (under the corrections already applied to its
// ancestors) into the solved direction is expressed in the parent's space and pre-multiplied
// onto the bone's local rotation. Translations, scales and the tip rotation are left as they are.
// Both the CPU and GPU solvers use this conversion.
//
// Parameters:
//   - skel: the skeleton the chain belongs to
//   - chain: a valid chain whose consecutive bones are parent and child
//   - solved: solved world positions, one per chain bone
//
// Returns:
//   - []model.Transform: one local transform per chain bone, in chain order
func SolvedLocalTransforms(skel *model.Skeleton, chain *IKChain, solved []mgl32.Vec3) []model.Transform {
	n := chain.Len()
	out := make([]model.Transform, n)
	for i, bi := range chain.BoneIndices {
		out[i] = skel.Bones[bi].LocalTransform
	}
	if n < 2 || len(solved) != n {
		return out
	}

	parentWorld := model.IdentityTransform()
	if parent := skel.Bones[chain.BoneIndices[0]].ParentIndex; skel.ValidIndex(parent) {
		parentWorld = skel.WorldTransform(parent)
	}

	world := parentWorld.Compose(out[0])
	for i := 0; i < n-1; i++ {
		next := world.Compose(out[i+1])
		current := next.Translation.Sub(world.Translation)
		desired := solved[i+1].Sub(solved[i])
		if delta, ok := common.QuatFromTo(current, desired); ok {
			p := parentWorld.Rotation
			out[i].Rotation = p.Inverse().Mul(delta).Mul(p).Mul(out[i].Rotation).Normalize()
			world = parentWorld.Compose(out[i])
		}
		parentWorld = world
		world = world.Compose(out[i+1])
	}
	return out
}

// chainWorldPositions writes the current world position of every chain bone into dst.
func chainWorldPositions(dst []mgl32.Vec3, skel *model.Skeleton, chain *IKChain) {
	for i, bi := range chain.BoneIndices {
		dst[i] = skel.WorldPosition(bi)
	}
}

// chainFitsSkeleton reports whether every bone index of the chain addresses a bone of skel.
func chainFitsSkeleton(skel *model.Skeleton, chain *IKChain) bool {
	for _, bi := range chain.BoneIndices {
		if !skel.ValidIndex(bi) {
			return false
		}
	}
	return true
}
