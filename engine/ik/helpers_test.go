package ik

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/Carmen-Shannon/oxy-ik/engine/model"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// straightSkeleton builds a single-branch skeleton of unit-length bones pointing up +Y and the
// chain spanning all of it.
func straightSkeleton(t *testing.T, joints int) (*model.Skeleton, IKChain) {
	t.Helper()
	skel := model.NewSkeleton()
	parent := model.RootParentIndex
	for i := range joints {
		local := model.IdentityTransform()
		if i > 0 {
			local.Translation = mgl32.Vec3{0, 1, 0}
		}
		parent = skel.AddBone(fmt.Sprintf("bone%d", i), int32(i), parent, local)
	}
	chain := BuildChain(skel, 0, int32(joints-1))
	require.True(t, chain.IsValid())
	return skel, chain
}

// bentSkeleton builds a chain whose bones carry a mix of rotations, translations and a scaled,
// offset root so conversions exercise non-trivial parent spaces.
func bentSkeleton(t *testing.T, r *rand.Rand, joints int) (*model.Skeleton, IKChain) {
	t.Helper()
	skel := model.NewSkeleton()
	pelvis := model.IdentityTransform()
	pelvis.Translation = mgl32.Vec3{r.Float32(), 1 + r.Float32(), r.Float32()}
	pelvis.Rotation = mgl32.QuatRotate(r.Float32(), mgl32.Vec3{0, 0, 1})
	parent := skel.AddBone("pelvis", 100, model.RootParentIndex, pelvis)

	for i := range joints {
		local := model.IdentityTransform()
		local.Translation = mgl32.Vec3{0.1 * r.Float32(), 0.5 + r.Float32(), 0}
		local.Rotation = mgl32.QuatRotate(r.Float32()-0.5, mgl32.Vec3{1, 0, 1}.Normalize())
		parent = skel.AddBone(fmt.Sprintf("j%d", i), int32(i), parent, local)
	}
	chain := BuildChain(skel, 1, int32(joints))
	require.True(t, chain.IsValid())
	return skel, chain
}

// applied returns the chain's world positions after applying result to a copy of skel.
func applied(skel *model.Skeleton, chain *IKChain, result IKSolveResult) []mgl32.Vec3 {
	c := skel.Clone()
	ApplyResult(c, chain, result, 1)
	out := make([]mgl32.Vec3, chain.Len())
	chainWorldPositions(out, c, chain)
	return out
}

func assertVec3InDelta(t *testing.T, expected, actual mgl32.Vec3, delta float64, msgAndArgs ...any) {
	t.Helper()
	for i := range 3 {
		assert.InDelta(t, expected[i], actual[i], delta, msgAndArgs...)
	}
}

func assertResultsInDelta(t *testing.T, expected, actual IKSolveResult, delta float64, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, expected.Converged, actual.Converged, msgAndArgs...)
	assert.Equal(t, expected.Iterations, actual.Iterations, msgAndArgs...)
	assert.InDelta(t, expected.FinalError, actual.FinalError, delta, msgAndArgs...)
	require.Len(t, actual.SolvedTransforms, len(expected.SolvedTransforms), msgAndArgs...)
	for i := range expected.SolvedTransforms {
		e, a := expected.SolvedTransforms[i], actual.SolvedTransforms[i]
		assertVec3InDelta(t, e.Translation, a.Translation, delta, msgAndArgs...)
		assertVec3InDelta(t, e.Scale, a.Scale, delta, msgAndArgs...)
		assert.InDelta(t, e.Rotation.W, a.Rotation.W, delta, msgAndArgs...)
		assertVec3InDelta(t, e.Rotation.V, a.Rotation.V, delta, msgAndArgs...)
	}
}
