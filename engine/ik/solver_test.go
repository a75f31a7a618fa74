package ik

import (
	"math/rand/v2"
	"testing"

	"github.com/Carmen-Shannon/oxy-ik/common"
	"github.com/Carmen-Shannon/oxy-ik/engine/model"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSolver_Options(t *testing.T) {
	s := NewSolver()
	assert.Equal(t, DefaultTolerance, s.Tolerance())
	assert.Equal(t, DefaultMaxIterations, s.MaxIterations())

	s = NewSolver(WithTolerance(0.01), WithMaxIterations(3))
	assert.Equal(t, float32(0.01), s.Tolerance())
	assert.Equal(t, 3, s.MaxIterations())

	s = NewSolver(WithTolerance(-1), WithMaxIterations(-1))
	assert.Equal(t, DefaultTolerance, s.Tolerance())
	assert.Equal(t, DefaultMaxIterations, s.MaxIterations())
}

func TestSolve_SingleSegmentAtFullReach(t *testing.T) {
	skel, chain := straightSkeleton(t, 2)

	result := Solve(skel, &chain, NewIKTarget(mgl32.Vec3{1, 0, 0}), DefaultTolerance, DefaultMaxIterations)

	assert.True(t, result.Converged)
	assert.Equal(t, 1, result.Iterations)
	assert.Less(t, result.FinalError, DefaultTolerance)
	assertVec3InDelta(t, mgl32.Vec3{1, 0, 0}, applied(skel, &chain, result)[1], 1e-4)
}

func TestSolve_ReachableConverges(t *testing.T) {
	skel, chain := straightSkeleton(t, 3)

	tests := []struct {
		name   string
		target mgl32.Vec3
	}{
		{"right angle elbow", mgl32.Vec3{1, 1, 0}},
		{"general bend", mgl32.Vec3{0.5, 1.2, 0}},
		{"out of plane", mgl32.Vec3{0.3, 1.1, -0.6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Solve(skel, &chain, NewIKTarget(tt.target), DefaultTolerance, 100)

			require.True(t, result.Converged)
			assert.GreaterOrEqual(t, result.Iterations, 1)
			assert.LessOrEqual(t, result.Iterations, 100)
			assert.Less(t, result.FinalError, DefaultTolerance)
			require.Len(t, result.SolvedTransforms, 3)

			positions := applied(skel, &chain, result)
			assertVec3InDelta(t, mgl32.Vec3{}, positions[0], 1e-5)
			assertVec3InDelta(t, tt.target, positions[2], 5e-3)
		})
	}
}

func TestSolve_UnreachableStretches(t *testing.T) {
	skel, chain := straightSkeleton(t, 3)
	target := mgl32.Vec3{5, 0, 0}

	result := Solve(skel, &chain, NewIKTarget(target), DefaultTolerance, DefaultMaxIterations)

	assert.False(t, result.Converged)
	assert.Zero(t, result.Iterations)
	assert.InDelta(t, 3.0, result.FinalError, 1e-5)

	positions := applied(skel, &chain, result)
	assertVec3InDelta(t, mgl32.Vec3{0, 0, 0}, positions[0], 1e-5)
	assertVec3InDelta(t, mgl32.Vec3{1, 0, 0}, positions[1], 1e-4)
	assertVec3InDelta(t, mgl32.Vec3{2, 0, 0}, positions[2], 1e-4)
}

func TestSolve_PreservesSegmentLengths(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for range 20 {
		skel, chain := bentSkeleton(t, r, 2+r.IntN(5))
		original := make([]mgl32.Vec3, chain.Len())
		chainWorldPositions(original, skel, &chain)

		target := original[0].Add(mgl32.Vec3{r.Float32()*6 - 3, r.Float32()*6 - 3, r.Float32()*6 - 3})
		result := Solve(skel, &chain, NewIKTarget(target), DefaultTolerance, DefaultMaxIterations)

		solved := applied(skel, &chain, result)
		assertVec3InDelta(t, original[0], solved[0], 1e-4)
		for i := 1; i < len(solved); i++ {
			assert.InDelta(t,
				common.Distance(original[i-1], original[i]),
				common.Distance(solved[i-1], solved[i]),
				1e-4, "segment %d of %s", i, chain.Name)
		}
	}
}

func TestSolve_IdempotentNearConvergence(t *testing.T) {
	skel, chain := straightSkeleton(t, 4)
	target := NewIKTarget(mgl32.Vec3{1.2, 1.5, 0.4})
	tolerance := float32(0.01)

	first := Solve(skel, &chain, target, tolerance/100, 200)
	require.True(t, first.Converged)

	ApplyResult(skel, &chain, first, 1)
	second := Solve(skel, &chain, target, tolerance, 1)

	assert.InDelta(t, first.FinalError, second.FinalError, float64(tolerance))
}

func TestSolve_ZeroIterationsReportsInitialError(t *testing.T) {
	skel, chain := straightSkeleton(t, 3)

	result := Solve(skel, &chain, NewIKTarget(mgl32.Vec3{1, 1, 0}), DefaultTolerance, 0)

	assert.False(t, result.Converged)
	assert.Zero(t, result.Iterations)
	assert.InDelta(t, common.Distance(mgl32.Vec3{0, 2, 0}, mgl32.Vec3{1, 1, 0}), result.FinalError, 1e-5)
	for i, bi := range chain.BoneIndices {
		assert.Equal(t, skel.Bones[bi].LocalTransform, result.SolvedTransforms[i])
	}
}

func TestSolve_CoincidentJointsFallBackToUp(t *testing.T) {
	skel := model.NewSkeleton()
	id := model.IdentityTransform()
	a := skel.AddBone("a", 0, model.RootParentIndex, id)
	b := skel.AddBone("b", 1, a, id)
	tip := id
	tip.Translation = mgl32.Vec3{0, 1, 0}
	skel.AddBone("c", 2, b, tip)
	chain := BuildChain(skel, 0, 2)

	result := Solve(skel, &chain, NewIKTarget(mgl32.Vec3{0.5, 0.5, 0}), DefaultTolerance, DefaultMaxIterations)

	require.Len(t, result.SolvedTransforms, 3)
	for _, tr := range result.SolvedTransforms {
		assert.False(t, isNaNVec(tr.Rotation.V) || isNaN(tr.Rotation.W))
	}
}

func TestSolve_InvalidInputYieldsZeroResult(t *testing.T) {
	skel, chain := straightSkeleton(t, 3)
	single := BuildChain(skel, 1, 1)
	bad := IKChain{Name: "bad", BoneIndices: []int32{0, 9}, RootBoneIndex: 0, TipBoneIndex: 9}

	for name, c := range map[string]*IKChain{"nil chain": nil, "single bone": &single, "out of range": &bad} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, IKSolveResult{}, Solve(skel, c, NewIKTarget(mgl32.Vec3{1, 0, 0}), DefaultTolerance, 10))
		})
	}
	assert.Equal(t, IKSolveResult{}, Solve(nil, &chain, NewIKTarget(mgl32.Vec3{1, 0, 0}), DefaultTolerance, 10))
}

func TestSolver_SolveBatchKeepsOrder(t *testing.T) {
	skel, chain := straightSkeleton(t, 3)
	entries := []GPUIKBatchEntry{
		{Skeleton: skel, Chain: &chain, Target: NewIKTarget(mgl32.Vec3{5, 0, 0})},
		{Skeleton: skel, Chain: &chain, Target: NewIKTarget(mgl32.Vec3{1, 1, 0})},
		{Skeleton: skel, Chain: nil, Target: NewIKTarget(mgl32.Vec3{1, 1, 0})},
	}

	results := NewSolver().SolveBatch(entries)

	require.Len(t, results, 3)
	assert.False(t, results[0].Converged)
	assert.InDelta(t, 3.0, results[0].FinalError, 1e-5)
	assert.True(t, results[1].Converged)
	assert.Equal(t, IKSolveResult{}, results[2])
}

func isNaN(f float32) bool { return f != f }

func isNaNVec(v mgl32.Vec3) bool { return isNaN(v[0]) || isNaN(v[1]) || isNaN(v[2]) }
