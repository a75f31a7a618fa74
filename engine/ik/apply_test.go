package ik

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-ik/engine/model"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func manualResult() IKSolveResult {
	return IKSolveResult{
		Converged: true,
		SolvedTransforms: []model.Transform{
			{
				Translation: mgl32.Vec3{0, 2, 0},
				Rotation:    mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 0, 1}),
				Scale:       mgl32.Vec3{3, 3, 3},
			},
			{
				Translation: mgl32.Vec3{0, 3, 0},
				Rotation:    mgl32.QuatIdent(),
				Scale:       mgl32.Vec3{1, 1, 1},
			},
		},
	}
}

func TestApplyResult_BlendBoundaries(t *testing.T) {
	tests := []struct {
		name   string
		weight float32
	}{
		{"zero", 0},
		{"negative clamps to zero", -0.5},
		{"one", 1},
		{"above one clamps to one", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			skel, chain := straightSkeleton(t, 2)
			before := skel.Clone()
			result := manualResult()

			ApplyResult(skel, &chain, result, tt.weight)

			for i, bi := range chain.BoneIndices {
				if tt.weight <= 0 {
					assert.Equal(t, before.Bones[bi].LocalTransform, skel.Bones[bi].LocalTransform)
				} else {
					assert.Equal(t, result.SolvedTransforms[i], skel.Bones[bi].LocalTransform)
				}
			}
		})
	}
}

func TestApplyResult_HalfWeightIsMidpoint(t *testing.T) {
	skel, chain := straightSkeleton(t, 2)

	ApplyResult(skel, &chain, manualResult(), 0.5)

	root := skel.Bones[0].LocalTransform
	assertVec3InDelta(t, mgl32.Vec3{0, 1, 0}, root.Translation, 1e-6)
	assertVec3InDelta(t, mgl32.Vec3{2, 2, 2}, root.Scale, 1e-6)
	want := mgl32.QuatRotate(math.Pi/4, mgl32.Vec3{0, 0, 1})
	assert.InDelta(t, want.W, root.Rotation.W, 1e-5)
	assertVec3InDelta(t, want.V, root.Rotation.V, 1e-5)

	assertVec3InDelta(t, mgl32.Vec3{0, 2, 0}, skel.Bones[1].LocalTransform.Translation, 1e-6)
}

func TestApplyResult_MismatchIsNoop(t *testing.T) {
	skel, chain := straightSkeleton(t, 3)
	before := skel.Clone()

	ApplyResult(skel, &chain, manualResult(), 1)
	ApplyResult(skel, &chain, IKSolveResult{}, 1)
	ApplyResult(skel, nil, manualResult(), 1)
	ApplyResult(nil, &chain, manualResult(), 1)

	assert.Equal(t, before.Bones, skel.Bones)
}

func TestApplyResult_ChainOutsideSkeletonIsNoop(t *testing.T) {
	skel, _ := straightSkeleton(t, 2)
	before := skel.Clone()
	chain := IKChain{Name: "stale", BoneIndices: []int32{0, 7}, RootBoneIndex: 0, TipBoneIndex: 7}

	ApplyResult(skel, &chain, manualResult(), 1)

	assert.Equal(t, before.Bones, skel.Bones)
}

func TestApplyResults_UsesTargetWeights(t *testing.T) {
	skelA, chainA := straightSkeleton(t, 2)
	skelB, chainB := straightSkeleton(t, 2)
	beforeB := skelB.Clone()

	full := NewIKTarget(mgl32.Vec3{1, 0, 0})
	none := NewIKTarget(mgl32.Vec3{1, 0, 0})
	none.BlendWeight = 0

	entries := []GPUIKBatchEntry{
		{Skeleton: skelA, Chain: &chainA, Target: full},
		{Skeleton: skelB, Chain: &chainB, Target: none},
	}
	ApplyResults(entries, []IKSolveResult{manualResult(), manualResult()})

	assert.Equal(t, manualResult().SolvedTransforms[0], skelA.Bones[0].LocalTransform)
	assert.Equal(t, beforeB.Bones, skelB.Bones)
}
