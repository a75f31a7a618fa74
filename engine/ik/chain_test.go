package ik

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-ik/engine/model"
	"github.com/stretchr/testify/assert"
)

// armSkeleton is a root with two sibling arms of two bones each.
func armSkeleton() *model.Skeleton {
	skel := model.NewSkeleton()
	id := model.IdentityTransform()
	root := skel.AddBone("spine", 0, model.RootParentIndex, id)
	lu := skel.AddBone("upper_l", 1, root, id)
	skel.AddBone("lower_l", 2, lu, id)
	ru := skel.AddBone("upper_r", 3, root, id)
	skel.AddBone("lower_r", 4, ru, id)
	return skel
}

func TestBuildChain_RootToTipOrder(t *testing.T) {
	skel := armSkeleton()

	chain := BuildChain(skel, 0, 2)

	assert.True(t, chain.IsValid())
	assert.Equal(t, []int32{0, 1, 2}, chain.BoneIndices)
	assert.Equal(t, int32(0), chain.RootBoneIndex)
	assert.Equal(t, int32(2), chain.TipBoneIndex)
	assert.Equal(t, "spine_to_lower_l", chain.Name)
	assert.Equal(t, 3, chain.Len())
}

func TestBuildChain_SingleBone(t *testing.T) {
	chain := BuildChain(armSkeleton(), 3, 3)

	assert.True(t, chain.IsValid())
	assert.Equal(t, []int32{3}, chain.BoneIndices)
}

func TestBuildChain_Failures(t *testing.T) {
	skel := armSkeleton()

	tests := []struct {
		name       string
		skel       *model.Skeleton
		start, end int32
	}{
		{"sibling", skel, 1, 4},
		{"child to ancestor", skel, 2, 0},
		{"start out of range", skel, -1, 2},
		{"end out of range", skel, 0, 5},
		{"nil skeleton", nil, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := BuildChain(tt.skel, tt.start, tt.end)

			assert.False(t, chain.IsValid())
			assert.Empty(t, chain.BoneIndices)
			assert.Equal(t, int32(-1), chain.RootBoneIndex)
			assert.Equal(t, int32(-1), chain.TipBoneIndex)
		})
	}
}

func TestBuildChainByName(t *testing.T) {
	skel := armSkeleton()

	chain := BuildChainByName(skel, "upper_r", "lower_r")
	assert.True(t, chain.IsValid())
	assert.Equal(t, []int32{3, 4}, chain.BoneIndices)

	unknown := BuildChainByName(skel, "upper_r", "missing")
	assert.False(t, unknown.IsValid())

	noSkeleton := BuildChainByName(nil, "upper_r", "lower_r")
	assert.False(t, noSkeleton.IsValid())
}

func TestIKChain_NilSafe(t *testing.T) {
	var chain *IKChain
	assert.False(t, chain.IsValid())
	assert.Zero(t, chain.Len())
}
