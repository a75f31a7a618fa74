package ik

import (
	"github.com/Carmen-Shannon/oxy-ik/engine/model"
)

// unsetBoneIndex marks RootBoneIndex/TipBoneIndex of a chain that was never built successfully.
const unsetBoneIndex int32 = -1

// IKChain is an ordered root-to-tip list of bone indices that an IK solve operates on.
// Chains are produced by BuildChain and are treated as immutable by the solvers.
type IKChain struct {
	// Name is a human readable label derived from the root and tip bone names.
	Name string

	// BoneIndices lists the skeleton bone indices from root to tip, inclusive.
	BoneIndices []int32

	// RootBoneIndex caches BoneIndices[0], or -1 for an invalid chain.
	RootBoneIndex int32

	// TipBoneIndex caches the last element of BoneIndices, or -1 for an invalid chain.
	TipBoneIndex int32

	// MinAngles and MaxAngles hold optional per-joint angle limits in radians.
	// They are carried for rigs that author limits but are not enforced by the FABRIK passes.
	MinAngles []float32
	MaxAngles []float32
}

// invalidChain returns the chain value BuildChain reports on failure.
func invalidChain() IKChain {
	return IKChain{
		RootBoneIndex: unsetBoneIndex,
		TipBoneIndex:  unsetBoneIndex,
	}
}

// IsValid reports whether the chain holds at least one bone and both cached ends are set.
func (c *IKChain) IsValid() bool {
	return c != nil && len(c.BoneIndices) > 0 && c.RootBoneIndex >= 0 && c.TipBoneIndex >= 0
}

// Len returns the number of joints in the chain.
func (c *IKChain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.BoneIndices)
}

// BuildChain derives the root-to-tip bone list between startBoneIndex and endBoneIndex by walking
// parent links upward from the end bone. It never fails loudly: out-of-range indices, or an end
// bone that does not descend from the start bone, produce an invalid chain and a logged warning.
//
// Parameters:
//   - skel: the skeleton to read the hierarchy from
//   - startBoneIndex: the chain root bone index
//   - endBoneIndex: the chain tip bone index
//
// Returns:
//   - IKChain: the built chain; check IsValid before use
func BuildChain(skel *model.Skeleton, startBoneIndex, endBoneIndex int32) IKChain {
	log := Logger()
	if skel == nil {
		log.Warn("ik: cannot build chain from nil skeleton")
		return invalidChain()
	}
	if !skel.ValidIndex(startBoneIndex) || !skel.ValidIndex(endBoneIndex) {
		log.Warn("ik: chain bone index out of range",
			"start", startBoneIndex, "end", endBoneIndex, "bones", skel.BoneCount())
		return invalidChain()
	}

	path := make([]int32, 0, 8)
	current := endBoneIndex
	for steps := 0; steps <= skel.BoneCount(); steps++ {
		path = append(path, current)
		if current == startBoneIndex {
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return IKChain{
				Name:          skel.Bones[startBoneIndex].Name + "_to_" + skel.Bones[endBoneIndex].Name,
				BoneIndices:   path,
				RootBoneIndex: startBoneIndex,
				TipBoneIndex:  endBoneIndex,
			}
		}
		parent := skel.Bones[current].ParentIndex
		if !skel.ValidIndex(parent) {
			break
		}
		current = parent
	}

	log.Warn("ik: end bone is not a descendant of start bone",
		"start", skel.Bones[startBoneIndex].Name, "end", skel.Bones[endBoneIndex].Name)
	return invalidChain()
}

// BuildChainByName resolves both bone names through the skeleton's name lookup and calls BuildChain.
// Unknown names produce an invalid chain and a logged warning.
//
// Parameters:
//   - skel: the skeleton to read the hierarchy from
//   - startBone: the chain root bone name
//   - endBone: the chain tip bone name
//
// Returns:
//   - IKChain: the built chain; check IsValid before use
func BuildChainByName(skel *model.Skeleton, startBone, endBone string) IKChain {
	if skel == nil {
		Logger().Warn("ik: cannot build chain from nil skeleton")
		return invalidChain()
	}
	start, okStart := skel.IndexOfName(startBone)
	end, okEnd := skel.IndexOfName(endBone)
	if !okStart || !okEnd {
		Logger().Warn("ik: unknown chain bone name", "start", startBone, "end", endBone)
		return invalidChain()
	}
	return BuildChain(skel, start, end)
}
