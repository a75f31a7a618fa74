package ik

import (
	"github.com/Carmen-Shannon/oxy-ik/common"
	"github.com/Carmen-Shannon/oxy-ik/engine/model"
)

// blendEpsilon is how close to 0 or 1 a blend weight must be to skip interpolation.
const blendEpsilon float32 = 1e-6

// ApplyResult writes a solved pose back into the skeleton's bone local transforms.
// blendWeight is clamped to [0,1]: at 1 the solved transforms replace the current ones, at 0
// nothing changes, and in between translation and scale are interpolated linearly and rotation
// spherically. A result whose size does not match the chain logs a warning and is ignored.
//
// Parameters:
//   - skel: the skeleton to modify
//   - chain: the chain the result was solved for
//   - result: the solve result
//   - blendWeight: the weight of the solved pose (1 for full replacement)
func ApplyResult(skel *model.Skeleton, chain *IKChain, result IKSolveResult, blendWeight float32) {
	if skel == nil || chain == nil || len(result.SolvedTransforms) != len(chain.BoneIndices) {
		Logger().Warn("ik: solve result does not match chain",
			"chain", chainName(chain), "joints", chain.Len(), "transforms", len(result.SolvedTransforms))
		return
	}
	if !chainFitsSkeleton(skel, chain) {
		Logger().Warn("ik: chain does not fit skeleton", "chain", chain.Name)
		return
	}

	w := common.Clamp(blendWeight, 0, 1)
	if w <= blendEpsilon {
		return
	}

	for i, bi := range chain.BoneIndices {
		solved := result.SolvedTransforms[i]
		bone := &skel.Bones[bi]
		if w >= 1-blendEpsilon {
			bone.LocalTransform = solved
			continue
		}
		cur := bone.LocalTransform
		bone.LocalTransform = model.Transform{
			Translation: common.LerpVec3(cur.Translation, solved.Translation, w),
			Rotation:    common.SlerpShortest(cur.Rotation, solved.Rotation, w),
			Scale:       common.LerpVec3(cur.Scale, solved.Scale, w),
		}
	}
}

// ApplyResults applies a batch of results to their entries, each with its target's blend weight.
// Entries and results are matched by index; extra elements on either side are ignored.
//
// Parameters:
//   - entries: the solved batch entries
//   - results: the results returned by SolveBatch for entries
func ApplyResults(entries []GPUIKBatchEntry, results []IKSolveResult) {
	n := min(len(entries), len(results))
	for i := 0; i < n; i++ {
		ApplyResult(entries[i].Skeleton, entries[i].Chain, results[i], entries[i].Target.BlendWeight)
	}
}
