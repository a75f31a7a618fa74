package main

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/Carmen-Shannon/oxy-ik/common"
	"github.com/Carmen-Shannon/oxy-ik/engine/ik"
	"github.com/Carmen-Shannon/oxy-ik/engine/loader"
	"github.com/Carmen-Shannon/oxy-ik/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// Target radii are drawn from [minReach, maxReach) times the chain length, so roughly one
// target in six is out of reach.
const (
	minReach = 0.2
	maxReach = 1.2
)

// rig is one skeleton and the chain every generated entry solves.
type rig struct {
	skeleton *model.Skeleton
	chain    ik.IKChain
	length   float32
}

// syntheticRig builds a straight chain of joints bones along +Y below a fixed pelvis bone.
func syntheticRig(joints int, segment float32) (*rig, error) {
	if joints < 2 {
		return nil, fmt.Errorf("a chain needs at least 2 joints, got %d", joints)
	}
	if segment <= 0 {
		return nil, fmt.Errorf("segment length must be positive, got %g", segment)
	}

	s := model.NewSkeleton()
	parent := s.AddBone("pelvis", 0, model.RootParentIndex, model.IdentityTransform())
	for i := range joints {
		local := model.IdentityTransform()
		if i > 0 {
			local.Translation = mgl32.Vec3{0, segment, 0}
		}
		parent = s.AddBone(fmt.Sprintf("joint_%d", i), int32(i+1), parent, local)
	}
	return newRig(s, ik.BuildChain(s, 1, parent))
}

// gltfRig loads a skin from a glTF file and builds the chain between two named bones.
// A non-negative mesh selects the skin that deforms that mesh and overrides skin.
func gltfRig(path string, skin, mesh int, start, end string) (*rig, error) {
	var (
		s   *model.Skeleton
		err error
	)
	if mesh >= 0 {
		s, _, err = loader.LoadSkeletonForMesh(path, mesh)
	} else {
		s, err = loader.LoadSkeleton(path, skin)
	}
	if err != nil {
		return nil, err
	}
	return newRig(s, ik.BuildChainByName(s, start, end))
}

func newRig(s *model.Skeleton, chain ik.IKChain) (*rig, error) {
	if !chain.IsValid() {
		return nil, errors.New("could not build a chain between the requested bones")
	}
	var length float32
	for i := 1; i < chain.Len(); i++ {
		length += common.Distance(s.WorldPosition(chain.BoneIndices[i-1]), s.WorldPosition(chain.BoneIndices[i]))
	}
	return &rig{skeleton: s, chain: chain, length: length}, nil
}

// entries generates count solve requests with targets scattered around the chain root.
// The skeleton and chain are shared; solvers only read them.
func (r *rig) entries(count int, seed uint64) []ik.GPUIKBatchEntry {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	root := r.skeleton.WorldPosition(r.chain.RootBoneIndex)

	out := make([]ik.GPUIKBatchEntry, count)
	for i := range out {
		dir := mgl32.Vec3{float32(rng.NormFloat64()), float32(rng.NormFloat64()), float32(rng.NormFloat64())}
		if dir.Len() < common.Epsilon {
			dir = mgl32.Vec3{0, 1, 0}
		}
		radius := r.length * float32(minReach+(maxReach-minReach)*rng.Float64())
		out[i] = ik.GPUIKBatchEntry{
			Skeleton: r.skeleton,
			Chain:    &r.chain,
			Target:   ik.NewIKTarget(root.Add(dir.Normalize().Mul(radius))),
		}
	}
	return out
}

// appliedTipError applies result to a copy of the entry's skeleton and returns the distance
// from the posed tip to the target.
func appliedTipError(entry ik.GPUIKBatchEntry, result ik.IKSolveResult) float32 {
	posed := entry.Skeleton.Clone()
	ik.ApplyResult(posed, entry.Chain, result, entry.Target.BlendWeight)
	return common.Distance(posed.WorldPosition(entry.Chain.TipBoneIndex), entry.Target.Position)
}

// resultDeviation returns the largest difference between two results for the same entry, over
// the final error and every rotation component. Quaternions q and -q are treated as equal.
func resultDeviation(a, b ik.IKSolveResult) float64 {
	dev := math.Abs(float64(a.FinalError - b.FinalError))
	if len(a.SolvedTransforms) != len(b.SolvedTransforms) {
		return math.Inf(1)
	}
	for i := range a.SolvedTransforms {
		qa := a.SolvedTransforms[i].Rotation
		qb := b.SolvedTransforms[i].Rotation
		if qa.Dot(qb) < 0 {
			qb = qb.Scale(-1)
		}
		diff := []float32{qa.W - qb.W, qa.V[0] - qb.V[0], qa.V[1] - qb.V[1], qa.V[2] - qb.V[2]}
		for _, d := range diff {
			dev = math.Max(dev, math.Abs(float64(d)))
		}
	}
	return dev
}
