//go:build opencl

package opencl_backend

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-ik/engine/ik"
	"github.com/Carmen-Shannon/oxy-ik/engine/model"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rig(t *testing.T, joints int) (*model.Skeleton, *ik.IKChain) {
	t.Helper()
	skel := model.NewSkeleton()
	parent := model.RootParentIndex
	for i := range joints {
		local := model.IdentityTransform()
		if i > 0 {
			local.Translation = mgl32.Vec3{0, 1, 0}
		}
		parent = skel.AddBone("b"+string(rune('a'+i)), int32(i), parent, local)
	}
	chain := ik.BuildChain(skel, 0, int32(joints-1))
	require.True(t, chain.IsValid())
	return skel, &chain
}

func TestDevice_MatchesCPUSolver(t *testing.T) {
	device, err := NewDevice()
	if err != nil {
		t.Skipf("no device available: %v", err)
	}
	defer device.Release()

	targets := []mgl32.Vec3{{1, 1, 0}, {0.5, 1.2, 0.3}, {9, 0, 0}, {0, -1.5, 0.2}}
	entries := make([]ik.GPUIKBatchEntry, 0, len(targets)*3)
	for joints := 2; joints <= 4; joints++ {
		for _, target := range targets {
			skel, chain := rig(t, joints)
			entries = append(entries, ik.GPUIKBatchEntry{Skeleton: skel, Chain: chain, Target: ik.NewIKTarget(target)})
		}
	}

	gpu := ik.NewGPUSolver(device, ik.WithGPUMaxIterations(20))
	require.NoError(t, gpu.Initialize())
	defer gpu.Shutdown()

	cpu := ik.NewSolver(ik.WithMaxIterations(20))
	results, err := gpu.TrySolveBatch(entries)
	require.NoError(t, err)
	require.Len(t, results, len(entries))

	for i, e := range entries {
		want := cpu.Solve(e.Skeleton, e.Chain, e.Target)
		if want.Iterations == 0 {
			assert.False(t, results[i].Converged, "entry %d", i)
			assert.Zero(t, results[i].Iterations, "entry %d", i)
		}
		assert.InDelta(t, want.FinalError, results[i].FinalError, 1e-3, "entry %d", i)
		require.Len(t, results[i].SolvedTransforms, len(want.SolvedTransforms))
	}
}
