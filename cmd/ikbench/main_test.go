package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-ik/engine/ik"
	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSyntheticRig(t *testing.T) {
	r, err := syntheticRig(4, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 4, r.chain.Len())
	assert.InDelta(t, 1.5, r.length, 1e-5)

	_, err = syntheticRig(1, 1)
	assert.Error(t, err)
	_, err = syntheticRig(3, 0)
	assert.Error(t, err)
}

func TestRigEntriesAreDeterministic(t *testing.T) {
	r, err := syntheticRig(3, 1)
	require.NoError(t, err)

	a := r.entries(32, 7)
	b := r.entries(32, 7)
	require.Len(t, a, 32)
	for i := range a {
		assert.Equal(t, a[i].Target.Position, b[i].Target.Position)
		dist := a[i].Target.Position.Len()
		assert.GreaterOrEqual(t, dist, float32(minReach)*r.length-1e-4)
		assert.Less(t, dist, float32(maxReach)*r.length+1e-4)
	}
}

func TestAppliedTipErrorMatchesSolve(t *testing.T) {
	r, err := syntheticRig(4, 1)
	require.NoError(t, err)
	entries := r.entries(64, 3)

	results := ik.NewSolver(ik.WithTolerance(0.001), ik.WithMaxIterations(50)).SolveBatch(entries)
	for i, res := range results {
		if !res.Converged {
			continue
		}
		assert.InDelta(t, 0, appliedTipError(entries[i], res), 0.01, "entry %d", i)
	}
}

func TestResultDeviation(t *testing.T) {
	r, err := syntheticRig(3, 1)
	require.NoError(t, err)
	entries := r.entries(1, 1)
	res := ik.NewSolver().SolveBatch(entries)[0]

	assert.Zero(t, resultDeviation(res, res))

	flipped := res
	flipped.SolvedTransforms = append(flipped.SolvedTransforms[:0:0], res.SolvedTransforms...)
	flipped.SolvedTransforms[0].Rotation = res.SolvedTransforms[0].Rotation.Scale(-1)
	assert.InDelta(t, 0, resultDeviation(res, flipped), 1e-6)

	short := res
	short.SolvedTransforms = nil
	assert.True(t, resultDeviation(res, short) > 1)
}

func TestSolveCommand_HostBackend(t *testing.T) {
	out, err := runCommand(t, "solve", "--backend", "host", "--chains", "40", "--joints", "3", "--batch-size", "16", "--frames", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "chains:         40 x 3 joints")
	assert.Contains(t, out, "converged:")
	assert.Contains(t, out, "cpu deviation:")
}

func TestSolveCommand_CPUBackend(t *testing.T) {
	out, err := runCommand(t, "solve", "--backend", "cpu", "--chains", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "backend:        cpu")
	assert.NotContains(t, out, "cpu deviation:")
}

func TestSolveCommand_GLTFRig(t *testing.T) {
	doc := &gltf.Document{
		Asset: gltf.Asset{Version: "2.0"},
		Nodes: []*gltf.Node{
			{Name: "shoulder", Children: []int{1}},
			{Name: "elbow", Children: []int{2}, Translation: [3]float64{0, 1, 0}},
			{Name: "wrist", Translation: [3]float64{0, 1, 0}},
		},
		Skins: []*gltf.Skin{{Joints: []int{0, 1, 2}}},
	}
	path := filepath.Join(t.TempDir(), "arm.gltf")
	require.NoError(t, gltf.Save(doc, path))

	out, err := runCommand(t, "solve", "--backend", "cpu", "--chains", "4", "--gltf", path, "--start", "shoulder", "--end", "wrist")
	require.NoError(t, err)
	assert.Contains(t, out, "4 x 3 joints")

	_, err = runCommand(t, "solve", "--gltf", path, "--start", "shoulder")
	assert.Error(t, err)

	_, err = runCommand(t, "solve", "--backend", "cpu", "--gltf", path, "--start", "wrist", "--end", "shoulder")
	assert.Error(t, err)
}

func TestSolveCommand_GLTFMeshSelectsSkin(t *testing.T) {
	doc := &gltf.Document{
		Asset: gltf.Asset{Version: "2.0"},
		Nodes: []*gltf.Node{
			{Name: "shoulder", Children: []int{1}},
			{Name: "elbow", Children: []int{2}, Translation: [3]float64{0, 1, 0}},
			{Name: "wrist", Children: []int{3}, Translation: [3]float64{0, 1, 0}},
			{Name: "finger", Translation: [3]float64{0, 0.5, 0}},
			{Name: "sleeve", Mesh: gltf.Index(0), Skin: gltf.Index(0)},
			{Name: "glove", Mesh: gltf.Index(1), Skin: gltf.Index(1)},
		},
		Skins: []*gltf.Skin{
			{Name: "upper", Joints: []int{0, 1}},
			{Name: "full", Joints: []int{0, 1, 2, 3}},
		},
	}
	path := filepath.Join(t.TempDir(), "arm.gltf")
	require.NoError(t, gltf.Save(doc, path))

	// --skin 0 only knows shoulder and elbow, so --mesh must override it.
	out, err := runCommand(t, "solve", "--backend", "cpu", "--chains", "4", "--gltf", path,
		"--skin", "0", "--mesh", "1", "--start", "shoulder", "--end", "finger")
	require.NoError(t, err)
	assert.Contains(t, out, "4 x 4 joints")

	_, err = runCommand(t, "solve", "--backend", "cpu", "--gltf", path,
		"--mesh", "0", "--start", "shoulder", "--end", "finger")
	assert.Error(t, err)

	_, err = runCommand(t, "solve", "--backend", "cpu", "--gltf", path,
		"--mesh", "5", "--start", "shoulder", "--end", "elbow")
	assert.ErrorContains(t, err, "no skinned node")
}

func TestSolveCommand_RejectsBadFlags(t *testing.T) {
	_, err := runCommand(t, "solve", "--backend", "vulkan")
	assert.Error(t, err)

	_, err = runCommand(t, "solve", "--chains", "0")
	assert.Error(t, err)

	_, err = runCommand(t, "solve", "--frames", "0")
	assert.Error(t, err)
}
