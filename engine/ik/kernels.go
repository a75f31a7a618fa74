package ik

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-ik/common"
	"github.com/Carmen-Shannon/oxy-ik/engine/compute"
	"github.com/go-gl/mathgl/mgl32"
)

// Kernel entry point names, identical across WGSL, OpenCL C and host implementations.
const (
	kernelPrepare  = "ik_prepare"
	kernelForward  = "ik_forward"
	kernelBackward = "ik_backward"
	kernelError    = "ik_error"
)

// kernelWorkgroupSize matches @workgroup_size in fabrik.wgsl.
const kernelWorkgroupSize = 64

// FabrikWGSLSource is the WGSL implementation of the FABRIK batch kernels.
//
//go:embed assets/fabrik.wgsl
var FabrikWGSLSource string

// FabrikOpenCLSource is the OpenCL C implementation of the FABRIK batch kernels.
//
//go:embed assets/fabrik.cl
var FabrikOpenCLSource string

// fabrikProgramSource returns the program every compute device compiles for the GPU solver.
func fabrikProgramSource() compute.ProgramSource {
	bindings := make([]compute.BufferUsage, bindingCount)
	for i := range bindings {
		bindings[i] = compute.BufferUsageStorage
	}
	bindings[bindingParams] = compute.BufferUsageUniform
	bindings[bindingLengths] = compute.BufferUsageStorageRead
	bindings[bindingGeometry] = compute.BufferUsageStorageRead

	return compute.ProgramSource{
		Label:         "ik_fabrik",
		EntryPoints:   []string{kernelPrepare, kernelForward, kernelBackward, kernelError},
		Bindings:      bindings,
		WorkgroupSize: kernelWorkgroupSize,
		WGSL:          FabrikWGSLSource,
		OpenCL:        FabrikOpenCLSource,
		Host: map[string]compute.HostKernel{
			kernelPrepare:  hostPrepare,
			kernelForward:  hostForward,
			kernelBackward: hostBackward,
			kernelError:    hostError,
		},
	}
}

// kernelViews are typed views of the raw binding bytes handed to a host kernel.
type kernelViews struct {
	params     *GPUIKParams
	positionsA []mgl32.Vec3
	positionsB []mgl32.Vec3
	lengths    []float32
	geometry   []GPUChainGeometry
	meta       []GPUChainMeta
	errors     []float32
	iterations []uint32
}

func viewsOf(b [][]byte) kernelViews {
	return kernelViews{
		params:     &common.BytesToSlice[GPUIKParams](b[bindingParams])[0],
		positionsA: common.BytesToSlice[mgl32.Vec3](b[bindingPositionsA]),
		positionsB: common.BytesToSlice[mgl32.Vec3](b[bindingPositionsB]),
		lengths:    common.BytesToSlice[float32](b[bindingLengths]),
		geometry:   common.BytesToSlice[GPUChainGeometry](b[bindingGeometry]),
		meta:       common.BytesToSlice[GPUChainMeta](b[bindingMeta]),
		errors:     common.BytesToSlice[float32](b[bindingErrors]),
		iterations: common.BytesToSlice[uint32](b[bindingIterations]),
	}
}

// slices returns the chain's joint windows of both position buffers and its segment lengths.
func (v *kernelViews) slices(m GPUChainMeta) (a, b []mgl32.Vec3, lengths []float32) {
	j0, j1 := m.JointOffset, m.JointOffset+m.JointCount
	s0 := m.SegmentOffset
	return v.positionsA[j0:j1], v.positionsB[j0:j1], v.lengths[s0 : s0+m.JointCount-1]
}

func isActive(flags uint32) bool {
	return flags&(ChainFlagDegenerate|ChainFlagStretched|ChainFlagConverged) == 0
}

func hostPrepare(c int, b [][]byte) {
	v := viewsOf(b)
	if uint32(c) >= v.params.ChainCount {
		return
	}
	m := &v.meta[c]
	v.iterations[c] = 0
	v.errors[c] = 0
	if m.Flags&ChainFlagDegenerate != 0 {
		return
	}
	m.Flags &^= ChainFlagStretched | ChainFlagConverged

	g := &v.geometry[c]
	root, target := mgl32.Vec3(g.Root), mgl32.Vec3(g.Target)
	if common.Distance(root, target) > g.TotalLength {
		a, _, lengths := v.slices(*m)
		stretchToward(a, lengths, root, target)
		m.Flags |= ChainFlagStretched
	}
}

func hostForward(c int, b [][]byte) {
	v := viewsOf(b)
	if uint32(c) >= v.params.ChainCount {
		return
	}
	m := v.meta[c]
	if !isActive(m.Flags) {
		return
	}
	a, pong, lengths := v.slices(m)
	reachForward(pong, a, lengths, mgl32.Vec3(v.geometry[c].Target))
}

func hostBackward(c int, b [][]byte) {
	v := viewsOf(b)
	if uint32(c) >= v.params.ChainCount {
		return
	}
	m := &v.meta[c]
	if !isActive(m.Flags) {
		return
	}
	g := &v.geometry[c]
	a, pong, lengths := v.slices(*m)
	reachBackward(a, pong, lengths, mgl32.Vec3(g.Root))

	v.iterations[c]++
	err := common.Distance(a[len(a)-1], mgl32.Vec3(g.Target))
	v.errors[c] = err
	if err < v.params.Tolerance {
		m.Flags |= ChainFlagConverged
	}
}

func hostError(c int, b [][]byte) {
	v := viewsOf(b)
	if uint32(c) >= v.params.ChainCount {
		return
	}
	m := v.meta[c]
	if m.Flags&ChainFlagDegenerate != 0 {
		v.errors[c] = 0
		return
	}
	g := &v.geometry[c]
	root, target := mgl32.Vec3(g.Root), mgl32.Vec3(g.Target)
	if m.Flags&ChainFlagStretched != 0 {
		v.errors[c] = common.Distance(root, target) - g.TotalLength
		return
	}
	v.errors[c] = common.Distance(v.positionsA[m.JointOffset+m.JointCount-1], target)
}
