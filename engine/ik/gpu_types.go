package ik

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// Per-chain flag bits stored in GPUChainMeta.Flags.
const (
	// ChainFlagDegenerate marks a chain the kernels must skip entirely (invalid or shorter than 2 joints).
	ChainFlagDegenerate uint32 = 1 << iota

	// ChainFlagStretched marks an unreachable target; ik_prepare already wrote the straight-line pose.
	ChainFlagStretched

	// ChainFlagConverged marks a chain whose tip reached the target within tolerance.
	ChainFlagConverged
)

// Buffer binding indices shared by every FABRIK kernel.
const (
	bindingParams = iota
	bindingPositionsA
	bindingPositionsB
	bindingLengths
	bindingGeometry
	bindingMeta
	bindingErrors
	bindingIterations
	bindingCount
)

// GPUIKParams is the per-dispatch parameter block of the FABRIK kernels.
// Matches the WGSL IKParams struct layout exactly.
// Size: 16 bytes.
type GPUIKParams struct {
	ChainCount    uint32  // offset 0
	MaxIterations uint32  // offset 4
	Tolerance     float32 // offset 8
	_padding      uint32  // offset 12
}

// Size returns the size of the GPUIKParams struct in bytes.
//
// Returns:
//   - int: The size of the struct in bytes.
func (g *GPUIKParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUIKParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload.
func (g *GPUIKParams) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], g.ChainCount)
	binary.LittleEndian.PutUint32(buf[4:8], g.MaxIterations)
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(g.Tolerance))
	binary.LittleEndian.PutUint32(buf[12:16], 0) // _padding
	return buf
}

// GPUChainGeometry is the per-chain geometric input of the FABRIK kernels.
// Matches the WGSL ChainGeometry struct layout exactly.
// Size: 32 bytes.
type GPUChainGeometry struct {
	Target      [3]float32 // offset 0: desired tip position
	TotalLength float32    // offset 12: sum of segment lengths
	Root        [3]float32 // offset 16: original root position
	_padding    float32    // offset 28
}

// Size returns the size of the GPUChainGeometry struct in bytes.
//
// Returns:
//   - int: The size of the struct in bytes.
func (g *GPUChainGeometry) Size() int {
	return int(unsafe.Sizeof(*g))
}

// GPUChainMeta locates a chain's slice of the joint and segment arrays and carries its flags.
// Matches the WGSL ChainMeta struct layout exactly.
// Size: 16 bytes.
type GPUChainMeta struct {
	JointOffset   uint32 // offset 0: index of the chain's root joint
	JointCount    uint32 // offset 4: number of joints (0 for degenerate chains)
	SegmentOffset uint32 // offset 8: index of the chain's first segment length
	Flags         uint32 // offset 12: ChainFlag* bits
}

// Size returns the size of the GPUChainMeta struct in bytes.
//
// Returns:
//   - int: The size of the struct in bytes.
func (g *GPUChainMeta) Size() int {
	return int(unsafe.Sizeof(*g))
}
