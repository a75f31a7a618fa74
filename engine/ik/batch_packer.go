package ik

import (
	"github.com/Carmen-Shannon/oxy-ik/common"
	"github.com/go-gl/mathgl/mgl32"
)

// batchPacker flattens batch entries into the structure-of-arrays layout the kernels read.
// Its slices are reused between packs and only ever grow.
type batchPacker struct {
	positions []mgl32.Vec3
	lengths   []float32
	geometry  []GPUChainGeometry
	meta      []GPUChainMeta
}

// pack replaces the packer contents with entries. Entries that cannot be solved are recorded
// with zero joints and ChainFlagDegenerate so that their output slot stays aligned.
func (p *batchPacker) pack(entries []GPUIKBatchEntry) {
	p.positions = p.positions[:0]
	p.lengths = p.lengths[:0]
	p.geometry = p.geometry[:0]
	p.meta = p.meta[:0]

	for i := range entries {
		e := &entries[i]
		meta := GPUChainMeta{
			JointOffset:   uint32(len(p.positions)),
			SegmentOffset: uint32(len(p.lengths)),
		}
		if !solvable(e.Skeleton, e.Chain) {
			meta.Flags = ChainFlagDegenerate
			p.meta = append(p.meta, meta)
			p.geometry = append(p.geometry, GPUChainGeometry{})
			continue
		}

		n := e.Chain.Len()
		j0, s0 := len(p.positions), len(p.lengths)
		p.positions = append(p.positions, make([]mgl32.Vec3, n)...)
		p.lengths = append(p.lengths, make([]float32, n-1)...)
		joints := p.positions[j0:]
		chainWorldPositions(joints, e.Skeleton, e.Chain)
		total := segmentLengths(p.lengths[s0:], joints)

		meta.JointCount = uint32(n)
		p.meta = append(p.meta, meta)
		p.geometry = append(p.geometry, GPUChainGeometry{
			Target:      e.Target.Position,
			TotalLength: total,
			Root:        joints[0],
		})
	}
}

// jointCount returns the number of packed joints.
func (p *batchPacker) jointCount() int { return len(p.positions) }

// segmentCount returns the number of packed segment lengths.
func (p *batchPacker) segmentCount() int { return len(p.lengths) }

// chainCount returns the number of packed chains, degenerate ones included.
func (p *batchPacker) chainCount() int { return len(p.meta) }

func (p *batchPacker) positionBytes() []byte { return common.SliceToBytes(p.positions) }
func (p *batchPacker) lengthBytes() []byte   { return common.SliceToBytes(p.lengths) }
func (p *batchPacker) geometryBytes() []byte { return common.SliceToBytes(p.geometry) }
func (p *batchPacker) metaBytes() []byte     { return common.SliceToBytes(p.meta) }
