package model

import (
	"github.com/Carmen-Shannon/oxy-ik/common"
	"github.com/go-gl/mathgl/mgl32"
)

// RootParentIndex is the ParentIndex sentinel for bones with no parent.
const RootParentIndex int32 = -1

// --- Transform & Skeleton Types ---

// Transform represents a decomposed translation/rotation/scale transform.
type Transform struct {
	// Translation is the position offset.
	Translation mgl32.Vec3

	// Rotation is the orientation as a unit quaternion.
	Rotation mgl32.Quat

	// Scale is the scale factor along each axis.
	Scale mgl32.Vec3
}

// IdentityTransform returns a Transform with no translation, no rotation and unit scale.
func IdentityTransform() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// Compose returns the transform of child expressed in the space that t is expressed in,
// i.e. the world transform of a child whose parent has world transform t.
//
// Parameters:
//   - child: the child's transform relative to t
//
// Returns:
//   - Transform: the composed transform
func (t Transform) Compose(child Transform) Transform {
	return Transform{
		Translation: t.Translation.Add(t.Rotation.Rotate(common.MulVec3(t.Scale, child.Translation))),
		Rotation:    t.Rotation.Mul(child.Rotation).Normalize(),
		Scale:       common.MulVec3(t.Scale, child.Scale),
	}
}

// Bone represents a single bone in a skeleton hierarchy.
type Bone struct {
	// ID is a stable identifier independent of the bone's position in the Bones slice.
	ID int32

	// Name is the bone's identifier (for debugging and chain building by name).
	Name string

	// ParentIndex is the index of the parent bone (RootParentIndex for root bones).
	ParentIndex int32

	// LocalTransform is the bone's transform relative to its parent.
	LocalTransform Transform
}

// Skeleton represents a bone hierarchy. Parents are not required to precede their children.
type Skeleton struct {
	// Bones is the array of all bones in the skeleton.
	Bones []Bone

	// RootBoneIndices are indices of bones with no parent.
	RootBoneIndices []int32

	// BoneNameToIndex maps bone names to their indices for quick lookup.
	BoneNameToIndex map[string]int32

	// BoneIDToIndex maps bone IDs to their indices for quick lookup.
	BoneIDToIndex map[int32]int32
}

// NewSkeleton creates an empty Skeleton with initialized lookup maps.
//
// Returns:
//   - *Skeleton: the empty skeleton
func NewSkeleton() *Skeleton {
	return &Skeleton{
		BoneNameToIndex: make(map[string]int32),
		BoneIDToIndex:   make(map[int32]int32),
	}
}

// AddBone appends a bone and registers it in the lookup maps.
//
// Parameters:
//   - name: the bone name
//   - id: the stable bone identifier
//   - parentIndex: the index of the parent bone, or RootParentIndex
//   - local: the bone's local transform
//
// Returns:
//   - int32: the index of the new bone
func (s *Skeleton) AddBone(name string, id, parentIndex int32, local Transform) int32 {
	if s.BoneNameToIndex == nil {
		s.BoneNameToIndex = make(map[string]int32)
	}
	if s.BoneIDToIndex == nil {
		s.BoneIDToIndex = make(map[int32]int32)
	}
	idx := int32(len(s.Bones))
	s.Bones = append(s.Bones, Bone{
		ID:             id,
		Name:           name,
		ParentIndex:    parentIndex,
		LocalTransform: local,
	})
	if parentIndex < 0 {
		s.RootBoneIndices = append(s.RootBoneIndices, idx)
	}
	s.BoneNameToIndex[name] = idx
	s.BoneIDToIndex[id] = idx
	return idx
}

// BoneCount returns the number of bones in the skeleton.
func (s *Skeleton) BoneCount() int {
	return len(s.Bones)
}

// ValidIndex reports whether index addresses a bone in the skeleton.
func (s *Skeleton) ValidIndex(index int32) bool {
	return index >= 0 && int(index) < len(s.Bones)
}

// IndexOfName returns the index of the bone with the given name.
//
// Parameters:
//   - name: the bone name
//
// Returns:
//   - int32: the bone index, or -1 if not found
//   - bool: true if the bone exists
func (s *Skeleton) IndexOfName(name string) (int32, bool) {
	idx, ok := s.BoneNameToIndex[name]
	if !ok {
		return -1, false
	}
	return idx, true
}

// IndexOfID returns the index of the bone with the given ID.
//
// Parameters:
//   - id: the bone ID
//
// Returns:
//   - int32: the bone index, or -1 if not found
//   - bool: true if the bone exists
func (s *Skeleton) IndexOfID(id int32) (int32, bool) {
	idx, ok := s.BoneIDToIndex[id]
	if !ok {
		return -1, false
	}
	return idx, true
}

// WorldTransform computes a bone's transform in skeleton space by composing the local
// transforms of its ancestors, root first. Out-of-range indices yield the identity transform.
// A corrupt hierarchy containing a parent cycle is cut after BoneCount steps.
//
// Parameters:
//   - index: the bone index
//
// Returns:
//   - Transform: the bone's world transform
func (s *Skeleton) WorldTransform(index int32) Transform {
	if !s.ValidIndex(index) {
		return IdentityTransform()
	}

	var stack [32]int32
	path := stack[:0]
	for i, steps := index, 0; s.ValidIndex(i) && steps < len(s.Bones); steps++ {
		path = append(path, i)
		i = s.Bones[i].ParentIndex
	}

	world := s.Bones[path[len(path)-1]].LocalTransform
	for i := len(path) - 2; i >= 0; i-- {
		world = world.Compose(s.Bones[path[i]].LocalTransform)
	}
	return world
}

// WorldPosition returns the translation part of WorldTransform.
func (s *Skeleton) WorldPosition(index int32) mgl32.Vec3 {
	return s.WorldTransform(index).Translation
}

// Clone returns a deep copy of the skeleton.
func (s *Skeleton) Clone() *Skeleton {
	c := &Skeleton{
		Bones:           make([]Bone, len(s.Bones)),
		RootBoneIndices: append([]int32(nil), s.RootBoneIndices...),
		BoneNameToIndex: make(map[string]int32, len(s.BoneNameToIndex)),
		BoneIDToIndex:   make(map[int32]int32, len(s.BoneIDToIndex)),
	}
	copy(c.Bones, s.Bones)
	for k, v := range s.BoneNameToIndex {
		c.BoneNameToIndex[k] = v
	}
	for k, v := range s.BoneIDToIndex {
		c.BoneIDToIndex[k] = v
	}
	return c
}
