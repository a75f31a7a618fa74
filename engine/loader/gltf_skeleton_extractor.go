package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-ik/engine/model"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
)

// gltfSkeletonExtractorImpl is the implementation of the gltfSkeletonExtractor interface.
type gltfSkeletonExtractorImpl struct {
	doc *gltf.Document
}

// gltfSkeletonExtractor defines the interface for extracting skeleton/bone data from a decoded glTF document.
// It converts glTF skin definitions into Skeleton values with topologically sorted bones.
type gltfSkeletonExtractor interface {
	// ExtractSkeleton extracts a skeleton from a skin by index.
	//
	// Parameters:
	//   - skinIndex: the index of the skin to extract
	//
	// Returns:
	//   - *model.Skeleton: the extracted skeleton with topologically sorted bones
	//   - error: error if extraction fails
	ExtractSkeleton(skinIndex int) (*model.Skeleton, error)

	// FindSkeletonForMesh finds which skeleton (skin) is associated with a mesh.
	// Returns -1 if no skeleton is found.
	//
	// Parameters:
	//   - meshIndex: the mesh index to find a skeleton for
	//
	// Returns:
	//   - int: the skin index, or -1 if none
	FindSkeletonForMesh(meshIndex int) int
}

var _ gltfSkeletonExtractor = &gltfSkeletonExtractorImpl{}

// newGLTFSkeletonExtractor creates a new skeleton extractor for a decoded document.
//
// Parameters:
//   - doc: the decoded glTF document
//
// Returns:
//   - gltfSkeletonExtractor: the skeleton extractor
func newGLTFSkeletonExtractor(doc *gltf.Document) gltfSkeletonExtractor {
	return &gltfSkeletonExtractorImpl{doc: doc}
}

func (e *gltfSkeletonExtractorImpl) ExtractSkeleton(skinIndex int) (*model.Skeleton, error) {
	skeleton, _, err := e.extractSkeletonInternal(skinIndex)
	return skeleton, err
}

func (e *gltfSkeletonExtractorImpl) FindSkeletonForMesh(meshIndex int) int {
	if e.doc == nil {
		return -1
	}
	for _, node := range e.doc.Nodes {
		if node != nil && node.Mesh != nil && *node.Mesh == meshIndex && node.Skin != nil {
			return *node.Skin
		}
	}
	return -1
}

// extractSkeletonInternal builds the skeleton of a skin and also returns the joint-to-bone
// index mapping: joint indices are positions in the skin's joint list, bone indices are
// positions in the sorted skeleton.
func (e *gltfSkeletonExtractorImpl) extractSkeletonInternal(skinIndex int) (*model.Skeleton, map[int32]int32, error) {
	doc := e.doc
	if doc == nil {
		return nil, nil, fmt.Errorf("no document loaded")
	}
	if skinIndex < 0 || skinIndex >= len(doc.Skins) || doc.Skins[skinIndex] == nil {
		return nil, nil, fmt.Errorf("skin index %d out of range", skinIndex)
	}
	skin := doc.Skins[skinIndex]

	// First pass: create bones in joint order
	bones := make([]model.Bone, len(skin.Joints))
	jointOfNode := make(map[int]int32, len(skin.Joints))
	for i, nodeIndex := range skin.Joints {
		if nodeIndex < 0 || nodeIndex >= len(doc.Nodes) || doc.Nodes[nodeIndex] == nil {
			return nil, nil, fmt.Errorf("joint %d: invalid node index %d", i, nodeIndex)
		}
		node := doc.Nodes[nodeIndex]

		name := node.Name
		if name == "" {
			name = fmt.Sprintf("bone_%d", i)
		}
		bones[i] = model.Bone{
			ID:             int32(nodeIndex),
			Name:           name,
			ParentIndex:    model.RootParentIndex,
			LocalTransform: gltfNodeTransform(node),
		}
		jointOfNode[nodeIndex] = int32(i)
	}

	// Second pass: a joint's parent is the joint node listing it as a child
	for nodeIndex, node := range doc.Nodes {
		parent, ok := jointOfNode[nodeIndex]
		if !ok || node == nil {
			continue
		}
		for _, child := range node.Children {
			if joint, ok := jointOfNode[child]; ok {
				bones[joint].ParentIndex = parent
			}
		}
	}

	sorted, jointToBone := gltfTopologicalSortBones(bones)

	skeleton := model.NewSkeleton()
	for _, b := range sorted {
		skeleton.AddBone(b.Name, b.ID, b.ParentIndex, b.LocalTransform)
	}
	return skeleton, jointToBone, nil
}

// --- Helper Functions ---

// gltfNodeTransform extracts the local transform of a glTF node, decomposing its matrix when
// the node is specified by matrix instead of TRS.
func gltfNodeTransform(node *gltf.Node) model.Transform {
	if m := node.MatrixOrDefault(); m != gltf.DefaultMatrix {
		return gltfDecomposeMatrix(m)
	}

	t := node.TranslationOrDefault()
	r := node.RotationOrDefault()
	s := node.ScaleOrDefault()
	return model.Transform{
		Translation: mgl32.Vec3{float32(t[0]), float32(t[1]), float32(t[2])},
		Rotation:    mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}}.Normalize(),
		Scale:       mgl32.Vec3{float32(s[0]), float32(s[1]), float32(s[2])},
	}
}

// gltfDecomposeMatrix decomposes a 4x4 column-major matrix into translation, rotation and scale.
// This is an approximation that assumes no shear.
func gltfDecomposeMatrix(m [16]float64) model.Transform {
	var mat mgl32.Mat4
	for i := range m {
		mat[i] = float32(m[i])
	}

	scale := mgl32.Vec3{mat.Col(0).Vec3().Len(), mat.Col(1).Vec3().Len(), mat.Col(2).Vec3().Len()}
	divisor := scale
	for i := range divisor {
		// Avoid division by zero
		if divisor[i] < 0.0001 {
			divisor[i] = 1
		}
	}

	rot := mgl32.Mat3FromCols(
		mat.Col(0).Vec3().Mul(1/divisor[0]),
		mat.Col(1).Vec3().Mul(1/divisor[1]),
		mat.Col(2).Vec3().Mul(1/divisor[2]),
	)
	return model.Transform{
		Translation: mat.Col(3).Vec3(),
		Rotation:    mgl32.Mat4ToQuat(rot.Mat4()).Normalize(),
		Scale:       scale,
	}
}

// gltfTopologicalSortBones sorts bones so that parents always come before children.
//
// Parameters:
//   - bones: bones in joint order with joint-order parent indices
//
// Returns:
//   - []model.Bone: sorted bone array with updated parent indices
//   - map[int32]int32: joint index to sorted bone index mapping
func gltfTopologicalSortBones(bones []model.Bone) ([]model.Bone, map[int32]int32) {
	children := make(map[int32][]int32)
	queue := make([]int32, 0, len(bones))
	for i, bone := range bones {
		if bone.ParentIndex >= 0 {
			children[bone.ParentIndex] = append(children[bone.ParentIndex], int32(i))
		} else {
			queue = append(queue, int32(i))
		}
	}

	// BFS from roots to get topological order
	sorted := make([]int32, 0, len(bones))
	for len(queue) > 0 {
		oldIdx := queue[0]
		queue = queue[1:]
		sorted = append(sorted, oldIdx)
		queue = append(queue, children[oldIdx]...)
	}

	// Bones caught in a parent cycle never reach a root; keep them as roots
	if len(sorted) < len(bones) {
		visited := make(map[int32]bool, len(sorted))
		for _, idx := range sorted {
			visited[idx] = true
		}
		for i := range bones {
			if !visited[int32(i)] {
				bones[i].ParentIndex = model.RootParentIndex
				sorted = append(sorted, int32(i))
			}
		}
	}

	oldToNew := make(map[int32]int32, len(sorted))
	for newIdx, oldIdx := range sorted {
		oldToNew[oldIdx] = int32(newIdx)
	}

	out := make([]model.Bone, len(bones))
	for newIdx, oldIdx := range sorted {
		bone := bones[oldIdx]
		if bone.ParentIndex >= 0 {
			bone.ParentIndex = oldToNew[bone.ParentIndex]
		}
		out[newIdx] = bone
	}
	return out, oldToNew
}
