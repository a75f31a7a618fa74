package loader

import (
	"fmt"
	"io"

	"github.com/Carmen-Shannon/oxy-ik/engine/model"
	"github.com/qmuntal/gltf"
)

// gltfLoaderBackendImpl is the implementation of gltfLoaderBackend.
type gltfLoaderBackendImpl struct{}

// gltfLoaderBackend is a loaderBackend implementation for glTF/GLB files.
// Decoding is delegated to qmuntal/gltf and skin conversion to the skeleton extractor.
type gltfLoaderBackend interface {
	loaderBackend
}

var _ gltfLoaderBackend = &gltfLoaderBackendImpl{}

// newGLTFLoaderBackend creates a new glTF loader backend.
//
// Returns:
//   - gltfLoaderBackend: the loader backend for glTF/GLB files
func newGLTFLoaderBackend() gltfLoaderBackend {
	return &gltfLoaderBackendImpl{}
}

func (b *gltfLoaderBackendImpl) LoadSkeleton(path string, skinIndex int) (*model.Skeleton, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decoding gltf: %w", err)
	}
	return newGLTFSkeletonExtractor(doc).ExtractSkeleton(skinIndex)
}

func (b *gltfLoaderBackendImpl) LoadSkeletonReader(r io.Reader, skinIndex int) (*model.Skeleton, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("decoding gltf: %w", err)
	}
	return newGLTFSkeletonExtractor(doc).ExtractSkeleton(skinIndex)
}
