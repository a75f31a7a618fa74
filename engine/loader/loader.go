// Package loader imports skeletons from model files for use by the IK chain builder.
package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-ik/engine/model"
	"github.com/qmuntal/gltf"
)

// LoaderBackendType identifies the model file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeGLTF selects the glTF/GLB loader backend.
	BackendTypeGLTF LoaderBackendType = iota
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	skeletonCache map[skeletonKey]*model.Skeleton

	backend loaderBackend
}

// skeletonKey identifies one skin of one source.
type skeletonKey struct {
	name string
	skin int
}

// Loader defines the public-facing interface for loading and caching skeletons.
// It abstracts the file format behind a backend and keeps a cache of previously imported skins.
// Cached skeletons are never handed out directly; every call returns a clone the caller may pose.
type Loader interface {
	// LoadSkeleton imports the skin at skinIndex from a model file and caches the result.
	// If the skin is already cached (by file path and skin index), a clone of the cached
	// skeleton is returned without touching the file system.
	//
	// Parameters:
	//   - path: the file path to the model file (.gltf or .glb)
	//   - skinIndex: the index of the skin to import
	//
	// Returns:
	//   - *model.Skeleton: a clone of the imported skeleton
	//   - error: error if the format is unsupported or the import fails
	LoadSkeleton(path string, skinIndex int) (*model.Skeleton, error)

	// LoadSkeletonReader imports the skin at skinIndex from a reader stream and caches it by name.
	// Both the JSON and binary container formats are accepted.
	//
	// Parameters:
	//   - name: the cache key for the imported skeleton
	//   - r: the reader providing model data
	//   - skinIndex: the index of the skin to import
	//
	// Returns:
	//   - *model.Skeleton: a clone of the imported skeleton
	//   - error: error if the import fails
	LoadSkeletonReader(name string, r io.Reader, skinIndex int) (*model.Skeleton, error)

	// Get retrieves a clone of a cached skeleton. Returns nil if not found.
	//
	// Parameters:
	//   - name: the path or name the skeleton was loaded under
	//   - skinIndex: the skin index the skeleton was loaded from
	//
	// Returns:
	//   - *model.Skeleton: a clone of the cached skeleton or nil
	Get(name string, skinIndex int) *model.Skeleton

	// Evict removes every cached skin loaded under name.
	//
	// Parameters:
	//   - name: the path or name to evict
	Evict(name string)

	// Len returns the number of cached skeletons.
	//
	// Returns:
	//   - int: the cache size
	Len() int
}

var _ Loader = &loader{}

// NewLoader creates a new Loader instance with the specified backend type and options applied.
//
// Parameters:
//   - backendType: the type of loader backend to use (e.g., BackendTypeGLTF)
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader configured with the provided backend and options
func NewLoader(backendType LoaderBackendType, options ...LoaderBuilderOption) Loader {
	l := &loader{
		mu:            sync.RWMutex{},
		skeletonCache: make(map[skeletonKey]*model.Skeleton),
	}

	switch backendType {
	case BackendTypeGLTF:
		l.backend = newGLTFLoaderBackend()
	}

	for _, option := range options {
		option(l)
	}
	return l
}

// LoadSkeleton imports one skin of a glTF or GLB file without caching.
//
// Parameters:
//   - path: the file path to the model file
//   - skinIndex: the index of the skin to import
//
// Returns:
//   - *model.Skeleton: the imported skeleton
//   - error: error if loading fails
func LoadSkeleton(path string, skinIndex int) (*model.Skeleton, error) {
	if err := checkExtension(path); err != nil {
		return nil, err
	}
	return newGLTFLoaderBackend().LoadSkeleton(path, skinIndex)
}

// LoadSkeletonForMesh imports the skeleton that skins a mesh of a glTF or GLB file, without
// caching. The skin is the one referenced by the first node that instances the mesh.
//
// Parameters:
//   - path: the file path to the model file
//   - meshIndex: the index of the skinned mesh
//
// Returns:
//   - *model.Skeleton: the imported skeleton
//   - int: the index of the skin the skeleton was built from
//   - error: error if loading fails or no node skins the mesh
func LoadSkeletonForMesh(path string, meshIndex int) (*model.Skeleton, int, error) {
	if err := checkExtension(path); err != nil {
		return nil, -1, err
	}
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, -1, fmt.Errorf("decoding gltf: %w", err)
	}
	return skeletonForMesh(doc, meshIndex)
}

// skeletonForMesh resolves the skin of meshIndex in doc and extracts it.
func skeletonForMesh(doc *gltf.Document, meshIndex int) (*model.Skeleton, int, error) {
	extractor := newGLTFSkeletonExtractor(doc)
	skinIndex := extractor.FindSkeletonForMesh(meshIndex)
	if skinIndex < 0 {
		return nil, -1, fmt.Errorf("mesh %d has no skinned node", meshIndex)
	}
	skeleton, err := extractor.ExtractSkeleton(skinIndex)
	if err != nil {
		return nil, -1, err
	}
	return skeleton, skinIndex, nil
}

// SkeletonFromDocument converts one skin of an already decoded glTF document into a Skeleton.
// Bones are sorted parents-first; bone IDs are the glTF node indices of the joints.
//
// Parameters:
//   - doc: the decoded document
//   - skinIndex: the index of the skin to convert
//
// Returns:
//   - *model.Skeleton: the converted skeleton
//   - error: error if the skin or one of its joints is invalid
func SkeletonFromDocument(doc *gltf.Document, skinIndex int) (*model.Skeleton, error) {
	return newGLTFSkeletonExtractor(doc).ExtractSkeleton(skinIndex)
}

func (l *loader) LoadSkeleton(path string, skinIndex int) (*model.Skeleton, error) {
	key := skeletonKey{name: path, skin: skinIndex}
	if cached := l.lookup(key); cached != nil {
		return cached, nil
	}

	if err := checkExtension(path); err != nil {
		return nil, err
	}

	skeleton, err := l.backend.LoadSkeleton(path, skinIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return l.store(key, skeleton), nil
}

func (l *loader) LoadSkeletonReader(name string, r io.Reader, skinIndex int) (*model.Skeleton, error) {
	key := skeletonKey{name: name, skin: skinIndex}
	if cached := l.lookup(key); cached != nil {
		return cached, nil
	}

	skeleton, err := l.backend.LoadSkeletonReader(r, skinIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to load from reader %q: %w", name, err)
	}
	return l.store(key, skeleton), nil
}

func (l *loader) Get(name string, skinIndex int) *model.Skeleton {
	return l.lookup(skeletonKey{name: name, skin: skinIndex})
}

func (l *loader) Evict(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.skeletonCache {
		if key.name == name {
			delete(l.skeletonCache, key)
		}
	}
}

func (l *loader) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.skeletonCache)
}

// lookup returns a clone of the cached skeleton for key, or nil.
func (l *loader) lookup(key skeletonKey) *model.Skeleton {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if cached, ok := l.skeletonCache[key]; ok {
		return cached.Clone()
	}
	return nil
}

// store caches skeleton under key and returns a clone for the caller.
func (l *loader) store(key skeletonKey, skeleton *model.Skeleton) *model.Skeleton {
	l.mu.Lock()
	l.skeletonCache[key] = skeleton
	l.mu.Unlock()
	return skeleton.Clone()
}

// checkExtension rejects paths whose extension no backend understands.
// Currently only glTF/GLB is supported.
func checkExtension(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gltf", ".glb":
		return nil
	default:
		return fmt.Errorf("unsupported model format: %q", ext)
	}
}
