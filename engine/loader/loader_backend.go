package loader

import (
	"io"

	"github.com/Carmen-Shannon/oxy-ik/engine/model"
)

// loaderBackend defines the generic interface for importing skeletons from files or streams.
// Concrete implementations (e.g., gltfLoaderBackend) handle format-specific details.
type loaderBackend interface {
	// LoadSkeleton imports one skin from the given file path.
	//
	// Parameters:
	//   - path: the file path to load
	//   - skinIndex: the index of the skin to import
	//
	// Returns:
	//   - *model.Skeleton: the imported skeleton
	//   - error: error if loading fails
	LoadSkeleton(path string, skinIndex int) (*model.Skeleton, error)

	// LoadSkeletonReader imports one skin from a reader stream.
	//
	// Parameters:
	//   - r: the reader providing model data
	//   - skinIndex: the index of the skin to import
	//
	// Returns:
	//   - *model.Skeleton: the imported skeleton
	//   - error: error if loading fails
	LoadSkeletonReader(r io.Reader, skinIndex int) (*model.Skeleton, error)
}
