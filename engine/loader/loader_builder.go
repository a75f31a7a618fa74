package loader

import (
	"github.com/Carmen-Shannon/oxy-ik/engine/model"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithSkeleton is an option builder that pre-populates the skeleton cache.
// The loader keeps its own clone, so later changes to skeleton do not leak into the cache.
//
// Parameters:
//   - name: the path or name to cache the skeleton under
//   - skinIndex: the skin index to cache the skeleton under
//   - skeleton: the skeleton to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the skeleton option to a loader
func WithSkeleton(name string, skinIndex int, skeleton *model.Skeleton) LoaderBuilderOption {
	return func(l *loader) {
		if skeleton != nil {
			l.skeletonCache[skeletonKey{name: name, skin: skinIndex}] = skeleton.Clone()
		}
	}
}
