package vocabtree

import (
	"github.com/hupe1980/vocabtree/descriptor"
	"github.com/hupe1980/vocabtree/index"
	"github.com/hupe1980/vocabtree/tree"
)

// The root package re-exports the error kinds of its subpackages so callers
// can match them without importing each package individually.
var (
	// ErrInvalidParams covers out-of-range branching, depth, quantization
	// level or centers-init strategy.
	ErrInvalidParams = tree.ErrInvalidParams

	// ErrEmptyDataset is returned when a tree is built over zero rows.
	ErrEmptyDataset = tree.ErrEmptyDataset

	// ErrTreeEmpty is returned when an operation requires a built or loaded
	// tree.
	ErrTreeEmpty = tree.ErrTreeEmpty

	// ErrTreeParse is returned when a persisted tree file is malformed.
	ErrTreeParse = tree.ErrParse

	// ErrIndexParse is returned when a persisted index file is malformed.
	ErrIndexParse = index.ErrParse

	// ErrUnsupportedNorm is returned for unknown BoW vector norms.
	ErrUnsupportedNorm = index.ErrUnsupportedNorm

	// ErrUnsupportedElement is returned for unknown descriptor element kinds.
	ErrUnsupportedElement = descriptor.ErrUnsupportedElement
)

// ErrDimensionMismatch indicates a descriptor/tree dimensionality mismatch
// or an incompatible tree/index pairing.
type ErrDimensionMismatch = descriptor.ErrDimensionMismatch
