package index

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedNorm is returned for unknown BoW vector norms.
	ErrUnsupportedNorm = errors.New("unsupported norm kind")

	// ErrParse is returned when a persisted index file is malformed.
	ErrParse = errors.New("malformed index file")

	// ErrImageOrder is returned when an image id breaks the dense
	// append-only id sequence of the database.
	ErrImageOrder = errors.New("image ids must be dense and ascending")
)

// NormKind selects the p-norm used to normalize BoW vectors.
type NormKind uint8

const (
	// NormL1 normalizes by the sum of absolute values and scores with the
	// Nistér–Stewénius L1 formulation.
	NormL1 NormKind = 1
	// NormL2 normalizes by the Euclidean norm and scores with the dot
	// product.
	NormL2 NormKind = 2
)

func (n NormKind) String() string {
	switch n {
	case NormL1:
		return "L1"
	case NormL2:
		return "L2"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(n))
	}
}

// Validate reports whether the norm kind is known.
func (n NormKind) Validate() error {
	switch n {
	case NormL1, NormL2:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedNorm, uint8(n))
	}
}
