// Package descriptor provides the dense descriptor matrix consumed by the
// vocabulary tree and the element kinds it is polymorphic over.
//
// A descriptor is either a real-valued vector (float32, e.g. SIFT) or a
// binary bit-vector packed into bytes (uint8, e.g. ORB/BRIEF). The matrix
// is row-major: N descriptors of D elements each. Rows are immutable while
// a tree is being trained against the matrix.
package descriptor

import (
	"errors"
	"fmt"
)

// ErrUnsupportedElement is returned for element types the engine does not know.
var ErrUnsupportedElement = errors.New("unsupported element type")

// ErrDimensionMismatch indicates a descriptor length that does not match the
// expected dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ElementType identifies the scalar kind a descriptor is made of.
type ElementType int

const (
	// Float32 is a real-valued descriptor element.
	Float32 ElementType = iota
	// Uint8 is one byte of a packed binary descriptor (8 bits).
	Uint8
)

func (t ElementType) String() string {
	switch t {
	case Float32:
		return "float32"
	case Uint8:
		return "uint8"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// Tag returns the single-character element tag used by the persisted tree
// format: "f" for float32, "u" for uint8.
func (t ElementType) Tag() string {
	switch t {
	case Float32:
		return "f"
	case Uint8:
		return "u"
	default:
		return "?"
	}
}

// ParseTag maps a persisted element tag back to its ElementType.
func ParseTag(tag string) (ElementType, error) {
	switch tag {
	case "f":
		return Float32, nil
	case "u":
		return Uint8, nil
	default:
		return 0, fmt.Errorf("%w: tag %q", ErrUnsupportedElement, tag)
	}
}

// Element constrains the scalar kinds a descriptor matrix can hold.
type Element interface {
	float32 | uint8
}

// TypeOf returns the ElementType for the instantiated element kind.
func TypeOf[E Element]() ElementType {
	var zero E
	switch any(zero).(type) {
	case float32:
		return Float32
	default:
		return Uint8
	}
}

// Matrix is a dense row-major N x D matrix of descriptor elements.
// It is the borrowed dataset view the tree clusters over: the tree never
// takes ownership of the backing slice.
type Matrix[E Element] struct {
	data []E
	rows int
	cols int
}

// NewMatrix creates a zeroed rows x cols matrix.
func NewMatrix[E Element](rows, cols int) *Matrix[E] {
	return &Matrix[E]{
		data: make([]E, rows*cols),
		rows: rows,
		cols: cols,
	}
}

// FromRows builds a matrix by copying the given rows. All rows must have the
// same length.
func FromRows[E Element](rows [][]E) (*Matrix[E], error) {
	if len(rows) == 0 {
		return &Matrix[E]{}, nil
	}

	cols := len(rows[0])
	m := NewMatrix[E](len(rows), cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, &ErrDimensionMismatch{Expected: cols, Actual: len(row)}
		}
		copy(m.Row(i), row)
	}

	return m, nil
}

// Wrap creates a matrix view over an existing flattened slice (rows * cols
// elements). The slice is not copied.
func Wrap[E Element](data []E, cols int) (*Matrix[E], error) {
	if cols <= 0 {
		return nil, fmt.Errorf("invalid column count %d", cols)
	}
	if len(data)%cols != 0 {
		return nil, &ErrDimensionMismatch{Expected: cols, Actual: len(data) % cols}
	}
	return &Matrix[E]{data: data, rows: len(data) / cols, cols: cols}, nil
}

// Rows returns the number of descriptors.
func (m *Matrix[E]) Rows() int { return m.rows }

// Cols returns the descriptor length D.
func (m *Matrix[E]) Cols() int { return m.cols }

// Empty reports whether the matrix holds no descriptors.
func (m *Matrix[E]) Empty() bool { return m.rows == 0 }

// ElementType returns the scalar kind of the matrix.
func (m *Matrix[E]) ElementType() ElementType { return TypeOf[E]() }

// Row returns the i-th descriptor as a view into the backing slice.
func (m *Matrix[E]) Row(i int) []E {
	return m.data[i*m.cols : (i+1)*m.cols]
}

// Data returns the flattened backing slice.
func (m *Matrix[E]) Data() []E { return m.data }
