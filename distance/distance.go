// Package distance provides the distance kernels used by the vocabulary
// tree: squared L2 over real-valued descriptors and Hamming over packed
// binary descriptors.
package distance

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/hupe1980/vocabtree/descriptor"
)

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// The square root is intentionally not taken; ordering is preserved.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	var distance float32
	for i := range a {
		distance += (a[i] - b[i]) * (a[i] - b[i])
	}

	return distance
}

// Hamming calculates the Hamming distance between two packed bit-vectors:
// the population count of their XOR.
// Assumes slices are the same length.
func Hamming(a, b []byte) float32 {
	var sum int
	i := 0
	for ; i+8 <= len(a); i += 8 {
		v1 := binary.LittleEndian.Uint64(a[i:])
		v2 := binary.LittleEndian.Uint64(b[i:])
		sum += bits.OnesCount64(v1 ^ v2)
	}
	for ; i < len(a); i++ {
		sum += bits.OnesCount8(a[i] ^ b[i])
	}

	return float32(sum)
}

// Func is a distance function over descriptors of element kind E.
type Func[E descriptor.Element] func(a, b []E) float32

// For returns the distance function matching the element kind:
// SquaredL2 for float32 descriptors, Hamming for uint8 descriptors.
func For[E descriptor.Element]() (Func[E], error) {
	switch descriptor.TypeOf[E]() {
	case descriptor.Float32:
		return any(Func[float32](SquaredL2)).(Func[E]), nil
	case descriptor.Uint8:
		return any(Func[uint8](Hamming)).(Func[E]), nil
	default:
		return nil, fmt.Errorf("%w: %v", descriptor.ErrUnsupportedElement, descriptor.TypeOf[E]())
	}
}
