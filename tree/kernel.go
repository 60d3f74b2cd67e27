package tree

import (
	"strconv"

	"github.com/hupe1980/vocabtree/descriptor"
	"github.com/hupe1980/vocabtree/internal/kmajority"
)

// kernel bundles the element-kind specific pieces of the clustering loop:
// how to recompute cluster centers from an assignment, and how to format
// and parse a single element for the persisted tree format.
//
// Two instances exist: the real kernel (arithmetic mean centroids) and the
// binary kernel (bitwise majority-voting centroids). The clusterer never
// branches on the element kind itself; it dispatches through this bundle.
type kernel[E descriptor.Element] interface {
	// updateCenters recomputes centers (branching x veclen) from the points
	// referenced by indices and their cluster assignment. Clusters with a
	// zero count keep a zeroed center; the caller repairs them afterwards.
	updateCenters(data *descriptor.Matrix[E], indices, belongsTo, counts []int, centers *descriptor.Matrix[E])

	formatElem(e E) string
	parseElem(s string) (E, error)
}

func kernelFor[E descriptor.Element]() kernel[E] {
	switch descriptor.TypeOf[E]() {
	case descriptor.Float32:
		return any(realKernel{}).(kernel[E])
	default:
		return any(binaryKernel{}).(kernel[E])
	}
}

// realKernel computes centroids as the arithmetic mean of cluster members.
type realKernel struct{}

func (realKernel) updateCenters(data *descriptor.Matrix[float32], indices, belongsTo, counts []int, centers *descriptor.Matrix[float32]) {
	flat := centers.Data()
	for i := range flat {
		flat[i] = 0
	}

	for i, idx := range indices {
		center := centers.Row(belongsTo[i])
		row := data.Row(idx)
		for k := range row {
			center[k] += row[k]
		}
	}

	for c := range counts {
		if counts[c] == 0 {
			continue
		}
		scale := 1 / float32(counts[c])
		center := centers.Row(c)
		for k := range center {
			center[k] *= scale
		}
	}
}

func (realKernel) formatElem(e float32) string {
	return strconv.FormatFloat(float64(e), 'g', -1, 32)
}

func (realKernel) parseElem(s string) (float32, error) {
	v, err := strconv.ParseFloat(s, 32)
	return float32(v), err
}

// binaryKernel computes centroids by per-bit majority voting over packed
// binary descriptors.
type binaryKernel struct{}

func (binaryKernel) updateCenters(data *descriptor.Matrix[uint8], indices, belongsTo, counts []int, centers *descriptor.Matrix[uint8]) {
	bitlen := data.Cols() * 8
	counters := make([]int, centers.Rows()*bitlen)

	for i, idx := range indices {
		c := belongsTo[i]
		kmajority.CumBitSum(data.Row(idx), counters[c*bitlen:(c+1)*bitlen])
	}

	for c := range counts {
		kmajority.MajorityVoting(counters[c*bitlen:(c+1)*bitlen], centers.Row(c), counts[c])
	}
}

func (binaryKernel) formatElem(e uint8) string {
	return strconv.FormatUint(uint64(e), 10)
}

func (binaryKernel) parseElem(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	return uint8(v), err
}
