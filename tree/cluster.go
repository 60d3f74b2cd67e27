package tree

import (
	"context"
	"log/slog"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vocabtree/descriptor"
	"github.com/hupe1980/vocabtree/distance"
)

// parallelAssignThreshold is the minimum partition size at which the
// assignment step fans out to worker goroutines. Below it the goroutine
// overhead outweighs the work.
const parallelAssignThreshold = 4096

// clusterer performs the recursive hierarchical k-means (k-majority for
// binary descriptors) that builds the tree. It owns the node-id and word-id
// counters so that ids are assigned in strict pre-order.
type clusterer[E descriptor.Element] struct {
	data    *descriptor.Matrix[E]
	params  Params
	kern    kernel[E]
	dist    distance.Func[E]
	rng     *rand.Rand
	logger  *slog.Logger
	workers int

	numNodes int
	words    []*Node[E]
}

func (c *clusterer[E]) makeLeaf(node *Node[E]) {
	node.Children = nil
	node.WordID = len(c.words)
	c.words = append(c.words, node)
}

// cluster recursively partitions the points referenced by indices into
// Branching clusters and descends until Depth is reached or the partition
// runs out of points.
//
// Indices are sorted when level > 1 so the traversal order of descriptors
// through the tree is a deterministic function of the parent partition:
// downstream caches and tree equality depend on it. The sorted order is also
// the candidate order the center initializer draws its seeds from.
func (c *clusterer[E]) cluster(ctx context.Context, node *Node[E], indices []int, level int) error {
	node.ID = c.numNodes
	c.numNodes++

	if level > 1 {
		sort.Ints(indices)
	}

	// Base case: the last level was reached or there is less data than
	// clusters.
	if level == c.params.Depth || len(indices) < c.params.Branching {
		c.makeLeaf(node)
		return nil
	}

	branching := c.params.Branching
	veclen := c.data.Cols()

	centersIdx := chooseCenters(c.params.CentersInit, branching, indices, c.data, c.dist, c.rng)

	// Base case: the initializer found fewer unique points than clusters.
	if len(centersIdx) < branching {
		c.makeLeaf(node)
		return nil
	}

	c.logger.Debug("clustering node", "level", level, "points", len(indices))

	centers := descriptor.NewMatrix[E](branching, veclen)
	for i, idx := range centersIdx {
		copy(centers.Row(i), c.data.Row(idx))
	}

	counts := make([]int, branching)
	belongsTo := make([]int, len(indices))
	distTo := make([]float32, len(indices))

	if err := c.assign(ctx, indices, centers, belongsTo, distTo); err != nil {
		return err
	}
	for _, b := range belongsTo {
		counts[b]++
	}

	newBelongs := make([]int, len(indices))
	newDist := make([]float32, len(indices))

	converged := false
	maxIter := c.params.maxIterations()
	for iteration := 0; !converged && iteration < maxIter; iteration++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		converged = true

		c.kern.updateCenters(c.data, indices, belongsTo, counts, centers)

		if err := c.assign(ctx, indices, centers, newBelongs, newDist); err != nil {
			return err
		}
		for i := range indices {
			if newBelongs[i] != belongsTo[i] {
				counts[belongsTo[i]]--
				counts[newBelongs[i]]++
				belongsTo[i] = newBelongs[i]
				distTo[i] = newDist[i]
				converged = false
			}
		}

		// Empty-cluster repair: move the farthest member of the largest
		// cluster into each empty one. Repairs apply sequentially; counts
		// update as they go.
		for k := 0; k < branching; k++ {
			if counts[k] != 0 {
				continue
			}

			maxK := 0
			for k1 := 1; k1 < branching; k1++ {
				if counts[maxK] < counts[k1] {
					maxK = k1
				}
			}

			farthest := -1
			maxDist := float32(-1)
			for i := range indices {
				if belongsTo[i] == maxK && distTo[i] > maxDist {
					maxDist = distTo[i]
					farthest = i
				}
			}

			counts[maxK]--
			counts[k]++
			belongsTo[farthest] = k
		}
	}

	// Children own deep copies of the final centers; the scratch matrix
	// does not outlive this call.
	node.Children = make([]*Node[E], branching)
	start, end := 0, 0
	for child := 0; child < branching; child++ {
		// Reorder indices in chunks, one contiguous sub-range per cluster.
		for i := 0; i < len(indices); i++ {
			if belongsTo[i] == child {
				indices[i], indices[end] = indices[end], indices[i]
				belongsTo[i], belongsTo[end] = belongsTo[end], belongsTo[i]
				end++
			}
		}

		center := make([]E, veclen)
		copy(center, centers.Row(child))
		node.Children[child] = &Node[E]{Center: center, WordID: -1}

		if err := c.cluster(ctx, node.Children[child], indices[start:end], level+1); err != nil {
			return err
		}
		start = end
	}

	return nil
}

// assign computes, for every point in indices, the closest center. bestIdx
// receives the argmin cluster and bestDist the minimum distance. Ties break
// toward the lowest cluster index. When the partition is large enough the
// work fans out over contiguous chunks; the result is identical to the
// serial pass since every slot is written independently.
func (c *clusterer[E]) assign(ctx context.Context, indices []int, centers *descriptor.Matrix[E], bestIdx []int, bestDist []float32) error {
	if c.workers <= 1 || len(indices) < parallelAssignThreshold {
		c.assignRange(indices, centers, bestIdx, bestDist, 0, len(indices))
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	chunk := (len(indices) + c.workers - 1) / c.workers
	for lo := 0; lo < len(indices); lo += chunk {
		lo, hi := lo, min(lo+chunk, len(indices))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c.assignRange(indices, centers, bestIdx, bestDist, lo, hi)
			return nil
		})
	}

	return g.Wait()
}

func (c *clusterer[E]) assignRange(indices []int, centers *descriptor.Matrix[E], bestIdx []int, bestDist []float32, lo, hi int) {
	for i := lo; i < hi; i++ {
		row := c.data.Row(indices[i])

		best := 0
		minDist := c.dist(row, centers.Row(0))
		for j := 1; j < centers.Rows(); j++ {
			if d := c.dist(row, centers.Row(j)); d < minDist {
				best = j
				minDist = d
			}
		}

		bestIdx[i] = best
		bestDist[i] = minDist
	}
}
