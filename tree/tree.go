// Package tree implements the hierarchical vocabulary tree: a k-ary
// quantizer trained by recursive k-means (real descriptors) or k-majority
// (binary descriptors). Each leaf is a visual word; quantization descends
// from the root picking the closest child at every level.
package tree

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime"

	"github.com/hupe1980/vocabtree/descriptor"
	"github.com/hupe1980/vocabtree/distance"
)

// Node is a single tree node. Interior nodes carry exactly Branching
// children; leaves carry a word id instead. The tree exclusively owns its
// nodes and their centers.
type Node[E descriptor.Element] struct {
	// ID is the pre-order id assigned during training.
	ID int
	// Center is the cluster centroid this node represents.
	Center []E
	// Children is nil for leaves and has exactly Branching entries otherwise.
	Children []*Node[E]
	// WordID is the dense vocabulary index for leaves, -1 for interior nodes.
	WordID int
}

// IsLeaf reports whether the node is a visual word.
func (n *Node[E]) IsLeaf() bool { return n.Children == nil }

// Tree is a hierarchical vocabulary tree over descriptors of element kind E.
//
// A Tree is not safe for concurrent use while Build runs. Once built or
// loaded it is immutable and safe for any number of concurrent readers.
type Tree[E descriptor.Element] struct {
	params  Params
	veclen  int
	size    int
	root    *Node[E]
	words   []*Node[E]
	dataset *descriptor.Matrix[E]

	kern    kernel[E]
	dist    distance.Func[E]
	logger  *slog.Logger
	workers int
}

// New creates a tree bound to the given training dataset. The dataset is
// borrowed: it must stay unchanged until Build returns.
func New[E descriptor.Element](dataset *descriptor.Matrix[E], params Params, optFns ...func(*Options)) (*Tree[E], error) {
	o := Options{
		Workers: runtime.GOMAXPROCS(0),
		Logger:  slog.New(discardHandler{}),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}

	dist, err := distance.For[E]()
	if err != nil {
		return nil, err
	}

	t := &Tree[E]{
		params:  params,
		dataset: dataset,
		kern:    kernelFor[E](),
		dist:    dist,
		logger:  o.Logger,
		workers: o.Workers,
	}
	if dataset != nil {
		t.veclen = dataset.Cols()
	}

	return t, nil
}

// Build trains the tree over the bound dataset. On error or cancellation
// the tree is rolled back to its previous unbuilt state.
func (t *Tree[E]) Build(ctx context.Context) error {
	if err := t.params.Validate(); err != nil {
		return err
	}
	if t.dataset == nil || t.dataset.Empty() {
		return fmt.Errorf("%w: cannot proceed with clustering", ErrEmptyDataset)
	}
	if t.veclen <= 0 {
		return fmt.Errorf("%w: vector length must be positive, got %d", ErrInvalidParams, t.veclen)
	}

	indices := make([]int, t.dataset.Rows())
	for i := range indices {
		indices[i] = i
	}

	root := &Node[E]{Center: make([]E, t.veclen), WordID: -1}

	c := &clusterer[E]{
		data:    t.dataset,
		params:  t.params,
		kern:    t.kern,
		dist:    t.dist,
		rng:     rand.New(rand.NewSource(t.params.Seed)),
		logger:  t.logger,
		workers: t.workers,
	}

	t.logger.Info("started clustering", "rows", t.dataset.Rows(), "branching", t.params.Branching, "depth", t.params.Depth)

	if err := c.cluster(ctx, root, indices, 0); err != nil {
		return err
	}

	t.root = root
	t.size = c.numNodes
	t.words = c.words

	t.logger.Info("finished clustering", "nodes", t.size, "words", len(t.words))

	return nil
}

// Quantize descends from the root choosing the child with minimum distance
// to the descriptor at every level and returns the word id of the leaf it
// terminates in. nodeAtL is the index of the child chosen at depth level
// (used for direct-index construction), or -1 if the descent ended above
// that depth. Ties break toward the lowest child index.
func (t *Tree[E]) Quantize(desc []E, level int) (wordID, nodeAtL int, err error) {
	if t.root == nil {
		return 0, 0, ErrTreeEmpty
	}
	if level < 0 || level >= t.params.Depth {
		return 0, 0, fmt.Errorf("%w: quantization level %d out of range [0,%d)", ErrInvalidParams, level, t.params.Depth)
	}
	if len(desc) != t.veclen {
		return 0, 0, &descriptor.ErrDimensionMismatch{Expected: t.veclen, Actual: len(desc)}
	}

	nodeAtL = -1
	best := t.root

	for lvl := 0; !best.IsLeaf(); lvl++ {
		node := best

		best = node.Children[0]
		bestJ := 0
		bestDist := t.dist(desc, best.Center)

		for j := 1; j < len(node.Children); j++ {
			if d := t.dist(desc, node.Children[j].Center); d < bestDist {
				bestDist = d
				bestJ = j
				best = node.Children[j]
			}
		}

		if lvl == level {
			nodeAtL = bestJ
		}
	}

	return best.WordID, nodeAtL, nil
}

// Size returns the number of visual words (leaves).
func (t *Tree[E]) Size() int { return len(t.words) }

// NumWords returns the number of visual words (leaves).
func (t *Tree[E]) NumWords() int { return len(t.words) }

// NumNodes returns the total node count in pre-order.
func (t *Tree[E]) NumNodes() int { return t.size }

// Depth returns the configured maximum depth.
func (t *Tree[E]) Depth() int { return t.params.Depth }

// Branching returns the branching factor.
func (t *Tree[E]) Branching() int { return t.params.Branching }

// Veclen returns the descriptor length D.
func (t *Tree[E]) Veclen() int { return t.veclen }

// Params returns the training parameters.
func (t *Tree[E]) Params() Params { return t.params }

// ElementType returns the scalar kind of the tree's descriptors.
func (t *Tree[E]) ElementType() descriptor.ElementType { return descriptor.TypeOf[E]() }

// Root exposes the root node for read-only traversal.
func (t *Tree[E]) Root() *Node[E] { return t.root }

// Empty reports whether the tree has not been built or loaded yet.
func (t *Tree[E]) Empty() bool { return t.root == nil }

// Equal reports structural equality: same vector length, branching and
// depth, same interior/leaf shape at every position and element-wise equal
// centers.
func (t *Tree[E]) Equal(other *Tree[E]) bool {
	if other == nil {
		return false
	}
	if t.veclen != other.veclen || t.params.Branching != other.params.Branching || t.params.Depth != other.params.Depth {
		return false
	}
	return compareEqual(t.root, other.root)
}

func compareEqual[E descriptor.Element](a, b *Node[E]) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.IsLeaf() != b.IsLeaf() {
		return false
	}

	for k := range a.Center {
		if a.Center[k] != b.Center[k] {
			return false
		}
	}

	if a.IsLeaf() {
		return true
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !compareEqual(a.Children[i], b.Children[i]) {
			return false
		}
	}

	return true
}

// discardHandler is a slog.Handler that drops every record.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }
