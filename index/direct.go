package index

import (
	"fmt"
	"sync"

	"github.com/hupe1980/vocabtree/tree"
)

// DirectIndex records, per image, which descriptors passed through each
// intermediate tree node at a fixed level. It restricts feature matching to
// descriptor pairs sharing a common ancestor at that level, which is the
// basis of geometric re-ranking.
type DirectIndex struct {
	level int

	mu     sync.RWMutex
	images map[uint32]map[int][]int
}

// NewDirectIndex creates a direct index at the given intermediate level.
// The level is fixed for the lifetime of the index and must satisfy
// 0 <= level < depth.
func NewDirectIndex(level, depth int) (*DirectIndex, error) {
	if level < 0 || level >= depth {
		return nil, fmt.Errorf("%w: direct index level %d out of range [0,%d)", tree.ErrInvalidParams, level, depth)
	}

	return &DirectIndex{
		level:  level,
		images: make(map[uint32]map[int][]int),
	}, nil
}

// Level returns the intermediate level the index records.
func (d *DirectIndex) Level() int { return d.level }

// NumImages returns the number of images with at least one entry.
func (d *DirectIndex) NumImages() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.images)
}

// Insert records that the image's descriptor at localIdx descended through
// nodeAtL.
func (d *DirectIndex) Insert(imageID uint32, nodeAtL, localIdx int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	nodes, ok := d.images[imageID]
	if !ok {
		nodes = make(map[int][]int)
		d.images[imageID] = nodes
	}
	nodes[nodeAtL] = append(nodes[nodeAtL], localIdx)
}

// Remove drops every entry of an image.
func (d *DirectIndex) Remove(imageID uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.images, imageID)
}

// Lookup returns the descriptor indices of the image that descended through
// nodeAtL, in insertion order. The returned slice is shared; callers must
// not mutate it.
func (d *DirectIndex) Lookup(imageID uint32, nodeAtL int) []int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	nodes, ok := d.images[imageID]
	if !ok {
		return nil
	}
	return nodes[nodeAtL]
}
