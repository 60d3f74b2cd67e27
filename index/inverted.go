// Package index provides the retrieval side of the vocabulary tree: the
// inverted index mapping visual words to posting lists, the direct index
// mapping intermediate tree nodes to descriptor indices, and the similarity
// scoring of query descriptor sets against the database.
package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vocabtree/descriptor"
	"github.com/hupe1980/vocabtree/tree"
)

// posting records one image's term frequency for a word.
type posting struct {
	imageID uint32
	count   uint32
}

// InvertedIndex maps visual words to posting lists and maintains the tf-idf
// statistics needed to score queries against the database.
//
// Ingest (AddImage) is a write operation serialized internally. Scoring
// observes the last committed snapshot; an in-flight ingest is never
// visible. Once committed, any number of readers may score concurrently.
type InvertedIndex[E descriptor.Element] struct {
	mu       sync.RWMutex
	norm     NormKind
	numWords int
	postings [][]posting
	images   int

	// Derived at commit time from the posting lists.
	idf   []float32
	norms []float32
	dirty bool
}

// NewInvertedIndex creates an empty index over the vocabulary of the given
// tree.
func NewInvertedIndex[E descriptor.Element](t *tree.Tree[E], norm NormKind) (*InvertedIndex[E], error) {
	if t == nil || t.Empty() {
		return nil, tree.ErrTreeEmpty
	}
	if err := norm.Validate(); err != nil {
		return nil, err
	}

	return &InvertedIndex[E]{
		norm:     norm,
		numWords: t.NumWords(),
		postings: make([][]posting, t.NumWords()),
	}, nil
}

// SetNormKind switches the BoW norm. Images already ingested are
// renormalized under the new norm at the next commit.
func (idx *InvertedIndex[E]) SetNormKind(norm NormKind) error {
	if err := norm.Validate(); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.norm = norm
	idx.dirty = idx.images > 0
	return nil
}

// Norm returns the configured BoW norm kind.
func (idx *InvertedIndex[E]) Norm() NormKind {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.norm
}

// NumImages returns the number of images in the database.
func (idx *InvertedIndex[E]) NumImages() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.images
}

// NumWords returns the vocabulary size the index was built over.
func (idx *InvertedIndex[E]) NumWords() int { return idx.numWords }

// DF returns the document frequency of a word.
func (idx *InvertedIndex[E]) DF(word int) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if word < 0 || word >= idx.numWords {
		return 0
	}
	return len(idx.postings[word])
}

// checkTree verifies the tree this call quantizes with matches the
// vocabulary the index was built over.
func (idx *InvertedIndex[E]) checkTree(t *tree.Tree[E]) error {
	if t == nil || t.Empty() {
		return tree.ErrTreeEmpty
	}
	if t.NumWords() != idx.numWords {
		return &descriptor.ErrDimensionMismatch{Expected: idx.numWords, Actual: t.NumWords()}
	}
	return nil
}

// quantizeSet quantizes every descriptor of the set and returns the sparse
// term-frequency vector over word ids.
func quantizeSet[E descriptor.Element](ctx context.Context, descs *descriptor.Matrix[E], t *tree.Tree[E]) (map[uint32]uint32, error) {
	tf := make(map[uint32]uint32)

	for i := 0; i < descs.Rows(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		word, _, err := t.Quantize(descs.Row(i), 0)
		if err != nil {
			return nil, err
		}
		tf[uint32(word)]++
	}

	return tf, nil
}

// wordSet collects the distinct words of a sparse vector for ordered
// iteration.
func wordSet(counts map[uint32]uint32) *roaring.Bitmap {
	seen := roaring.New()
	for w := range counts {
		seen.Add(w)
	}
	return seen
}

// AddImage ingests one image: every descriptor is quantized through the
// tree, the sparse word-count vector is accumulated, and each touched
// posting list receives one (imageID, count) entry. Image ids must be
// dense: the first image is 0, the next 1, and so on.
//
// The sparse vector is computed before the index is touched; on error or
// cancellation nothing is published (no half-added image).
func (idx *InvertedIndex[E]) AddImage(ctx context.Context, imageID uint32, descs *descriptor.Matrix[E], t *tree.Tree[E]) error {
	if err := idx.checkTree(t); err != nil {
		return err
	}

	tf, err := quantizeSet(ctx, descs, t)
	if err != nil {
		return err
	}

	return idx.AddImageVector(imageID, tf)
}

// AddImageVector publishes an already-quantized sparse word-count vector.
// This is the commit point of an ingest: it either applies completely or
// not at all.
func (idx *InvertedIndex[E]) AddImageVector(imageID uint32, counts map[uint32]uint32) error {
	seen := wordSet(counts)
	if m := seen.Maximum(); !seen.IsEmpty() && int(m) >= idx.numWords {
		return &descriptor.ErrDimensionMismatch{Expected: idx.numWords, Actual: int(m)}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if int(imageID) != idx.images {
		return fmt.Errorf("%w: got %d, want %d", ErrImageOrder, imageID, idx.images)
	}

	it := seen.Iterator()
	for it.HasNext() {
		w := it.Next()
		idx.postings[w] = append(idx.postings[w], posting{imageID: imageID, count: counts[w]})
	}

	idx.images++
	idx.dirty = true
	return nil
}

// Commit derives idf values and per-image BoW norms from the current
// posting lists. Scoring always observes the last committed state.
func (idx *InvertedIndex[E]) Commit() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.commitLocked()
}

func (idx *InvertedIndex[E]) commitLocked() {
	idx.idf = make([]float32, idx.numWords)
	for w, plist := range idx.postings {
		if df := len(plist); df > 0 {
			idx.idf[w] = float32(math.Log(float64(idx.images) / float64(df)))
		}
	}

	idx.norms = make([]float32, idx.images)
	for w, plist := range idx.postings {
		weight := idx.idf[w]
		if weight == 0 {
			continue
		}
		for _, p := range plist {
			v := float32(p.count) * weight
			switch idx.norm {
			case NormL2:
				idx.norms[p.imageID] += v * v
			default:
				idx.norms[p.imageID] += abs32(v)
			}
		}
	}
	if idx.norm == NormL2 {
		for i, n := range idx.norms {
			idx.norms[i] = float32(math.Sqrt(float64(n)))
		}
	}

	idx.dirty = false
}

// Score ranks the database against a query descriptor set. It returns a
// dense similarity vector of length NumImages (images sharing no word with
// the query score 0) and the descending permutation over it. Higher is more
// similar for both norms.
func (idx *InvertedIndex[E]) Score(ctx context.Context, query *descriptor.Matrix[E], t *tree.Tree[E]) ([]float32, []int, error) {
	if err := idx.checkTree(t); err != nil {
		return nil, nil, err
	}
	if err := idx.norm.Validate(); err != nil {
		return nil, nil, err
	}

	qtf, err := quantizeSet(ctx, query, t)
	if err != nil {
		return nil, nil, err
	}
	seen := wordSet(qtf)

	idx.mu.RLock()
	for idx.dirty {
		idx.mu.RUnlock()
		idx.Commit()
		idx.mu.RLock()
	}
	defer idx.mu.RUnlock()

	scores := make([]float32, idx.images)
	if idx.images == 0 {
		return scores, nil, nil
	}

	// Query BoW norm under the same idf as the database.
	var qnorm float32
	it := seen.Iterator()
	for it.HasNext() {
		w := it.Next()
		v := float32(qtf[w]) * idx.idf[w]
		if idx.norm == NormL2 {
			qnorm += v * v
		} else {
			qnorm += abs32(v)
		}
	}
	if idx.norm == NormL2 {
		qnorm = float32(math.Sqrt(float64(qnorm)))
	}

	if qnorm > 0 {
		it = seen.Iterator()
		for it.HasNext() {
			w := it.Next()
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}

			qv := float32(qtf[w]) * idx.idf[w] / qnorm
			if qv == 0 {
				continue
			}

			for _, p := range idx.postings[w] {
				if idx.norms[p.imageID] == 0 {
					continue
				}
				dv := float32(p.count) * idx.idf[w] / idx.norms[p.imageID]

				if idx.norm == NormL2 {
					scores[p.imageID] += qv * dv
				} else {
					// Nistér–Stewénius L1: |q| + |d| - |q - d|, i.e.
					// 2*min(|q|,|d|) for same-sign entries.
					scores[p.imageID] += abs32(qv) + abs32(dv) - abs32(qv-dv)
				}
			}
		}
	}

	perm := make([]int, len(scores))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		return scores[perm[a]] > scores[perm[b]]
	})

	return scores, perm, nil
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
