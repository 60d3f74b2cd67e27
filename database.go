package vocabtree

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/hupe1980/vocabtree/descriptor"
	"github.com/hupe1980/vocabtree/index"
	"github.com/hupe1980/vocabtree/tree"
)

// Database binds a built vocabulary tree to an inverted index (and an
// optional direct index) and exposes the image-level operations: ingest,
// commit, and query scoring.
//
// Image ids are assigned densely in ingest order, starting at 0; the dense
// id doubles as the position in the similarity vector returned by
// ScoreQuery.
type Database[E descriptor.Element] struct {
	tree   *tree.Tree[E]
	inv    *index.InvertedIndex[E]
	direct *index.DirectIndex

	logger  *Logger
	metrics MetricsCollector

	ingestSem *semaphore.Weighted
	limiter   *rate.Limiter

	mu     sync.Mutex
	nextID uint32
}

// NewDatabase creates an empty database over the vocabulary of a built or
// loaded tree.
func NewDatabase[E descriptor.Element](t *tree.Tree[E], optFns ...Option) (*Database[E], error) {
	if t == nil || t.Empty() {
		return nil, ErrTreeEmpty
	}

	o := applyOptions(optFns)

	inv, err := index.NewInvertedIndex(t, o.norm)
	if err != nil {
		return nil, err
	}

	db := &Database[E]{
		tree:      t,
		inv:       inv,
		logger:    o.logger,
		metrics:   o.metricsCollector,
		ingestSem: semaphore.NewWeighted(o.maxConcurrentIngest),
	}

	if o.directLevel >= 0 {
		direct, err := index.NewDirectIndex(o.directLevel, t.Depth())
		if err != nil {
			return nil, err
		}
		db.direct = direct
	}

	if o.ingestRate > 0 {
		burst := o.ingestBurst
		if burst < 1 {
			burst = 1
		}
		db.limiter = rate.NewLimiter(o.ingestRate, burst)
	}

	return db, nil
}

// Tree returns the bound vocabulary tree.
func (db *Database[E]) Tree() *tree.Tree[E] { return db.tree }

// InvertedIndex returns the underlying inverted index.
func (db *Database[E]) InvertedIndex() *index.InvertedIndex[E] { return db.inv }

// DirectIndex returns the direct index, or nil when not enabled.
func (db *Database[E]) DirectIndex() *index.DirectIndex { return db.direct }

// NumImages returns the database size.
func (db *Database[E]) NumImages() int { return db.inv.NumImages() }

// AddImage ingests one image's descriptor set and returns its assigned
// dense id. Quantization runs outside the index locks; the index update is
// the commit point, so a cancelled or failed ingest publishes nothing.
func (db *Database[E]) AddImage(ctx context.Context, descs *descriptor.Matrix[E]) (uint32, error) {
	start := time.Now()

	id, err := db.addImage(ctx, descs)

	db.metrics.RecordAddImage(time.Since(start), err)
	db.logger.LogAddImage(ctx, id, descs.Rows(), err)

	return id, err
}

func (db *Database[E]) addImage(ctx context.Context, descs *descriptor.Matrix[E]) (uint32, error) {
	if err := db.ingestSem.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer db.ingestSem.Release(1)

	if db.limiter != nil {
		if err := db.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}

	level := 0
	if db.direct != nil {
		level = db.direct.Level()
	}

	counts := make(map[uint32]uint32)
	nodesAtL := make([]int, descs.Rows())
	for i := 0; i < descs.Rows(); i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		word, nodeAtL, err := db.tree.Quantize(descs.Row(i), level)
		if err != nil {
			return 0, err
		}
		counts[uint32(word)]++
		nodesAtL[i] = nodeAtL
	}

	// Publish. Inverted and direct entries go in under one database lock so
	// an image is either fully visible or absent.
	db.mu.Lock()
	defer db.mu.Unlock()

	id := db.nextID
	if err := db.inv.AddImageVector(id, counts); err != nil {
		return 0, err
	}
	if db.direct != nil {
		for i, nodeAtL := range nodesAtL {
			if nodeAtL >= 0 {
				db.direct.Insert(id, nodeAtL, i)
			}
		}
	}
	db.nextID++

	return id, nil
}

// Commit recomputes idf values and per-image BoW norms so subsequent
// queries observe all ingested images.
func (db *Database[E]) Commit() {
	db.inv.Commit()
}

// ScoreQuery builds the query's BoW vector under the database's idf and
// norm and ranks every database image against it. It returns the dense
// similarity vector indexed by image id and the descending permutation
// over it.
func (db *Database[E]) ScoreQuery(ctx context.Context, query *descriptor.Matrix[E]) ([]float32, []int, error) {
	start := time.Now()

	scores, perm, err := db.inv.Score(ctx, query, db.tree)

	db.metrics.RecordScore(len(scores), time.Since(start), err)
	db.logger.LogScore(ctx, query.Rows(), len(scores), err)

	return scores, perm, err
}

// Match pairs an image id with its similarity to a query.
type Match struct {
	ImageID uint32
	Score   float32
}

// TopK extracts the k best matches from a ScoreQuery result.
func TopK(scores []float32, perm []int, k int) []Match {
	if k > len(perm) {
		k = len(perm)
	}

	matches := make([]Match, 0, k)
	for _, p := range perm[:k] {
		matches = append(matches, Match{ImageID: uint32(p), Score: scores[p]})
	}
	return matches
}
