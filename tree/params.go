package tree

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrInvalidParams is returned for out-of-range branching, depth,
	// quantization level or centers-init strategy.
	ErrInvalidParams = errors.New("invalid params")

	// ErrEmptyDataset is returned when Build is called over a dataset with
	// zero rows.
	ErrEmptyDataset = errors.New("empty dataset")

	// ErrTreeEmpty is returned when an operation requires a built or loaded
	// tree.
	ErrTreeEmpty = errors.New("tree is empty")

	// ErrParse is returned when a persisted tree file is malformed.
	ErrParse = errors.New("malformed tree file")
)

// CentersInit selects the strategy used to seed cluster centers.
type CentersInit int

const (
	// CentersRandom samples distinct points uniformly at random.
	CentersRandom CentersInit = iota
	// CentersGonzales picks the first point at random and every subsequent
	// point maximizing the minimum distance to the already-chosen centers.
	CentersGonzales
	// CentersKMeansPP picks the first point at random and subsequent points
	// weighted proportionally to their minimum squared distance to the
	// already-chosen centers.
	CentersKMeansPP
)

func (c CentersInit) String() string {
	switch c {
	case CentersRandom:
		return "random"
	case CentersGonzales:
		return "gonzales"
	case CentersKMeansPP:
		return "kmeans++"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// maxIterationsCap bounds the Lloyd loop when MaxIterations is negative
// (uncapped by contract). In practice k-means converges orders of magnitude
// earlier; the cap only guards against pathological non-convergence.
const maxIterationsCap = 1 << 20

// Params holds the training parameters of a vocabulary tree.
type Params struct {
	// Branching is the number of children per interior node. Must be >= 2.
	Branching int
	// Depth is the maximum number of levels below the root. Must be >= 1.
	Depth int
	// MaxIterations caps the Lloyd iterations per node. Negative means
	// uncapped (internally bounded by a safety cap).
	MaxIterations int
	// CentersInit selects the center seeding strategy.
	CentersInit CentersInit
	// Seed seeds the RNG; two builds with equal dataset, params and seed
	// produce byte-identical trees.
	Seed int64
}

// DefaultParams returns the default training parameters: branching 10,
// depth 6, 10 Lloyd iterations, random center seeding.
func DefaultParams() Params {
	return Params{
		Branching:     10,
		Depth:         6,
		MaxIterations: 10,
		CentersInit:   CentersRandom,
	}
}

// Validate checks the parameters for structural validity.
func (p Params) Validate() error {
	if p.Branching < 2 {
		return fmt.Errorf("%w: branching factor must be at least 2, got %d", ErrInvalidParams, p.Branching)
	}
	if p.Depth < 1 {
		return fmt.Errorf("%w: depth must be at least 1, got %d", ErrInvalidParams, p.Depth)
	}
	switch p.CentersInit {
	case CentersRandom, CentersGonzales, CentersKMeansPP:
	default:
		return fmt.Errorf("%w: unknown centers init %d", ErrInvalidParams, int(p.CentersInit))
	}
	return nil
}

// maxIterations resolves the effective iteration cap.
func (p Params) maxIterations() int {
	if p.MaxIterations < 0 {
		return maxIterationsCap
	}
	return p.MaxIterations
}

// Options configures tree construction behavior beyond training parameters.
type Options struct {
	// Workers bounds the number of goroutines used for the assignment step
	// inside a Lloyd iteration. The result is identical to the serial one;
	// only wall-clock time changes. Defaults to GOMAXPROCS.
	Workers int
	// Logger receives structured progress events. Defaults to a discarding
	// logger.
	Logger *slog.Logger
}

// WithWorkers sets the assignment-step parallelism.
func WithWorkers(n int) func(*Options) {
	return func(o *Options) {
		o.Workers = n
	}
}

// WithLogger sets the structured logger used during training.
func WithLogger(logger *slog.Logger) func(*Options) {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}
