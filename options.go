package vocabtree

import (
	"golang.org/x/time/rate"

	"github.com/hupe1980/vocabtree/index"
)

type options struct {
	logger              *Logger
	metricsCollector    MetricsCollector
	norm                index.NormKind
	directLevel         int // -1 disables the direct index
	maxConcurrentIngest int64
	ingestRate          rate.Limit // 0 means unlimited
	ingestBurst         int
}

// Option configures Database construction behavior.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc != nil {
			o.metricsCollector = mc
		}
	}
}

// WithNormKind selects the BoW vector norm used for weighting and scoring.
// Defaults to L1 (the Nistér–Stewénius formulation).
func WithNormKind(norm index.NormKind) Option {
	return func(o *options) {
		o.norm = norm
	}
}

// WithDirectIndex enables the per-image direct index at the given
// intermediate tree level. Entries are keyed by the child index the descent
// chose at that level (the nodeAtL of Tree.Quantize), not by a node id: at
// level 0 each key is one root child, while at deeper levels descriptors
// under different parents that took the same child index share one entry.
func WithDirectIndex(level int) Option {
	return func(o *options) {
		o.directLevel = level
	}
}

// WithMaxConcurrentIngest bounds how many AddImage calls may quantize
// concurrently. Defaults to 1 (fully serial ingest).
func WithMaxConcurrentIngest(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrentIngest = n
		}
	}
}

// WithIngestRateLimit throttles ingest to imagesPerSec with the given
// burst. Zero disables throttling.
func WithIngestRateLimit(imagesPerSec float64, burst int) Option {
	return func(o *options) {
		o.ingestRate = rate.Limit(imagesPerSec)
		o.ingestBurst = burst
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:              NoopLogger(),
		metricsCollector:    NoopMetricsCollector{},
		norm:                index.NormL1,
		directLevel:         -1,
		maxConcurrentIngest: 1,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
