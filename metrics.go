package vocabtree

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordBuild records a tree build. Database does not build trees and
	// never calls it.
	// duration is the total time taken, err is nil if successful.
	RecordBuild(duration time.Duration, err error)

	// RecordAddImage is called after each image ingest.
	RecordAddImage(duration time.Duration, err error)

	// RecordScore is called after each query scoring operation.
	// images is the database size scored against.
	RecordScore(images int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(time.Duration, error)      {}
func (NoopMetricsCollector) RecordAddImage(time.Duration, error)   {}
func (NoopMetricsCollector) RecordScore(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount         atomic.Int64
	BuildErrors        atomic.Int64
	BuildTotalNanos    atomic.Int64
	AddImageCount      atomic.Int64
	AddImageErrors     atomic.Int64
	AddImageTotalNanos atomic.Int64
	ScoreCount         atomic.Int64
	ScoreErrors        atomic.Int64
	ScoreTotalNanos    atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

// RecordAddImage implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAddImage(duration time.Duration, err error) {
	b.AddImageCount.Add(1)
	b.AddImageTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AddImageErrors.Add(1)
	}
}

// RecordScore implements MetricsCollector.
func (b *BasicMetricsCollector) RecordScore(_ int, duration time.Duration, err error) {
	b.ScoreCount.Add(1)
	b.ScoreTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ScoreErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildCount:       b.BuildCount.Load(),
		BuildErrors:      b.BuildErrors.Load(),
		AddImageCount:    b.AddImageCount.Load(),
		AddImageErrors:   b.AddImageErrors.Load(),
		AddImageAvgNanos: avg(b.AddImageTotalNanos.Load(), b.AddImageCount.Load()),
		ScoreCount:       b.ScoreCount.Load(),
		ScoreErrors:      b.ScoreErrors.Load(),
		ScoreAvgNanos:    avg(b.ScoreTotalNanos.Load(), b.ScoreCount.Load()),
		BuildTotalNanos:  b.BuildTotalNanos.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount       int64
	BuildErrors      int64
	BuildTotalNanos  int64
	AddImageCount    int64
	AddImageErrors   int64
	AddImageAvgNanos int64
	ScoreCount       int64
	ScoreErrors      int64
	ScoreAvgNanos    int64
}
