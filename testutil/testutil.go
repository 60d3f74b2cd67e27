// Package testutil provides deterministic random data generation shared by
// the test suites: a seeded, thread-safe RNG and synthetic descriptor sets
// with known cluster structure.
package testutil

import (
	"math/rand"
	"sync"

	"github.com/hupe1980/vocabtree/descriptor"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// NormFloat32 returns a normally distributed float32 with mean 0 and
// stddev 1.
func (r *RNG) NormFloat32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return float32(r.rand.NormFloat64())
}

// Byte returns a pseudo-random byte.
func (r *RNG) Byte() byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return byte(r.rand.Intn(256))
}

// ClusteredFloatDataset generates clusters*perCluster real descriptors of
// the given dimension: cluster centers are drawn uniformly from
// [0,spread)^dim and members jitter around them with stddev jitter.
func ClusteredFloatDataset(rng *RNG, clusters, perCluster, dim int, spread, jitter float32) *descriptor.Matrix[float32] {
	m := descriptor.NewMatrix[float32](clusters*perCluster, dim)

	for c := 0; c < clusters; c++ {
		center := make([]float32, dim)
		for d := range center {
			center[d] = rng.Float32() * spread
		}

		for p := 0; p < perCluster; p++ {
			row := m.Row(c*perCluster + p)
			for d := range row {
				row[d] = center[d] + rng.NormFloat32()*jitter
			}
		}
	}

	return m
}

// RandomBinaryDataset generates n packed binary descriptors of numBytes
// bytes each with uniformly random bits.
func RandomBinaryDataset(rng *RNG, n, numBytes int) *descriptor.Matrix[uint8] {
	m := descriptor.NewMatrix[uint8](n, numBytes)
	data := m.Data()
	for i := range data {
		data[i] = rng.Byte()
	}
	return m
}
