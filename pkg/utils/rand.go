package utils

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// RandSource is a seeded generator safe for concurrent use
type RandSource struct {
	mu   sync.Mutex
	rng  *rand.Rand
	seed int64
}

// NewRandSource creates a source seeded with seed. A zero seed selects a
// time-based seed; Seed reports the one in use so a run can be replayed.
func NewRandSource(seed int64) *RandSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandSource{
		rng:  rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the effective seed
func (r *RandSource) Seed() int64 {
	return r.seed
}

// Float64 returns a variate in [0, 1)
func (r *RandSource) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

// Uniform maps u in [0, 1) onto [min, max]. The result never leaves the
// closed interval, even when rounding would push it past max.
func Uniform(u, min, max float64) float64 {
	if min == max {
		return min
	}
	return math.Min(math.Max(min+u*(max-min), min), max)
}

// fallback serves callers that do not need a reproducible stream, such as
// retry jitter
var fallback = NewRandSource(0)

// Float64 returns a variate from the unseeded package source
func Float64() float64 {
	return fallback.Float64()
}
