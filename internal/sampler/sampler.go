// Package sampler draws random tissue parameter vectors from the
// configured parameter space.
package sampler

import (
	"fmt"

	"github.com/GoSim-25-26J-441/spectra-core/pkg/config"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/models"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/utils"
)

// Source yields uniform variates in [0, 1). *utils.RandSource satisfies it.
type Source interface {
	Float64() float64
}

// Sampler draws ParameterVectors. It is not safe for concurrent use; the
// driver draws from a single dispatcher goroutine so that a seed fixes the
// dataset independently of the worker count.
type Sampler struct {
	ranges [models.NumParameters]config.Range
	src    Source
}

// New creates a sampler over the given ranges
func New(ranges config.Ranges, src Source) (*Sampler, error) {
	if src == nil {
		return nil, fmt.Errorf("sampler needs a random source")
	}
	vec := ranges.Vector()
	for i, r := range vec {
		if !r.Valid() {
			return nil, models.NewConfigurationError(models.ParameterNames[i], "malformed range [%g, %g]", r.Min, r.Max)
		}
	}
	return &Sampler{ranges: vec, src: src}, nil
}

// Draw samples every parameter independently and uniformly from its range,
// in column order. Degenerate ranges return their value without consuming
// a variate.
func (s *Sampler) Draw() models.ParameterVector {
	var p models.ParameterVector
	for i, r := range s.ranges {
		if r.Min == r.Max {
			p[i] = r.Min
			continue
		}
		p[i] = utils.Uniform(s.src.Float64(), r.Min, r.Max)
	}
	return p
}

// Ranges returns the sampler's ranges in column order
func (s *Sampler) Ranges() [models.NumParameters]config.Range {
	return s.ranges
}
