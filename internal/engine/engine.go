// Package engine defines the contract between the driver and a Monte Carlo
// transport engine: one call computes the reflectance of one parameter set
// at one wavelength.
package engine

import (
	"context"
	"errors"

	"github.com/GoSim-25-26J-441/spectra-core/internal/spectra"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/models"
)

// ErrTimeout marks an engine call that exceeded its per-call deadline
var ErrTimeout = errors.New("engine call timed out")

// ErrCircuitOpen is returned without calling the engine while the circuit
// breaker is open
var ErrCircuitOpen = errors.New("engine circuit open")

// Request is the input of one engine call
type Request struct {
	SimIndex   int
	Wavelength float64 // nm
	Spectra    *spectra.Table
	Mucosa     models.Mucosa
	Submucosa  models.Submucosa
	FWHM       float64 // nm
	Photons    int
}

// Engine runs one simulation and reduces it to a single reflectance value.
// Engines are internally stochastic: identical requests may return
// different values. Implementations must be safe for concurrent use.
type Engine interface {
	Simulate(ctx context.Context, req Request) (float64, error)
}

// Func adapts an ordinary function to the Engine interface
type Func func(ctx context.Context, req Request) (float64, error)

// Simulate calls f(ctx, req)
func (f Func) Simulate(ctx context.Context, req Request) (float64, error) {
	return f(ctx, req)
}

// IsTimeout reports whether err came from an exceeded per-call deadline
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
