// Package driver runs a generation: it draws one parameter vector per
// simulation index, asks the engine for the reflectance at every
// wavelength and assembles the parameter and reflectance matrices.
package driver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/GoSim-25-26J-441/spectra-core/internal/engine"
	"github.com/GoSim-25-26J-441/spectra-core/internal/sampler"
	"github.com/GoSim-25-26J-441/spectra-core/internal/spectra"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/config"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/models"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/GoSim-25-26J-441/spectra-core/internal/driver"

// Options are the run settings the driver needs
type Options struct {
	Simulations       int
	Wavelengths       []float64
	Spectra           *spectra.Table
	FWHM              float64
	Photons           int
	Workers           int
	WavelengthWorkers int
	FailurePolicy     string
	Seed              int64 // reported only; the sampler owns the source
}

// OptionsFromConfig extracts driver options from a validated config
func OptionsFromConfig(cfg *config.Config, seed int64) Options {
	return Options{
		Simulations:       cfg.Simulations,
		Wavelengths:       cfg.Wavelengths,
		Spectra:           cfg.Hemoglobin,
		FWHM:              cfg.FWHM,
		Photons:           cfg.Photons,
		Workers:           cfg.Workers,
		WavelengthWorkers: cfg.WavelengthWorkers,
		FailurePolicy:     cfg.FailurePolicy,
		Seed:              seed,
	}
}

// Result is a finished run
type Result struct {
	RunID       string
	Dataset     *models.Dataset
	FailedCells int
	Seed        int64
	StartTime   time.Time
	Elapsed     time.Duration
}

// Driver executes generation runs. A Driver may run several times but
// not concurrently with itself.
type Driver struct {
	opts     Options
	engine   engine.Engine
	sampler  *sampler.Sampler
	runs     *RunManager
	observer models.Observers
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() string
}

// New creates a driver. Observers receive every event after the driver's
// own RunManager.
func New(opts Options, eng engine.Engine, smp *sampler.Sampler, observers ...models.Observer) (*Driver, error) {
	if eng == nil {
		return nil, fmt.Errorf("driver needs an engine")
	}
	if smp == nil {
		return nil, fmt.Errorf("driver needs a sampler")
	}
	if opts.Simulations <= 0 {
		return nil, models.NewConfigurationError("simulations", "must be positive, got %d", opts.Simulations)
	}
	if len(opts.Wavelengths) == 0 {
		return nil, models.NewConfigurationError("wavelengths", "at least one wavelength must be defined")
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.WavelengthWorkers <= 0 {
		opts.WavelengthWorkers = 1
	}
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = config.FailureAbort
	}

	runs := NewRunManager()
	return &Driver{
		opts:     opts,
		engine:   eng,
		sampler:  smp,
		runs:     runs,
		observer: append(models.Observers{runs}, observers...),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
		newID:    uuid.NewString,
	}, nil
}

// RunManager exposes the live state of the current or last run
func (d *Driver) RunManager() *RunManager {
	return d.runs
}

// Run performs one generation. Under the abort policy the first engine
// failure cancels all outstanding work and is returned as a
// *models.SimulationError; no dataset is returned. Under the nan policy
// failed cells hold NaN and are counted in the result. Cancelling ctx
// aborts the run.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	runID := d.newID()
	start := d.now()
	total := d.opts.Simulations

	ctx, span := d.tracer.Start(ctx, "driver.Run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Int("run.simulations", total),
		attribute.Int("run.wavelengths", len(d.opts.Wavelengths)),
		attribute.Int("run.workers", d.opts.Workers),
		attribute.String("run.failure_policy", d.opts.FailurePolicy),
	))
	defer span.End()

	ds, err := models.NewDataset(total, d.opts.Wavelengths)
	if err != nil {
		return nil, err
	}

	d.runs.Start(runID, total, d.opts.Wavelengths, d.opts.Seed)
	d.emit(models.Event{Type: models.EventRunStarted, RunID: runID, SimIndex: -1, Total: total, Time: start})

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)

	// Vectors are drawn here, in index order, so the dataset depends only
	// on the seed and not on the worker count.
	for i := 0; i < total; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		params := d.sampler.Draw()
		g.Go(func() error {
			return d.simulate(gctx, runID, i, params, ds, &failed)
		})
	}

	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	elapsed := d.now().Sub(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.runs.Fail(err)
		d.emit(models.Event{Type: models.EventRunFailed, RunID: runID, SimIndex: -1, Total: total,
			Elapsed: elapsed, FailedCells: int(failed.Load()), Err: err, Time: d.now()})
		return nil, err
	}

	span.SetAttributes(attribute.Int("run.failed_cells", int(failed.Load())))
	d.runs.Complete(int(failed.Load()))
	d.emit(models.Event{Type: models.EventRunCompleted, RunID: runID, SimIndex: -1, Total: total,
		Elapsed: elapsed, FailedCells: int(failed.Load()), Time: d.now()})

	return &Result{
		RunID:       runID,
		Dataset:     ds,
		FailedCells: int(failed.Load()),
		Seed:        d.opts.Seed,
		StartTime:   start,
		Elapsed:     elapsed,
	}, nil
}

// simulate fills row i of ds
func (d *Driver) simulate(ctx context.Context, runID string, i int, params models.ParameterVector, ds *models.Dataset, failed *atomic.Int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := d.now()
	total := d.opts.Simulations

	ctx, span := d.tracer.Start(ctx, "driver.simulate", trace.WithAttributes(
		attribute.Int("sim.index", i),
		attribute.String("sim.params", params.String()),
	))
	defer span.End()

	d.emit(models.Event{Type: models.EventSimulationStarted, RunID: runID, SimIndex: i, Total: total, Params: params, Time: start})

	spectrum := make([]float64, len(d.opts.Wavelengths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.WavelengthWorkers)

	for j, w := range d.opts.Wavelengths {
		if gctx.Err() != nil {
			break
		}
		j, w := j, w
		g.Go(func() error {
			v, err := d.call(gctx, runID, i, w, params)
			if err == nil {
				spectrum[j] = v
				return nil
			}
			if d.opts.FailurePolicy == config.FailureNaN && isSimulationError(err) {
				spectrum[j] = math.NaN()
				failed.Add(1)
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if isSimulationError(err) {
			d.emit(models.Event{Type: models.EventSimulationFailed, RunID: runID, SimIndex: i, Total: total,
				Params: params, Elapsed: d.now().Sub(start), Err: err, Time: d.now()})
		}
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ds.SetRow(i, params, spectrum)
	d.emit(models.Event{Type: models.EventSimulationCompleted, RunID: runID, SimIndex: i, Total: total,
		Params: params, Elapsed: d.now().Sub(start), Time: d.now()})
	return nil
}

// call runs one engine call and converts failures into SimulationErrors.
// Cancellation of the run is returned as is.
func (d *Driver) call(ctx context.Context, runID string, i int, w float64, params models.ParameterVector) (float64, error) {
	start := d.now()
	v, err := d.engine.Simulate(ctx, engine.Request{
		SimIndex:   i,
		Wavelength: w,
		Spectra:    d.opts.Spectra,
		Mucosa:     params.Mucosa(),
		Submucosa:  params.Submucosa(),
		FWHM:       d.opts.FWHM,
		Photons:    d.opts.Photons,
	})
	elapsed := d.now().Sub(start)

	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		simErr := &models.SimulationError{
			Index:      i,
			Wavelength: w,
			Params:     params,
			Timeout:    engine.IsTimeout(err),
			Err:        err,
		}
		d.emit(models.Event{Type: models.EventWavelengthFailed, RunID: runID, SimIndex: i, Total: d.opts.Simulations,
			Wavelength: w, Params: params, Elapsed: elapsed, Err: simErr, Time: d.now()})
		return 0, simErr
	}

	d.emit(models.Event{Type: models.EventWavelengthCompleted, RunID: runID, SimIndex: i, Total: d.opts.Simulations,
		Wavelength: w, Params: params, Reflectance: v, Elapsed: elapsed, Time: d.now()})
	return v, nil
}

func (d *Driver) emit(ev models.Event) {
	d.observer.Observe(ev)
}

func isSimulationError(err error) bool {
	var simErr *models.SimulationError
	return errors.As(err, &simErr)
}
