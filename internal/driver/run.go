package driver

import (
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/spectra-core/pkg/models"
)

// RunManager tracks the lifecycle and progress of a generation run. It is
// safe for concurrent use and is fed by the driver's events.
type RunManager struct {
	mu             sync.RWMutex
	run            models.RunSummary
	totalCalls     int
	completedCalls int
	completedSims  int
}

// NewRunManager creates a run manager in the pending state
func NewRunManager() *RunManager {
	return &RunManager{
		run: models.RunSummary{Status: models.RunStatusPending},
	}
}

// Start marks a new run as started and resets progress
func (rm *RunManager) Start(runID string, simulations int, wavelengths []float64, seed int64) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	wl := make([]float64, len(wavelengths))
	copy(wl, wavelengths)
	rm.run = models.RunSummary{
		ID:          runID,
		Status:      models.RunStatusRunning,
		Simulations: simulations,
		Wavelengths: wl,
		Seed:        seed,
		StartTime:   time.Now(),
	}
	rm.totalCalls = simulations * len(wavelengths)
	rm.completedCalls = 0
	rm.completedSims = 0
}

// Complete marks the run as completed
func (rm *RunManager) Complete(failedCells int) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.run.Status = models.RunStatusCompleted
	rm.run.FailedCells = failedCells
	rm.run.EndTime = time.Now()
	rm.run.Duration = rm.run.EndTime.Sub(rm.run.StartTime)
}

// Fail marks the run as failed
func (rm *RunManager) Fail(err error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.run.Status = models.RunStatusFailed
	rm.run.EndTime = time.Now()
	rm.run.Duration = rm.run.EndTime.Sub(rm.run.StartTime)
	if err != nil {
		rm.run.Error = err.Error()
	}
}

// GetRun returns a copy of the run summary
func (rm *RunManager) GetRun() models.RunSummary {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	run := rm.run
	run.Wavelengths = append([]float64(nil), rm.run.Wavelengths...)
	return run
}

// Progress returns a snapshot of the run and its progress
func (rm *RunManager) Progress() models.Progress {
	run := rm.GetRun()

	rm.mu.RLock()
	defer rm.mu.RUnlock()

	p := models.Progress{
		RunSummary:           run,
		CompletedSimulations: rm.completedSims,
		CompletedCalls:       rm.completedCalls,
		TotalCalls:           rm.totalCalls,
	}
	if run.Status == models.RunStatusRunning {
		p.Duration = time.Since(run.StartTime)
	}
	if rm.totalCalls > 0 {
		p.Percent = 100 * float64(rm.completedCalls) / float64(rm.totalCalls)
	}
	return p
}

// Observe counts finished calls and simulations of the current run
func (rm *RunManager) Observe(ev models.Event) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if ev.RunID != rm.run.ID {
		return
	}
	switch ev.Type {
	case models.EventWavelengthCompleted, models.EventWavelengthFailed:
		rm.completedCalls++
	case models.EventSimulationCompleted:
		rm.completedSims++
	}
}
