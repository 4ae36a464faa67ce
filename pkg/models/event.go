package models

import "time"

// EventType represents the type of a generation run event
type EventType string

const (
	EventRunStarted          EventType = "run_started"
	EventSimulationStarted   EventType = "simulation_started"
	EventWavelengthCompleted EventType = "wavelength_completed"
	EventWavelengthFailed    EventType = "wavelength_failed"
	EventSimulationCompleted EventType = "simulation_completed"
	EventSimulationFailed    EventType = "simulation_failed"
	EventRunCompleted        EventType = "run_completed"
	EventRunFailed           EventType = "run_failed"
)

// Event is one entry of the structured run event stream.
// SimIndex is -1 for run-level events.
type Event struct {
	Type        EventType       `json:"type"`
	RunID       string          `json:"run_id"`
	Time        time.Time       `json:"time"`
	SimIndex    int             `json:"sim_index"`
	Total       int             `json:"total"`
	Wavelength  float64         `json:"wavelength,omitempty"`
	Params      ParameterVector `json:"params"`
	Reflectance float64         `json:"reflectance,omitempty"`
	Elapsed     time.Duration   `json:"elapsed,omitempty"`
	FailedCells int             `json:"failed_cells,omitempty"`
	Err         error           `json:"-"`
}

// Observer receives run events. Implementations must be safe for
// concurrent use; events are emitted from worker goroutines.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(Event)

// Observe calls f(ev)
func (f ObserverFunc) Observe(ev Event) {
	f(ev)
}

// Observers fans an event out to several observers in order
type Observers []Observer

// Observe forwards ev to every non-nil observer
func (os Observers) Observe(ev Event) {
	for _, o := range os {
		if o != nil {
			o.Observe(ev)
		}
	}
}
