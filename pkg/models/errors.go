package models

import (
	"fmt"
)

// ConfigurationError reports a malformed parameter space or missing spectra
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// NewConfigurationError builds a ConfigurationError with a formatted reason
func NewConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// SimulationError reports an engine failure for one (simulation, wavelength) cell
type SimulationError struct {
	Index      int
	Wavelength float64
	Params     ParameterVector
	Timeout    bool
	Err        error
}

func (e *SimulationError) Error() string {
	kind := "failed"
	if e.Timeout {
		kind = "timed out"
	}
	return fmt.Sprintf("simulation %d at %g nm %s %s: %v", e.Index, e.Wavelength, kind, e.Params, e.Err)
}

func (e *SimulationError) Unwrap() error {
	return e.Err
}

// IOError reports a missing or unusable input descriptor or output location
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
