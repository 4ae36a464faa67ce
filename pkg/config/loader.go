package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/GoSim-25-26J-441/spectra-core/pkg/models"
	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment override, e.g. SPECTRA_WORKERS
const EnvPrefix = "SPECTRA_"

// LoadConfig loads a configuration file, applies SPECTRA_* environment
// overrides, resolves relative paths against the file's directory, loads
// the hemoglobin spectra and validates everything.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &models.IOError{Op: "read config", Path: path, Err: err}
	}
	cfg, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(path))
	if err := cfg.loadSpectra(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides scalar settings from SPECTRA_* environment variables
func ApplyEnv(cfg *Config) error {
	// inline spectra rows are not env-addressable
	inline := cfg.Spectra
	cfg.Spectra = nil
	defer func() { cfg.Spectra = inline }()

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return &models.ConfigurationError{Field: "env", Reason: err.Error()}
	}
	return nil
}

func (c *Config) resolvePaths(base string) {
	resolve := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
	resolve(&c.SpectraFile)
	resolve(&c.Engine.Template)
	resolve(&c.Engine.WorkDir)
	resolve(&c.Output.Dir)
	resolve(&c.Output.Catalog)
}

// Validate checks the configuration and returns a *models.ConfigurationError
// describing the first problem found.
func Validate(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return models.NewConfigurationError("log_level", "invalid value %q (must be debug, info, warn, or error)", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return models.NewConfigurationError("log_format", "invalid value %q (must be text or json)", cfg.LogFormat)
	}

	if cfg.Simulations <= 0 {
		return models.NewConfigurationError("simulations", "must be positive, got %d", cfg.Simulations)
	}
	if cfg.Photons <= 0 {
		return models.NewConfigurationError("photons", "must be positive, got %d", cfg.Photons)
	}
	if cfg.FWHM < 0 || math.IsNaN(cfg.FWHM) {
		return models.NewConfigurationError("fwhm", "cannot be negative, got %g", cfg.FWHM)
	}
	if cfg.Workers <= 0 {
		return models.NewConfigurationError("workers", "must be positive, got %d", cfg.Workers)
	}
	if cfg.WavelengthWorkers <= 0 {
		return models.NewConfigurationError("wavelength_workers", "must be positive, got %d", cfg.WavelengthWorkers)
	}
	if d, err := cfg.GetCallTimeout(); err != nil {
		return models.NewConfigurationError("call_timeout", "invalid duration %q: %v", cfg.CallTimeout, err)
	} else if d < 0 {
		return models.NewConfigurationError("call_timeout", "cannot be negative, got %s", d)
	}
	if cfg.FailurePolicy != FailureAbort && cfg.FailurePolicy != FailureNaN {
		return models.NewConfigurationError("failure_policy", "invalid value %q (must be abort or nan)", cfg.FailurePolicy)
	}
	if err := validateRetries(&cfg.Retries); err != nil {
		return err
	}
	if b := cfg.Breaker; b.FailureThreshold < 0 || b.SuccessThreshold < 0 || b.OpenMs < 0 {
		return models.NewConfigurationError("circuit_breaker", "thresholds and open_ms cannot be negative")
	}

	if err := validateRanges(cfg.Ranges); err != nil {
		return err
	}
	if err := validateWavelengths(cfg); err != nil {
		return err
	}
	if err := validateEngine(&cfg.Engine); err != nil {
		return err
	}

	if cfg.Output.Format != FormatNPY && cfg.Output.Format != FormatCSV {
		return models.NewConfigurationError("output.format", "invalid value %q (must be npy or csv)", cfg.Output.Format)
	}
	if cfg.Output.Dir == "" {
		return models.NewConfigurationError("output.dir", "cannot be empty")
	}
	if cfg.Status.CallbackURL != "" {
		u, err := url.Parse(strings.ReplaceAll(cfg.Status.CallbackURL, "{run_id}", "x"))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return models.NewConfigurationError("status.callback_url", "invalid URL %q (must be http or https with a host)", cfg.Status.CallbackURL)
		}
	}
	return nil
}

func validateRetries(r *RetryPolicy) error {
	if r.MaxRetries < 0 {
		return models.NewConfigurationError("retries.max_retries", "cannot be negative, got %d", r.MaxRetries)
	}
	validBackoffs := map[string]bool{
		"exponential": true,
		"linear":      true,
		"constant":    true,
	}
	if !validBackoffs[r.Backoff] {
		return models.NewConfigurationError("retries.backoff", "invalid value %q (must be exponential, linear, or constant)", r.Backoff)
	}
	if r.BaseMs < 0 || r.MaxMs < 0 {
		return models.NewConfigurationError("retries", "base_ms and max_ms cannot be negative")
	}
	return nil
}

func validateRanges(r Ranges) error {
	fields := [...]string{
		"ranges.mucosa.bvf", "ranges.mucosa.vs", "ranges.mucosa.d", "ranges.mucosa.r", "ranges.mucosa.sao2",
		"ranges.submucosa.bvf", "ranges.submucosa.vs", "ranges.submucosa.sao2",
	}
	for i, rng := range r.Vector() {
		if !rng.Valid() {
			return models.NewConfigurationError(fields[i], "malformed range [%g, %g]", rng.Min, rng.Max)
		}
	}
	return nil
}

func validateWavelengths(cfg *Config) error {
	if len(cfg.Wavelengths) == 0 {
		return models.NewConfigurationError("wavelengths", "at least one wavelength must be defined")
	}
	for i, w := range cfg.Wavelengths {
		if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return models.NewConfigurationError("wavelengths", "entry %d: wavelength must be positive, got %g", i, w)
		}
	}
	if cfg.Hemoglobin == nil {
		return models.NewConfigurationError("spectra", "no absorption spectra configured (set spectra_file or spectra)")
	}
	for _, w := range cfg.Wavelengths {
		if _, _, err := cfg.Hemoglobin.At(w); err != nil {
			return models.NewConfigurationError("spectra", "missing eHbO2/eHb for %g nm: %v", w, err)
		}
	}
	return nil
}

func validateEngine(e *Engine) error {
	if e.Anisotropy < -1 || e.Anisotropy > 1 {
		return models.NewConfigurationError("engine.anisotropy", "must be between -1 and 1, got %g", e.Anisotropy)
	}
	if e.RefractiveIndex < 1 {
		return models.NewConfigurationError("engine.refractive_index", "must be at least 1, got %g", e.RefractiveIndex)
	}
	if e.SubmucosaDepth <= 0 {
		return models.NewConfigurationError("engine.submucosa_thickness_um", "must be positive, got %g", e.SubmucosaDepth)
	}
	if e.ScatteringRef < 0 || e.Hemoglobin < 0 {
		return models.NewConfigurationError("engine", "scattering_ref and hemoglobin_g_per_l cannot be negative")
	}
	return nil
}

// IsConfigurationError reports whether err wraps a *models.ConfigurationError
func IsConfigurationError(err error) bool {
	var target *models.ConfigurationError
	return errors.As(err, &target)
}
