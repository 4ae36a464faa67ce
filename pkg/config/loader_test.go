package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/spectra-core/pkg/models"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("../../configs/spectragen.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected log_level 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.Simulations != 100 {
		t.Errorf("Expected 100 simulations, got %d", cfg.Simulations)
	}
	if len(cfg.Wavelengths) != 24 {
		t.Errorf("Expected 24 wavelengths, got %d", len(cfg.Wavelengths))
	}
	if cfg.Hemoglobin == nil {
		t.Fatal("Expected hemoglobin spectra to be loaded")
	}
	if cfg.Ranges.Submucosa != nil {
		t.Error("Expected submucosa ranges to be omitted in the shipped config")
	}

	timeout, err := cfg.GetCallTimeout()
	if err != nil {
		t.Fatalf("Failed to parse call timeout: %v", err)
	}
	if timeout != 10*time.Minute {
		t.Errorf("Expected 10m timeout, got %v", timeout)
	}

	// Relative paths resolve against the config directory
	if cfg.Engine.Template != filepath.Join("../../configs", "colon.mci.tmpl") {
		t.Errorf("Expected template to resolve next to the config, got %s", cfg.Engine.Template)
	}
	if filepath.Base(cfg.Output.Dir) != "outputRS" {
		t.Errorf("Expected output dir outputRS, got %s", cfg.Output.Dir)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hb.csv"), []byte("400,1,2\n800,3,4\n"), 0o644); err != nil {
		t.Fatalf("Failed to write spectra: %v", err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	return path
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, "spectra_file: hb.csv\nworkers: 2\noutput: {dir: out}\n")

	t.Setenv("SPECTRA_WORKERS", "8")
	t.Setenv("SPECTRA_SIMULATIONS", "5")
	t.Setenv("SPECTRA_FAILURE_POLICY", "nan")
	t.Setenv("SPECTRA_OUTPUT_FORMAT", "csv")
	t.Setenv("SPECTRA_ENGINE_BINARY", "/opt/mcml/bin/mcml")
	t.Setenv("SPECTRA_RETRIES_MAX_RETRIES", "2")
	t.Setenv("SPECTRA_OTEL_ENDPOINT", "http://collector:4318")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Workers != 8 || cfg.Simulations != 5 {
		t.Errorf("expected env to override workers/simulations, got %d/%d", cfg.Workers, cfg.Simulations)
	}
	if cfg.FailurePolicy != FailureNaN || cfg.Output.Format != FormatCSV {
		t.Errorf("expected env policy/format, got %q/%q", cfg.FailurePolicy, cfg.Output.Format)
	}
	if cfg.Engine.Binary != "/opt/mcml/bin/mcml" {
		t.Errorf("expected engine binary override, got %q", cfg.Engine.Binary)
	}
	if cfg.Retries.MaxRetries != 2 {
		t.Errorf("expected 2 retries, got %d", cfg.Retries.MaxRetries)
	}
	if cfg.Telemetry.Endpoint != "http://collector:4318" {
		t.Errorf("expected otel endpoint override, got %q", cfg.Telemetry.Endpoint)
	}
	if cfg.Output.Dir != filepath.Join(filepath.Dir(path), "out") {
		t.Errorf("expected output dir resolved against config dir, got %s", cfg.Output.Dir)
	}
}

func TestLoadConfigInvalidEnv(t *testing.T) {
	path := writeConfig(t, "spectra_file: hb.csv\n")
	t.Setenv("SPECTRA_WORKERS", "many")

	if _, err := LoadConfig(path); !IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestLoadConfigMissingSpectraFile(t *testing.T) {
	path := writeConfig(t, "spectra_file: nope.csv\n")
	_, err := LoadConfig(path)
	var cfgErr *models.ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "spectra_file" {
		t.Fatalf("expected spectra_file ConfigurationError, got %v", err)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yaml")
	var ioErr *models.IOError
	if !errors.As(err, &ioErr) {
		t.Errorf("Expected IOError when loading nonexistent file, got %v", err)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "ranges:\n  mucosa:\n    bvf: [unclosed\n")

	_, err := LoadConfig(path)
	if err == nil {
		t.Error("Expected error when parsing malformed YAML")
	}
}

func TestValidateDefaultConfigNeedsSpectra(t *testing.T) {
	cfg := DefaultConfig()
	err := Validate(cfg)
	var cfgErr *models.ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "spectra" {
		t.Fatalf("expected spectra ConfigurationError, got %v", err)
	}
}
