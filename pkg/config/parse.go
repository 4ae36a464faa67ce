package config

import (
	"fmt"

	"github.com/GoSim-25-26J-441/spectra-core/internal/spectra"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/models"
	"gopkg.in/yaml.v3"
)

// ParseConfigYAML parses a Config from YAML bytes on top of DefaultConfig,
// builds the hemoglobin table and validates the result. A relative
// spectra_file is resolved against the working directory.
func ParseConfigYAML(data []byte) (*Config, error) {
	cfg, err := decode(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.loadSpectra(); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ParseConfigYAMLString parses a Config from a YAML string and validates it.
func ParseConfigYAMLString(yamlText string) (*Config, error) {
	return ParseConfigYAML([]byte(yamlText))
}

func decode(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &models.ConfigurationError{Reason: fmt.Sprintf("failed to parse config yaml: %v", err)}
	}
	return cfg, nil
}

// loadSpectra fills Hemoglobin from spectra_file, or from the inline
// spectra rows when no file is configured.
func (c *Config) loadSpectra() error {
	switch {
	case c.SpectraFile != "":
		tbl, err := spectra.LoadCSV(c.SpectraFile)
		if err != nil {
			return &models.ConfigurationError{Field: "spectra_file", Reason: err.Error()}
		}
		c.Hemoglobin = tbl
	case len(c.Spectra) > 0:
		tbl, err := spectra.New(c.Spectra)
		if err != nil {
			return &models.ConfigurationError{Field: "spectra", Reason: err.Error()}
		}
		c.Hemoglobin = tbl
	}
	return nil
}
