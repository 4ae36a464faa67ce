package config

import (
	"errors"
	"math"
	"testing"

	"github.com/GoSim-25-26J-441/spectra-core/pkg/models"
)

const inlineSpectra = `
spectra:
  - {wavelength: 450, hbo2: 62816, hb: 103292}
  - {wavelength: 550, hbo2: 43016, hb: 53412}
  - {wavelength: 650, hbo2: 368, hb: 3750.12}
  - {wavelength: 720, hbo2: 348, hb: 1325.88}
`

func TestParseConfigYAMLString(t *testing.T) {
	yamlText := `
log_level: debug
simulations: 2
photons: 1000
fwhm: 0
wavelengths: [500.0, 600.0]
ranges:
  mucosa:
    bvf: 0.02
    vs: [0.5, 0.5]
    d: {min: 500, max: 500}
    r: 1.0
    sao2: 0.7
` + inlineSpectra

	cfg, err := ParseConfigYAMLString(yamlText)
	if err != nil {
		t.Fatalf("ParseConfigYAMLString failed: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log_level debug, got %q", cfg.LogLevel)
	}
	if cfg.Simulations != 2 || cfg.Photons != 1000 {
		t.Fatalf("unexpected simulations/photons %d/%d", cfg.Simulations, cfg.Photons)
	}
	if len(cfg.Wavelengths) != 2 || cfg.Wavelengths[1] != 600 {
		t.Fatalf("unexpected wavelengths %v", cfg.Wavelengths)
	}
	if cfg.Ranges.Mucosa.BVF != Fixed(0.02) {
		t.Fatalf("expected scalar range to be fixed, got %+v", cfg.Ranges.Mucosa.BVF)
	}
	if cfg.Ranges.Mucosa.D != (Range{Min: 500, Max: 500}) {
		t.Fatalf("expected mapping range, got %+v", cfg.Ranges.Mucosa.D)
	}
	if cfg.Hemoglobin == nil || cfg.Hemoglobin.Len() != 4 {
		t.Fatal("expected inline spectra to be loaded")
	}

	// Defaults survive for keys the file does not set
	if cfg.Workers != 1 || cfg.FailurePolicy != FailureAbort || cfg.Output.Format != FormatNPY {
		t.Fatalf("expected defaults to be kept, got workers=%d policy=%q format=%q",
			cfg.Workers, cfg.FailurePolicy, cfg.Output.Format)
	}
}

func TestParseConfigWavelengthGrid(t *testing.T) {
	cfg, err := ParseConfigYAMLString("wavelengths: {start: 500, stop: 540, step: 10}\n" + inlineSpectra)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []float64{500, 510, 520, 530, 540}
	if len(cfg.Wavelengths) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, cfg.Wavelengths)
	}
	for i, w := range expected {
		if cfg.Wavelengths[i] != w {
			t.Fatalf("expected %v, got %v", expected, cfg.Wavelengths)
		}
	}
}

func TestSubmucosaFallsBackToMucosa(t *testing.T) {
	cfg, err := ParseConfigYAMLString(`
wavelengths: [500]
ranges:
  mucosa: {bvf: [0.1, 0.2], vs: [0.3, 0.4], d: 500, r: 1, sao2: [0.5, 0.6]}
` + inlineSpectra)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := cfg.Ranges.Vector()
	if v[models.ParamSubmucosaBVF] != v[models.ParamBVF] ||
		v[models.ParamSubmucosaVs] != v[models.ParamVs] ||
		v[models.ParamSubmucosaSaO2] != v[models.ParamSaO2] {
		t.Fatalf("expected submucosa to reuse mucosa ranges, got %+v", v)
	}

	cfg, err = ParseConfigYAMLString(`
wavelengths: [500]
ranges:
  submucosa: {bvf: 0.05, vs: 0.5, sao2: 0.9}
` + inlineSpectra)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v = cfg.Ranges.Vector()
	if v[models.ParamSubmucosaSaO2] != Fixed(0.9) {
		t.Fatalf("expected explicit submucosa range, got %+v", v[models.ParamSubmucosaSaO2])
	}
}

func TestParseConfigYAMLStringInvalid(t *testing.T) {
	tests := []struct {
		name     string
		yamlText string
		field    string
	}{
		{"Invalid log level", "log_level: nope\n", "log_level"},
		{"Zero simulations", "simulations: 0\n", "simulations"},
		{"Zero photons", "photons: 0\n", "photons"},
		{"Negative fwhm", "fwhm: -1\n", "fwhm"},
		{"Zero workers", "workers: 0\n", "workers"},
		{"Bad timeout", "call_timeout: soon\n", "call_timeout"},
		{"Unknown policy", "failure_policy: ignore\n", "failure_policy"},
		{"Bad backoff", "retries: {backoff: random}\n", "retries.backoff"},
		{"Inverted range", "ranges: {mucosa: {bvf: [0.3, 0.1]}}\n", "ranges.mucosa.bvf"},
		{"Inverted submucosa range", "ranges: {submucosa: {bvf: 0.1, vs: [0.9, 0.1], sao2: 0.5}}\n", "ranges.submucosa.vs"},
		{"Empty wavelengths", "wavelengths: []\n", "wavelengths"},
		{"Negative wavelength", "wavelengths: [-500]\n", "wavelengths"},
		{"Wavelength outside spectra", "wavelengths: [800]\n", "spectra"},
		{"Unknown format", "output: {format: hdf5}\n", "output.format"},
		{"Bad anisotropy", "engine: {anisotropy: 2}\n", "engine.anisotropy"},
		{"Negative breaker", "circuit_breaker: {failure_threshold: -1}\n", "circuit_breaker"},
		{"Callback scheme", "status: {callback_url: \"ftp://example.com/cb\"}\n", "status.callback_url"},
		{"Callback host", "status: {callback_url: \"http:///cb\"}\n", "status.callback_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfigYAMLString(tt.yamlText + inlineSpectra)
			if err == nil {
				t.Fatalf("expected validation error for %s", tt.name)
			}
			var cfgErr *models.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %T: %v", err, err)
			}
			if cfgErr.Field != tt.field {
				t.Fatalf("expected field %q, got %q (%v)", tt.field, cfgErr.Field, err)
			}
		})
	}
}

func TestParseConfigMissingSpectra(t *testing.T) {
	_, err := ParseConfigYAMLString("wavelengths: [500]\n")
	if !IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError for missing spectra, got %v", err)
	}
}

func TestParseConfigYAMLStringMalformed(t *testing.T) {
	tests := []string{
		"simulations: [unclosed\n",
		"ranges: {mucosa: {bvf: [1, 2, 3]}}\n",
		"wavelengths: {start: 500, stop: 400, step: 10}\n",
		"wavelengths: 500\n",
	}
	for _, yamlText := range tests {
		if _, err := ParseConfigYAMLString(yamlText + inlineSpectra); !IsConfigurationError(err) {
			t.Errorf("expected ConfigurationError for %q, got %v", yamlText, err)
		}
	}
}

func TestGrid(t *testing.T) {
	wl, err := Grid(470, 700, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(wl) != 24 || wl[0] != 470 || wl[23] != 700 {
		t.Fatalf("unexpected grid %v", wl)
	}

	wl, _ = Grid(500, 505, 10)
	if len(wl) != 1 {
		t.Fatalf("expected stop off-grid to be excluded, got %v", wl)
	}

	if _, err := Grid(500, 600, 0); err == nil {
		t.Fatal("expected error for zero step")
	}

	for _, tc := range []struct {
		name              string
		start, stop, step float64
	}{
		{"tiny step", 470, 700, 1e-15},
		{"infinite stop", 470, math.Inf(1), 10},
		{"one past the cap", 0, MaxWavelengths, 1},
	} {
		if wl, err := Grid(tc.start, tc.stop, tc.step); err == nil {
			t.Errorf("%s: expected error, got %d points", tc.name, len(wl))
		}
	}
	if wl, err := Grid(1, MaxWavelengths, 1); err != nil || len(wl) != MaxWavelengths {
		t.Fatalf("expected exactly %d points, got %d (%v)", MaxWavelengths, len(wl), err)
	}
}

func TestParseConfigRejectsHugeWavelengthGrid(t *testing.T) {
	_, err := ParseConfigYAML([]byte("wavelengths: {start: 470, stop: 700, step: 1e-15}\n"))
	if err == nil {
		t.Fatal("expected error for an unbounded wavelength grid")
	}
	var cfgErr *models.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %T: %v", err, err)
	}
}

func TestRangeValid(t *testing.T) {
	if !Fixed(3).Valid() {
		t.Fatal("degenerate range must be valid")
	}
	if (Range{Min: 2, Max: 1}).Valid() {
		t.Fatal("inverted range must be invalid")
	}
}
