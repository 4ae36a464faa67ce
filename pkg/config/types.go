package config

import (
	"fmt"
	"math"
	"time"

	"github.com/GoSim-25-26J-441/spectra-core/internal/spectra"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/models"
	"gopkg.in/yaml.v3"
)

// Failure policies for engine errors
const (
	FailureAbort = "abort"
	FailureNaN   = "nan"
)

// Output formats of the result store
const (
	FormatNPY = "npy"
	FormatCSV = "csv"
)

// Config represents the data generation configuration
type Config struct {
	LogLevel          string      `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat         string      `yaml:"log_format" env:"LOG_FORMAT"`
	Simulations       int         `yaml:"simulations" env:"SIMULATIONS"`
	Photons           int         `yaml:"photons" env:"PHOTONS"`
	FWHM              float64     `yaml:"fwhm" env:"FWHM"` // nm
	Seed              int64       `yaml:"seed" env:"SEED"` // 0 = time based
	Workers           int         `yaml:"workers" env:"WORKERS"`
	WavelengthWorkers int         `yaml:"wavelength_workers" env:"WAVELENGTH_WORKERS"`
	CallTimeout       string      `yaml:"call_timeout" env:"CALL_TIMEOUT"` // e.g. "10m", empty = none
	FailurePolicy     string      `yaml:"failure_policy" env:"FAILURE_POLICY"`
	Retries           RetryPolicy `yaml:"retries" envPrefix:"RETRIES_"`
	Breaker           Breaker     `yaml:"circuit_breaker" envPrefix:"BREAKER_"`

	Wavelengths WavelengthSet   `yaml:"wavelengths"`
	SpectraFile string          `yaml:"spectra_file" env:"SPECTRA_FILE"`
	Spectra     []spectra.Point `yaml:"spectra,omitempty"`
	Ranges      Ranges          `yaml:"ranges"`

	Engine    Engine    `yaml:"engine" envPrefix:"ENGINE_"`
	Output    Output    `yaml:"output" envPrefix:"OUTPUT_"`
	Status    Status    `yaml:"status" envPrefix:"STATUS_"`
	Telemetry Telemetry `yaml:"telemetry" envPrefix:"OTEL_"`

	// Hemoglobin is the loaded extinction table, filled by LoadConfig or ParseConfigYAML
	Hemoglobin *spectra.Table `yaml:"-"`
}

// RetryPolicy represents opt-in retry configuration for engine calls
type RetryPolicy struct {
	MaxRetries int    `yaml:"max_retries" env:"MAX_RETRIES"`
	Backoff    string `yaml:"backoff" env:"BACKOFF"` // exponential, linear, constant
	BaseMs     int    `yaml:"base_ms" env:"BASE_MS"`
	MaxMs      int    `yaml:"max_ms" env:"MAX_MS"`
}

// Breaker configures the engine circuit breaker. A zero FailureThreshold
// disables it.
type Breaker struct {
	FailureThreshold int `yaml:"failure_threshold" env:"FAILURE_THRESHOLD"`
	SuccessThreshold int `yaml:"success_threshold" env:"SUCCESS_THRESHOLD"`
	OpenMs           int `yaml:"open_ms" env:"OPEN_MS"`
}

// Engine configures the MCML subprocess adapter
type Engine struct {
	Binary          string  `yaml:"binary" env:"BINARY"`
	Template        string  `yaml:"template" env:"TEMPLATE"`
	WorkDir         string  `yaml:"work_dir" env:"WORK_DIR"`
	KeepFiles       bool    `yaml:"keep_files" env:"KEEP_FILES"`
	IncludeSpecular bool    `yaml:"include_specular" env:"INCLUDE_SPECULAR"`
	SubmucosaDepth  float64 `yaml:"submucosa_thickness_um"`
	Anisotropy      float64 `yaml:"anisotropy"`
	RefractiveIndex float64 `yaml:"refractive_index"`
	ScatteringRef   float64 `yaml:"scattering_ref"`   // mus at 500 nm for Vs = 1, 1/cm
	ScatteringPower float64 `yaml:"scattering_power"` // power law exponent b
	Hemoglobin      float64 `yaml:"hemoglobin_g_per_l"`
}

// Output configures the result store
type Output struct {
	Dir         string `yaml:"dir" env:"DIR"`
	Format      string `yaml:"format" env:"FORMAT"` // npy or csv
	LegacyNames bool   `yaml:"legacy_names" env:"LEGACY_NAMES"`
	Catalog     string `yaml:"catalog" env:"CATALOG"` // sqlite path, empty disables
}

// Status configures the optional progress surfaces and the completion
// callback
type Status struct {
	HTTPAddr       string `yaml:"http_addr" env:"HTTP_ADDR"`
	GRPCAddr       string `yaml:"grpc_addr" env:"GRPC_ADDR"`
	CallbackURL    string `yaml:"callback_url" env:"CALLBACK_URL"` // {run_id} is substituted
	CallbackSecret string `yaml:"callback_secret" env:"CALLBACK_SECRET"`
}

// Telemetry configures OpenTelemetry tracing
type Telemetry struct {
	Endpoint    string `yaml:"otlp_endpoint" env:"ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}

// Range is a closed interval [Min, Max]. In YAML it may be written as a
// two-element list, a {min, max} mapping or a single number (fixed value).
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Fixed returns a degenerate range
func Fixed(v float64) Range {
	return Range{Min: v, Max: v}
}

// UnmarshalYAML accepts [min, max], {min: a, max: b} or a scalar
func (r *Range) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v float64
		if err := node.Decode(&v); err != nil {
			return err
		}
		*r = Fixed(v)
		return nil
	case yaml.SequenceNode:
		var pair []float64
		if err := node.Decode(&pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("line %d: range needs exactly 2 values, got %d", node.Line, len(pair))
		}
		*r = Range{Min: pair[0], Max: pair[1]}
		return nil
	case yaml.MappingNode:
		type plain Range
		var p plain
		if err := node.Decode(&p); err != nil {
			return err
		}
		*r = Range(p)
		return nil
	default:
		return fmt.Errorf("line %d: unsupported range syntax", node.Line)
	}
}

// Valid reports whether the range is well-formed
func (r Range) Valid() bool {
	return !math.IsNaN(r.Min) && !math.IsNaN(r.Max) &&
		!math.IsInf(r.Min, 0) && !math.IsInf(r.Max, 0) && r.Min <= r.Max
}

// MucosaRanges are the ranges of the upper layer parameters
type MucosaRanges struct {
	BVF  Range `yaml:"bvf"`
	Vs   Range `yaml:"vs"`
	D    Range `yaml:"d"`
	R    Range `yaml:"r"`
	SaO2 Range `yaml:"sao2"`
}

// SubmucosaRanges are the ranges of the lower layer parameters
type SubmucosaRanges struct {
	BVF  Range `yaml:"bvf"`
	Vs   Range `yaml:"vs"`
	SaO2 Range `yaml:"sao2"`
}

// Ranges is the parameter space. A nil Submucosa reuses the mucosa ranges.
type Ranges struct {
	Mucosa    MucosaRanges     `yaml:"mucosa"`
	Submucosa *SubmucosaRanges `yaml:"submucosa,omitempty"`
}

// Vector returns the ranges in ParameterVector column order
func (r Ranges) Vector() [models.NumParameters]Range {
	sm := SubmucosaRanges{BVF: r.Mucosa.BVF, Vs: r.Mucosa.Vs, SaO2: r.Mucosa.SaO2}
	if r.Submucosa != nil {
		sm = *r.Submucosa
	}
	return [models.NumParameters]Range{
		models.ParamBVF:           r.Mucosa.BVF,
		models.ParamVs:            r.Mucosa.Vs,
		models.ParamD:             r.Mucosa.D,
		models.ParamR:             r.Mucosa.R,
		models.ParamSaO2:          r.Mucosa.SaO2,
		models.ParamSubmucosaBVF:  sm.BVF,
		models.ParamSubmucosaVs:   sm.Vs,
		models.ParamSubmucosaSaO2: sm.SaO2,
	}
}

// WavelengthSet is the ordered list of wavelengths in nm. In YAML it may
// be a list or a {start, stop, step} grid that includes stop when it lies
// on the grid.
type WavelengthSet []float64

// UnmarshalYAML accepts a list or a grid mapping
func (w *WavelengthSet) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []float64
		if err := node.Decode(&list); err != nil {
			return err
		}
		*w = list
		return nil
	case yaml.MappingNode:
		var grid struct {
			Start float64 `yaml:"start"`
			Stop  float64 `yaml:"stop"`
			Step  float64 `yaml:"step"`
		}
		if err := node.Decode(&grid); err != nil {
			return err
		}
		list, err := Grid(grid.Start, grid.Stop, grid.Step)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*w = list
		return nil
	default:
		return fmt.Errorf("line %d: wavelengths must be a list or a {start, stop, step} mapping", node.Line)
	}
}

// MaxWavelengths bounds the size of an expanded wavelength grid
const MaxWavelengths = 100_000

// Grid expands start..stop in increments of step
func Grid(start, stop, step float64) ([]float64, error) {
	if step <= 0 || math.IsNaN(step) {
		return nil, fmt.Errorf("wavelength step must be positive, got %g", step)
	}
	if stop < start {
		return nil, fmt.Errorf("wavelength stop %g before start %g", stop, start)
	}
	span := math.Floor((stop-start)/step + 1e-9)
	if math.IsNaN(span) || span >= MaxWavelengths {
		return nil, fmt.Errorf("wavelength grid %g..%g step %g exceeds %d points", start, stop, step, MaxWavelengths)
	}
	n := int(span) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out, nil
}

// GetCallTimeout parses the per-call timeout; zero means none
func (c *Config) GetCallTimeout() (time.Duration, error) {
	if c.CallTimeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.CallTimeout)
}

// DefaultConfig returns the parameter space of the normal-tissue setup
func DefaultConfig() *Config {
	wl, _ := Grid(470, 700, 10)
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Simulations:       100,
		Photons:           1_000_000,
		FWHM:              20,
		Workers:           1,
		WavelengthWorkers: 1,
		FailurePolicy:     FailureAbort,
		Retries: RetryPolicy{
			Backoff: "exponential",
			BaseMs:  500,
			MaxMs:   30_000,
		},
		Breaker: Breaker{
			SuccessThreshold: 1,
			OpenMs:           60_000,
		},
		Wavelengths: wl,
		Ranges: Ranges{
			Mucosa: MucosaRanges{
				BVF:  Range{Min: 0.01, Max: 0.30},
				Vs:   Range{Min: 0.01, Max: 0.30},
				D:    Range{Min: 250, Max: 735},
				R:    Range{Min: 2, Max: 7.5},
				SaO2: Range{Min: 0, Max: 1},
			},
		},
		Engine: Engine{
			Binary:          "mcml",
			WorkDir:         "outputMC",
			SubmucosaDepth:  5000,
			Anisotropy:      0.9,
			RefractiveIndex: 1.38,
			ScatteringRef:   1000,
			ScatteringPower: 1.286,
			Hemoglobin:      150,
		},
		Output: Output{
			Dir:    "outputRS",
			Format: FormatNPY,
		},
		Telemetry: Telemetry{
			ServiceName: "spectragen",
		},
	}
}
