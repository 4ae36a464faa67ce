package sampler

import (
	"testing"

	"github.com/GoSim-25-26J-441/spectra-core/pkg/config"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/models"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/utils"
)

// sequence replays a fixed list of variates
type sequence struct {
	values []float64
	next   int
}

func (s *sequence) Float64() float64 {
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

func TestDrawWithinRanges(t *testing.T) {
	ranges := config.DefaultConfig().Ranges
	s, err := New(ranges, utils.NewRandSource(42))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	vec := ranges.Vector()
	for n := 0; n < 10000; n++ {
		p := s.Draw()
		for i, v := range p {
			if v < vec[i].Min || v > vec[i].Max {
				t.Fatalf("draw %d: %s=%g outside [%g, %g]", n, models.ParameterNames[i], v, vec[i].Min, vec[i].Max)
			}
		}
	}
}

func TestDrawDegenerateIsExact(t *testing.T) {
	ranges := config.Ranges{
		Mucosa: config.MucosaRanges{
			BVF:  config.Fixed(0.02),
			Vs:   config.Fixed(0.5),
			D:    config.Fixed(500),
			R:    config.Fixed(1.0),
			SaO2: config.Fixed(0.7),
		},
	}
	s, err := New(ranges, utils.NewRandSource(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := models.ParameterVector{0.02, 0.5, 500, 1.0, 0.7, 0.02, 0.5, 0.7}
	for n := 0; n < 10000; n++ {
		if got := s.Draw(); got != want {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestDrawOrderAndMapping(t *testing.T) {
	ranges := config.Ranges{
		Mucosa: config.MucosaRanges{
			BVF:  config.Range{Min: 0, Max: 1},
			Vs:   config.Range{Min: 0, Max: 10},
			D:    config.Range{Min: 100, Max: 200},
			R:    config.Fixed(3),
			SaO2: config.Range{Min: 0, Max: 1},
		},
		Submucosa: &config.SubmucosaRanges{
			BVF:  config.Range{Min: 0, Max: 2},
			Vs:   config.Range{Min: 0, Max: 4},
			SaO2: config.Range{Min: 0, Max: 8},
		},
	}
	src := &sequence{values: []float64{0.5, 0.1, 0.25, 0.75, 0.5, 0.5, 0.5}}
	s, err := New(ranges, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := s.Draw()
	want := models.ParameterVector{0.5, 1, 125, 3, 0.75, 1, 2, 4}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if src.next != 7 {
		t.Fatalf("expected 7 variates consumed (fixed r skipped), got %d", src.next)
	}
}

func TestSameSeedSameVectors(t *testing.T) {
	ranges := config.DefaultConfig().Ranges
	a, _ := New(ranges, utils.NewRandSource(99))
	b, _ := New(ranges, utils.NewRandSource(99))
	for n := 0; n < 100; n++ {
		if a.Draw() != b.Draw() {
			t.Fatal("expected identical sequences for identical seeds")
		}
	}
}

func TestNewRejectsMalformed(t *testing.T) {
	ranges := config.DefaultConfig().Ranges
	ranges.Mucosa.SaO2 = config.Range{Min: 1, Max: 0}
	if _, err := New(ranges, utils.NewRandSource(1)); !config.IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if _, err := New(config.DefaultConfig().Ranges, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}
