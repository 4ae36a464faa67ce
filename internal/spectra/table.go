// Package spectra holds the molar extinction spectra of oxy- and
// deoxyhemoglobin and evaluates them at a wavelength or averaged over a
// Gaussian band of given FWHM.
package spectra

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ErrOutOfRange is returned when a wavelength lies outside the tabulated coverage
var ErrOutOfRange = errors.New("wavelength outside tabulated spectra")

// Point is one row of the extinction table. HbO2 and Hb are molar
// extinction coefficients in cm^-1/M; Wavelength is in nm.
type Point struct {
	Wavelength float64 `yaml:"wavelength"`
	HbO2       float64 `yaml:"hbo2"`
	Hb         float64 `yaml:"hb"`
}

// Table is an immutable, wavelength-sorted extinction table
type Table struct {
	points []Point
}

// New builds a table from unsorted points. Wavelengths must be unique and
// coefficients non-negative.
func New(points []Point) (*Table, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("spectra table is empty")
	}
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Wavelength < sorted[j].Wavelength })

	for i, p := range sorted {
		if math.IsNaN(p.Wavelength) || p.Wavelength <= 0 {
			return nil, fmt.Errorf("invalid wavelength %g", p.Wavelength)
		}
		if p.HbO2 < 0 || p.Hb < 0 || math.IsNaN(p.HbO2) || math.IsNaN(p.Hb) {
			return nil, fmt.Errorf("invalid extinction at %g nm: HbO2=%g Hb=%g", p.Wavelength, p.HbO2, p.Hb)
		}
		if i > 0 && sorted[i-1].Wavelength == p.Wavelength {
			return nil, fmt.Errorf("duplicate wavelength %g", p.Wavelength)
		}
	}
	return &Table{points: sorted}, nil
}

// ReadCSV parses "wavelength,HbO2,Hb" rows. Lines starting with '#' and a
// non-numeric header row are skipped; whitespace and tab separated files
// are accepted as well.
func ReadCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read spectra: %w", err)
	}
	text := string(data)
	if !strings.Contains(text, ",") {
		text = normalizeWhitespace(text)
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse spectra csv: %w", err)
	}

	points := make([]Point, 0, len(records))
	for line, rec := range records {
		if len(rec) < 3 {
			return nil, fmt.Errorf("spectra row %d: expected 3 columns, got %d", line+1, len(rec))
		}
		values := make([]float64, 3)
		numeric := true
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				numeric = false
				break
			}
			values[i] = v
		}
		if !numeric {
			if line == 0 {
				continue // header
			}
			return nil, fmt.Errorf("spectra row %d: non-numeric value in %v", line+1, rec)
		}
		points = append(points, Point{Wavelength: values[0], HbO2: values[1], Hb: values[2]})
	}
	return New(points)
}

// LoadCSV reads a spectra table from a file
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spectra file %s: %w", path, err)
	}
	defer f.Close()

	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("spectra file %s: %w", path, err)
	}
	return t, nil
}

func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			lines[i] = trimmed
			continue
		}
		lines[i] = strings.Join(strings.Fields(trimmed), ",")
	}
	return strings.Join(lines, "\n")
}

// Len returns the number of tabulated wavelengths
func (t *Table) Len() int {
	return len(t.points)
}

// Points returns a copy of the tabulated rows
func (t *Table) Points() []Point {
	out := make([]Point, len(t.points))
	copy(out, t.points)
	return out
}

// Coverage returns the smallest and largest tabulated wavelength
func (t *Table) Coverage() (min, max float64) {
	return t.points[0].Wavelength, t.points[len(t.points)-1].Wavelength
}

// Covers reports whether w can be evaluated without extrapolation
func (t *Table) Covers(w float64) bool {
	min, max := t.Coverage()
	return w >= min && w <= max
}

// At linearly interpolates both coefficients at wavelength w
func (t *Table) At(w float64) (hbo2, hb float64, err error) {
	if !t.Covers(w) {
		min, max := t.Coverage()
		return 0, 0, fmt.Errorf("%w: %g nm not in [%g, %g]", ErrOutOfRange, w, min, max)
	}
	i := sort.Search(len(t.points), func(i int) bool { return t.points[i].Wavelength >= w })
	p := t.points[i]
	if p.Wavelength == w || i == 0 {
		return p.HbO2, p.Hb, nil
	}
	prev := t.points[i-1]
	frac := (w - prev.Wavelength) / (p.Wavelength - prev.Wavelength)
	hbo2 = prev.HbO2 + frac*(p.HbO2-prev.HbO2)
	hb = prev.Hb + frac*(p.Hb-prev.Hb)
	return hbo2, hb, nil
}

// bandSamples is the number of quadrature points across +-3 sigma
const bandSamples = 61

// Band averages both coefficients over a Gaussian band centred on center
// with full width at half maximum fwhm. Quadrature points outside the
// table coverage are dropped and the weights renormalised. A zero fwhm
// evaluates at the centre only.
func (t *Table) Band(center, fwhm float64) (hbo2, hb float64, err error) {
	if fwhm < 0 {
		return 0, 0, fmt.Errorf("negative fwhm %g", fwhm)
	}
	if !t.Covers(center) {
		return t.At(center)
	}
	if fwhm == 0 {
		return t.At(center)
	}

	sigma := fwhm / (2 * math.Sqrt(2*math.Ln2))
	step := 6 * sigma / float64(bandSamples-1)
	var sumW float64
	for k := 0; k < bandSamples; k++ {
		x := center - 3*sigma + float64(k)*step
		if !t.Covers(x) {
			continue
		}
		a, b, _ := t.At(x)
		z := (x - center) / sigma
		weight := math.Exp(-0.5 * z * z)
		hbo2 += weight * a
		hb += weight * b
		sumW += weight
	}
	// The centre sample is always covered, so sumW > 0
	return hbo2 / sumW, hb / sumW, nil
}
