// Package store persists the parameter and reflectance matrices of a run
// as two artifacts sharing one minute-resolution timestamp.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/GoSim-25-26J-441/spectra-core/pkg/config"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/models"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// removeFile is replaced in tests to simulate filesystems that refuse deletes
var removeFile = os.Remove

// StampLayout renders e.g. 2024March0702:15PM
const StampLayout = "2006January0203:04PM"

// Artifact name suffixes
const (
	ReflectanceSuffix     = "reflectancesRandomWithNoise"
	ParameterSuffix       = "parametersRandomWithNoise"
	LegacyParameterSuffix = "paramterersRandomWithNoise"
)

// Artifacts names the files written by one Save
type Artifacts struct {
	Stamp        string
	Reflectances string
	Parameters   string
}

// Store writes datasets into an existing output directory. It never
// creates the directory.
type Store struct {
	dir         string
	format      string
	legacyNames bool
	now         func() time.Time
}

// New creates a store for the output settings
func New(cfg *config.Output) *Store {
	format := cfg.Format
	if format == "" {
		format = config.FormatNPY
	}
	return &Store{
		dir:         cfg.Dir,
		format:      format,
		legacyNames: cfg.LegacyNames,
		now:         time.Now,
	}
}

// Dir returns the output directory
func (s *Store) Dir() string {
	return s.dir
}

// Check verifies that the output directory exists, is a directory and is
// writable. It is meant to run before a generation starts.
func (s *Store) Check() error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return &models.IOError{Op: "stat output dir", Path: s.dir, Err: err}
	}
	if !info.IsDir() {
		return &models.IOError{Op: "stat output dir", Path: s.dir, Err: errors.New("not a directory")}
	}
	f, err := os.CreateTemp(s.dir, ".spectragen-check-*")
	if err != nil {
		return &models.IOError{Op: "write output dir", Path: s.dir, Err: err}
	}
	name := f.Name()
	f.Close()
	if err := removeFile(name); err != nil {
		return &models.IOError{Op: "write output dir", Path: s.dir, Err: err}
	}
	return nil
}

// Stamp formats t with StampLayout
func Stamp(t time.Time) string {
	return t.Format(StampLayout)
}

// Names returns the artifact paths for a stamp
func (s *Store) Names(stamp string) Artifacts {
	paramSuffix := ParameterSuffix
	if s.legacyNames {
		paramSuffix = LegacyParameterSuffix
	}
	ext := "." + s.format
	return Artifacts{
		Stamp:        stamp,
		Reflectances: filepath.Join(s.dir, stamp+ReflectanceSuffix+ext),
		Parameters:   filepath.Join(s.dir, stamp+paramSuffix+ext),
	}
}

// Save writes the reflectance and parameter matrices under one stamp taken
// once at call time. Existing artifacts with the same stamp are
// overwritten. When the second artifact cannot be written the first is
// removed.
func (s *Store) Save(ds *models.Dataset) (*Artifacts, error) {
	if ds == nil {
		return nil, fmt.Errorf("no dataset to save")
	}
	if info, err := os.Stat(s.dir); err != nil {
		return nil, &models.IOError{Op: "stat output dir", Path: s.dir, Err: err}
	} else if !info.IsDir() {
		return nil, &models.IOError{Op: "stat output dir", Path: s.dir, Err: errors.New("not a directory")}
	}

	art := s.Names(Stamp(s.now()))
	if err := s.write(art.Reflectances, ds.Reflectances, wavelengthHeader(ds.Wavelengths)); err != nil {
		return nil, err
	}
	if err := s.write(art.Parameters, ds.Parameters, models.ParameterNames[:]); err != nil {
		os.Remove(art.Reflectances)
		return nil, err
	}
	return &art, nil
}

func (s *Store) write(path string, m *mat.Dense, header []string) error {
	f, err := os.Create(path)
	if err != nil {
		return &models.IOError{Op: "create", Path: path, Err: err}
	}

	switch s.format {
	case config.FormatCSV:
		err = writeCSV(f, m, header)
	default:
		err = npyio.Write(f, m)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return &models.IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

func writeCSV(f *os.File, m *mat.Dense, header []string) error {
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	rows, cols := m.Dims()
	record := make([]string, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			record[j] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func wavelengthHeader(wl []float64) []string {
	out := make([]string, len(wl))
	for i, w := range wl {
		out[i] = strconv.FormatFloat(w, 'g', -1, 64)
	}
	return out
}

// LoadNPY reads a matrix written by Save in npy format
func LoadNPY(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &models.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	var m mat.Dense
	if err := npyio.Read(f, &m); err != nil {
		return nil, &models.IOError{Op: "read", Path: path, Err: err}
	}
	return &m, nil
}
