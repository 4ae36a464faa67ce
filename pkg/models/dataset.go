package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Dataset holds the two parallel result matrices of a run. Row i of
// Parameters and row i of Reflectances belong to the same simulation.
type Dataset struct {
	Parameters   *mat.Dense
	Reflectances *mat.Dense
	Wavelengths  []float64
}

// NewDataset allocates zeroed matrices for n simulations over the given wavelengths
func NewDataset(n int, wavelengths []float64) (*Dataset, error) {
	if n <= 0 {
		return nil, fmt.Errorf("dataset needs at least one row, got %d", n)
	}
	if len(wavelengths) == 0 {
		return nil, fmt.Errorf("dataset needs at least one wavelength")
	}
	wl := make([]float64, len(wavelengths))
	copy(wl, wavelengths)
	return &Dataset{
		Parameters:   mat.NewDense(n, NumParameters, nil),
		Reflectances: mat.NewDense(n, len(wl), nil),
		Wavelengths:  wl,
	}, nil
}

// Rows returns the number of simulations in the dataset
func (d *Dataset) Rows() int {
	r, _ := d.Parameters.Dims()
	return r
}

// SetRow stores the parameter vector and spectrum of simulation i.
// Distinct rows may be written concurrently.
func (d *Dataset) SetRow(i int, params ParameterVector, spectrum []float64) {
	d.Parameters.SetRow(i, params[:])
	d.Reflectances.SetRow(i, spectrum)
}

// ParameterRow returns a copy of row i of the parameter matrix
func (d *Dataset) ParameterRow(i int) ParameterVector {
	var p ParameterVector
	mat.Row(p[:], i, d.Parameters)
	return p
}

// Spectrum returns a copy of row i of the reflectance matrix
func (d *Dataset) Spectrum(i int) []float64 {
	return mat.Row(nil, i, d.Reflectances)
}
