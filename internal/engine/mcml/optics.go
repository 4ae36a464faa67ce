package mcml

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/spectra-core/internal/engine"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/config"
)

const (
	// hemoglobinMolarMass is in g/mol
	hemoglobinMolarMass = 64500
	// umToCm converts micrometres to centimetres
	umToCm = 1e-4
	// scatteringRefWavelength is the wavelength mus_ref is given at, nm
	scatteringRefWavelength = 500
)

// Optics maps sampled tissue parameters onto MCML layer coefficients
type Optics struct {
	Anisotropy         float64
	RefractiveIndex    float64
	ScatteringRef      float64 // 1/cm at 500 nm for Vs = 1
	ScatteringPower    float64
	Hemoglobin         float64 // g/L in whole blood
	SubmucosaThickness float64 // um
}

// OpticsFromConfig copies the optical constants out of the engine config
func OpticsFromConfig(cfg *config.Engine) Optics {
	return Optics{
		Anisotropy:         cfg.Anisotropy,
		RefractiveIndex:    cfg.RefractiveIndex,
		ScatteringRef:      cfg.ScatteringRef,
		ScatteringPower:    cfg.ScatteringPower,
		Hemoglobin:         cfg.Hemoglobin,
		SubmucosaThickness: cfg.SubmucosaDepth,
	}
}

// BloodAbsorption returns the absorption coefficient of whole blood in 1/cm
// from molar extinction coefficients in cm^-1/M.
func BloodAbsorption(eHbO2, eHb, sao2, hbGPerL float64) float64 {
	molar := hbGPerL / hemoglobinMolarMass
	return math.Ln10 * molar * (sao2*eHbO2 + (1-sao2)*eHb)
}

// PackagingFactor is the vessel packaging correction for blood confined to
// vessels of the given radius (um). It tends to 1 for thin vessels.
func PackagingFactor(muaBlood, radiusUm float64) float64 {
	x := 2 * muaBlood * radiusUm * umToCm
	if x <= 0 {
		return 1
	}
	return (1 - math.Exp(-x)) / x
}

// Scattering returns the reduced-scale power law mus = vs * ref * (w/500)^-b
func (o Optics) Scattering(vs, wavelength float64) float64 {
	return vs * o.ScatteringRef * math.Pow(wavelength/scatteringRefWavelength, -o.ScatteringPower)
}

// Layers derives the mucosa and submucosa layers for req
func (o Optics) Layers(req engine.Request) ([]Layer, error) {
	if req.Spectra == nil {
		return nil, fmt.Errorf("no absorption spectra in request")
	}
	eHbO2, eHb, err := req.Spectra.Band(req.Wavelength, req.FWHM)
	if err != nil {
		return nil, err
	}

	m, sm := req.Mucosa, req.Submucosa
	muaM := BloodAbsorption(eHbO2, eHb, m.SaO2, o.Hemoglobin)
	muaSM := BloodAbsorption(eHbO2, eHb, sm.SaO2, o.Hemoglobin)

	return []Layer{
		{
			Name: "mucosa",
			N:    o.RefractiveIndex,
			Mua:  m.BVF * PackagingFactor(muaM, m.Radius) * muaM,
			Mus:  o.Scattering(m.Vs, req.Wavelength),
			G:    o.Anisotropy,
			D:    m.Thickness * umToCm,
		},
		{
			Name: "submucosa",
			N:    o.RefractiveIndex,
			Mua:  sm.BVF * PackagingFactor(muaSM, m.Radius) * muaSM,
			Mus:  o.Scattering(sm.Vs, req.Wavelength),
			G:    o.Anisotropy,
			D:    o.SubmucosaThickness * umToCm,
		},
	}, nil
}
