// Package mcml runs the external MCML program as a simulation engine. Each
// call renders the shared input template into its own .mci file, runs the
// binary on it and reads the reflectance back from the .mco output.
package mcml

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"text/template"

	"github.com/GoSim-25-26J-441/spectra-core/pkg/models"
)

// Layer is one tissue layer of an MCML run. Mua and Mus are in 1/cm,
// D in cm.
type Layer struct {
	Name string
	N    float64
	Mua  float64
	Mus  float64
	G    float64
	D    float64
}

// Input is the data a template is rendered with
type Input struct {
	Label      string
	OutputFile string
	Photons    int
	Layers     []Layer
}

// Template is a parsed .mci template. It is immutable after LoadTemplate
// and safe to render from concurrent calls.
type Template struct {
	path string
	tmpl *template.Template
}

// LoadTemplate reads and parses the input descriptor at path. The file is
// closed before LoadTemplate returns, on every path.
func LoadTemplate(path string) (*Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &models.IOError{Op: "open template", Path: path, Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &models.IOError{Op: "read template", Path: path, Err: err}
	}
	return ParseTemplate(path, string(data))
}

// ParseTemplate parses template text; name is used in error messages
func ParseTemplate(name, text string) (*Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, models.NewConfigurationError("engine.template", "%v", err)
	}
	return &Template{path: name, tmpl: tmpl}, nil
}

// Path returns where the template was loaded from
func (t *Template) Path() string {
	return t.path
}

// Render executes the template into a buffer
func (t *Template) Render(in Input) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, in); err != nil {
		return nil, fmt.Errorf("render %s: %w", t.path, err)
	}
	return buf.Bytes(), nil
}
