package mcml

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/GoSim-25-26J-441/spectra-core/internal/engine"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/config"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/logger"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/models"
	"github.com/google/uuid"
)

// stderrTail bounds how much process output is quoted in errors
const stderrTail = 512

// Engine runs the MCML binary once per request
type Engine struct {
	binary          string
	workDir         string
	tmpl            *Template
	optics          Optics
	keepFiles       bool
	includeSpecular bool
}

var _ engine.Engine = (*Engine)(nil)

// New creates an MCML engine. The work directory is scratch space for
// per-call input and output files and is created when missing.
func New(cfg *config.Engine, tmpl *Template) (*Engine, error) {
	if tmpl == nil {
		return nil, models.NewConfigurationError("engine.template", "no input template loaded")
	}
	if cfg.Binary == "" {
		return nil, models.NewConfigurationError("engine.binary", "cannot be empty")
	}
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, &models.IOError{Op: "create work dir", Path: cfg.WorkDir, Err: err}
	}
	return &Engine{
		binary:          cfg.Binary,
		workDir:         cfg.WorkDir,
		tmpl:            tmpl,
		optics:          OpticsFromConfig(cfg),
		keepFiles:       cfg.KeepFiles,
		includeSpecular: cfg.IncludeSpecular,
	}, nil
}

// Simulate renders a private .mci for req, runs MCML on it and returns the
// diffuse reflectance, plus the specular part when configured.
func (e *Engine) Simulate(ctx context.Context, req engine.Request) (float64, error) {
	layers, err := e.optics.Layers(req)
	if err != nil {
		return 0, err
	}

	base := fmt.Sprintf("sim%05d_%gnm_%s", req.SimIndex, req.Wavelength, uuid.NewString()[:8])
	mciPath := filepath.Join(e.workDir, base+".mci")
	mcoPath := filepath.Join(e.workDir, base+".mco")

	input, err := e.tmpl.Render(Input{
		Label:      base,
		OutputFile: base + ".mco",
		Photons:    req.Photons,
		Layers:     layers,
	})
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(mciPath, input, 0o644); err != nil {
		return 0, &models.IOError{Op: "write input", Path: mciPath, Err: err}
	}
	if !e.keepFiles {
		defer os.Remove(mciPath)
		defer os.Remove(mcoPath)
	}

	cmd := exec.CommandContext(ctx, e.binary, base+".mci")
	cmd.Dir = e.workDir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	logger.Debug("running mcml",
		"sim_index", req.SimIndex,
		"wavelength", req.Wavelength,
		"input", mciPath)

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, fmt.Errorf("%s: %w", e.binary, ctxErr)
		}
		return 0, fmt.Errorf("%s %s: %w: %s", e.binary, base+".mci", err, tail(out.String()))
	}

	f, err := os.Open(mcoPath)
	if err != nil {
		return 0, &models.IOError{Op: "open output", Path: mcoPath, Err: err}
	}
	defer f.Close()

	res, err := ParseOutput(f)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", mcoPath, err)
	}
	if e.includeSpecular {
		return res.Diffuse + res.Specular, nil
	}
	return res.Diffuse, nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTail {
		s = "..." + s[len(s)-stderrTail:]
	}
	return s
}
