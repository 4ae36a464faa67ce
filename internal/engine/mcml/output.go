package mcml

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Result is the RAT block of an .mco file
type Result struct {
	Specular      float64
	Diffuse       float64
	Absorbed      float64
	Transmittance float64
}

// ParseOutput reads the reflectance, absorption and transmission values
// from MCML output. The diffuse reflectance line is required.
func ParseOutput(r io.Reader) (Result, error) {
	var res Result
	var haveDiffuse bool

	targets := map[string]*float64{
		"#specular reflectance": &res.Specular,
		"#diffuse reflectance":  &res.Diffuse,
		"#absorbed fraction":    &res.Absorbed,
		"#transmittance":        &res.Transmittance,
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		value, comment, ok := strings.Cut(line, "#")
		if !ok {
			continue
		}
		key := "#" + strings.ToLower(strings.TrimSpace(comment))
		for prefix, dst := range targets {
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			fields := strings.Fields(value)
			if len(fields) == 0 {
				return Result{}, fmt.Errorf("missing value on line %q", line)
			}
			v, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return Result{}, fmt.Errorf("bad value on line %q: %w", line, err)
			}
			*dst = v
			if dst == &res.Diffuse {
				haveDiffuse = true
			}
		}
	}
	if err := sc.Err(); err != nil {
		return Result{}, err
	}
	if !haveDiffuse {
		return Result{}, fmt.Errorf("no diffuse reflectance in output")
	}
	return res, nil
}
