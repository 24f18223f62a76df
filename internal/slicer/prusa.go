package slicer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"partpipe/internal/pipeline"
)

// LookupPath is used to find the slicer executable in PATH. Exposed as a
// package variable so tests can mock it.
var LookupPath = exec.LookPath

var supportMaterialRe = regexp.MustCompile(`(?m)^support_material\s*=\s*\d`)

// PrusaSlicer runs the slicer console twice per part. The first pass slices
// with supports forced on to get the total filament weight, print time, and
// dimensions; the second pass slices with supports off to get the object
// weight alone. Support weight is the difference.
type PrusaSlicer struct {
	command         string
	profilePath     string
	supportsEnabled bool
	timeout         time.Duration
}

// NewPrusaSlicer creates a slicer using the given console command and base
// profile INI. When supportsEnabled is false, only the no-supports pass runs
// and support weight is reported as zero.
func NewPrusaSlicer(command, profilePath string, supportsEnabled bool, timeout time.Duration) *PrusaSlicer {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &PrusaSlicer{
		command:         command,
		profilePath:     profilePath,
		supportsEnabled: supportsEnabled,
		timeout:         timeout,
	}
}

// ValidateSetup verifies the slicer binary and base profile are available.
func (s *PrusaSlicer) ValidateSetup() error {
	if s.command == "" {
		return fmt.Errorf("no slicer command configured")
	}
	if strings.ContainsRune(s.command, os.PathSeparator) || strings.ContainsRune(s.command, '/') {
		if _, err := os.Stat(s.command); err != nil {
			return fmt.Errorf("slicer command not found: %w", err)
		}
	} else if _, err := LookupPath(s.command); err != nil {
		return fmt.Errorf("slicer command not found in PATH: %w", err)
	}
	if _, err := os.Stat(s.profilePath); err != nil {
		return fmt.Errorf("slicer profile not found: %w", err)
	}
	return nil
}

// Slice produces raw print metrics for stepPath. Derived profiles and
// G-code are written to a temporary directory and removed afterwards; only
// the extracted numbers survive the call.
func (s *PrusaSlicer) Slice(stepPath string) (*pipeline.SliceMetrics, error) {
	profile, err := os.ReadFile(s.profilePath)
	if err != nil {
		return nil, fmt.Errorf("reading slicer profile: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "partpipe-slice-")
	if err != nil {
		return nil, fmt.Errorf("creating slicer work directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	metrics := &pipeline.SliceMetrics{PrintTime: "Unknown"}

	if s.supportsEnabled {
		withProfile := filepath.Join(tmpDir, "profile_with_supports.ini")
		if err := os.WriteFile(withProfile, setSupportMaterial(profile, true), 0644); err != nil {
			return nil, fmt.Errorf("writing derived profile: %w", err)
		}

		gcode := filepath.Join(tmpDir, "with_supports.gcode")
		out, err := s.run(withProfile, gcode, stepPath)
		if err != nil {
			return nil, fmt.Errorf("slicing with supports: %w", err)
		}
		s.extract(metrics, out, gcode, func(w float64) { metrics.TotalWeightG = w })
	}

	withoutProfile := filepath.Join(tmpDir, "profile_without_supports.ini")
	if err := os.WriteFile(withoutProfile, setSupportMaterial(profile, false), 0644); err != nil {
		return nil, fmt.Errorf("writing derived profile: %w", err)
	}

	gcode := filepath.Join(tmpDir, "without_supports.gcode")
	out, err := s.run(withoutProfile, gcode, stepPath)
	if err != nil {
		return nil, fmt.Errorf("slicing without supports: %w", err)
	}
	s.extract(metrics, out, gcode, func(w float64) { metrics.ObjectWeightG = w })

	if s.supportsEnabled {
		metrics.SupportWeightG = metrics.TotalWeightG - metrics.ObjectWeightG
		if metrics.SupportWeightG < 0 {
			metrics.SupportWeightG = 0
		}
	} else {
		metrics.TotalWeightG = metrics.ObjectWeightG
		metrics.SupportWeightG = 0
	}

	return metrics, nil
}

// run invokes one slicing pass and returns the combined console output.
func (s *PrusaSlicer) run(profilePath, gcodePath, stepPath string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.command,
		"--export-gcode",
		"--output", gcodePath,
		"--load", profilePath,
		"--info",
		stepPath,
	)

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("slicer timed out after %s", s.timeout)
	}
	if err != nil {
		return "", fmt.Errorf("slicer failed: %w (output: %s)", err, trimOutput(combined.String()))
	}
	return combined.String(), nil
}

// extract pulls weight, time, and dimensions from one pass. Weight comes
// from the generated G-code; dimensions only appear on console output. The
// time and dimensions from the first pass that reports them win.
func (s *PrusaSlicer) extract(metrics *pipeline.SliceMetrics, consoleOut, gcodePath string, setWeight func(float64)) {
	if data, err := os.ReadFile(gcodePath); err == nil {
		gcode := string(data)
		if w, ok := ParseWeight(gcode); ok {
			setWeight(w)
		}
		if metrics.PrintTime == "Unknown" {
			if t, ok := ParsePrintTime(gcode); ok {
				metrics.PrintTime = t
			}
		}
	}
	if metrics.PrintTime == "Unknown" {
		if t, ok := ParsePrintTime(consoleOut); ok {
			metrics.PrintTime = t
		}
	}
	if metrics.DimensionsMM == "" {
		if d, ok := ParseDimensions(consoleOut); ok {
			metrics.DimensionsMM = d
		}
	}
}

// setSupportMaterial rewrites the support_material key in a profile, or
// appends it when the profile has none.
func setSupportMaterial(profile []byte, enabled bool) []byte {
	value := "support_material = 0"
	if enabled {
		value = "support_material = 1"
	}
	if supportMaterialRe.Match(profile) {
		return supportMaterialRe.ReplaceAll(profile, []byte(value))
	}
	out := bytes.TrimRight(profile, "\n")
	out = append(out, '\n')
	out = append(out, []byte(value)...)
	out = append(out, '\n')
	return out
}

func trimOutput(out string) string {
	out = strings.TrimSpace(out)
	const max = 500
	if len(out) > max {
		return "..." + out[len(out)-max:]
	}
	if out == "" {
		return "<none>"
	}
	return out
}

// Compile-time check that PrusaSlicer implements pipeline.Slicer
var _ pipeline.Slicer = (*PrusaSlicer)(nil)
