// Package exporter invokes the CAD application's automation harness to
// convert part files into STEP files. The geometry translation itself
// happens entirely inside the proprietary application; this package only
// launches it and interprets its exit status.
package exporter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"partpipe/internal/pipeline"
)

// Placeholders substituted into the configured argument list.
const (
	inputPlaceholder  = "{input}"
	outputPlaceholder = "{output}"
)

// LookupPath is used to find the harness executable in PATH. Exposed as a
// package variable so tests can mock it.
var LookupPath = exec.LookPath

// ProcessExporter runs the automation harness as a child process, one
// invocation per part file. The harness owns the application session; the
// process exiting is what guarantees the session is released between jobs.
type ProcessExporter struct {
	command      string
	args         []string
	timeout      time.Duration
	skipExitCode int
}

// NewProcessExporter creates an exporter for the given harness command.
// args may contain the {input} and {output} placeholders; when neither is
// present, input and output paths are appended as the final two arguments.
// skipExitCode is the exit code the harness uses to signal "part not
// flagged for export"; zero disables skip detection.
func NewProcessExporter(command string, args []string, timeout time.Duration, skipExitCode int) *ProcessExporter {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &ProcessExporter{
		command:      command,
		args:         args,
		timeout:      timeout,
		skipExitCode: skipExitCode,
	}
}

// ValidateSetup verifies the harness executable exists.
func (e *ProcessExporter) ValidateSetup() error {
	if e.command == "" {
		return fmt.Errorf("no export command configured")
	}
	if strings.ContainsRune(e.command, os.PathSeparator) || strings.ContainsRune(e.command, '/') {
		if _, err := os.Stat(e.command); err != nil {
			return fmt.Errorf("export command not found: %w", err)
		}
		return nil
	}
	if _, err := LookupPath(e.command); err != nil {
		return fmt.Errorf("export command not found in PATH: %w", err)
	}
	return nil
}

// Export runs the harness for one job, blocking until it completes, fails,
// or the timeout expires. The output directory is created first; the
// harness only has to write the file.
func (e *ProcessExporter) Export(job *pipeline.ExportJob) (*pipeline.ExportResult, error) {
	if err := os.MkdirAll(job.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	args := e.buildArgs(job)
	cmd := exec.CommandContext(ctx, e.command, args...)
	cmd.Dir = filepath.Dir(job.Source.String())

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	res := &pipeline.ExportResult{
		Job:      job,
		Output:   combined.String(),
		Duration: duration,
	}

	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("export timed out after %s", e.timeout)
	}

	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) && e.skipExitCode != 0 && ee.ExitCode() == e.skipExitCode {
			res.Skipped = true
			return res, nil
		}
		return nil, fmt.Errorf("export process failed: %w (output: %s)", err, trimOutput(combined.String()))
	}

	return res, nil
}

// buildArgs substitutes the job's paths into the configured arguments.
func (e *ProcessExporter) buildArgs(job *pipeline.ExportJob) []string {
	substituted := false
	args := make([]string, 0, len(e.args)+2)
	for _, a := range e.args {
		if strings.Contains(a, inputPlaceholder) || strings.Contains(a, outputPlaceholder) {
			substituted = true
		}
		a = strings.ReplaceAll(a, inputPlaceholder, job.Source.String())
		a = strings.ReplaceAll(a, outputPlaceholder, job.OutputPath)
		args = append(args, a)
	}
	if !substituted {
		args = append(args, job.Source.String(), job.OutputPath)
	}
	return args
}

// trimOutput keeps error messages readable when the harness is chatty.
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

// Compile-time check that ProcessExporter implements pipeline.Exporter
var _ pipeline.Exporter = (*ProcessExporter)(nil)
