package testutil

import (
	"fmt"
	"time"

	"partpipe/internal/pipeline"
)

// FakeExporter is a scripted pipeline.Exporter. By default every job
// succeeds and writes a deterministic STEP file into the mock filesystem.
type FakeExporter struct {
	// FS receives the generated output files. Required for successful jobs.
	FS *MockFilesystemManager

	// FailPaths maps source paths to injected failures.
	FailPaths map[string]error

	// SkipPaths marks source paths the application declines to export.
	SkipPaths map[string]bool

	// SilentPaths marks source paths where the application reports success
	// without producing an output file.
	SilentPaths map[string]bool

	// ValidateErr is returned by ValidateSetup.
	ValidateErr error

	// Exported records the source path of every Export call, in order.
	Exported []string
}

func NewFakeExporter(fs *MockFilesystemManager) *FakeExporter {
	return &FakeExporter{
		FS:          fs,
		FailPaths:   make(map[string]error),
		SkipPaths:   make(map[string]bool),
		SilentPaths: make(map[string]bool),
	}
}

func (e *FakeExporter) Export(job *pipeline.ExportJob) (*pipeline.ExportResult, error) {
	src := job.Source.String()
	e.Exported = append(e.Exported, src)

	if err := e.FailPaths[src]; err != nil {
		return nil, err
	}
	if e.SkipPaths[src] {
		return &pipeline.ExportResult{Skipped: true, Output: "part not flagged for export"}, nil
	}
	if e.SilentPaths[src] {
		return &pipeline.ExportResult{Output: "done"}, nil
	}

	content := []byte(StepContent(job.Source.BaseName()))
	if err := e.FS.WriteFile(job.OutputPath, content, 0644); err != nil {
		return nil, err
	}
	return &pipeline.ExportResult{
		Output:   fmt.Sprintf("exported %s", src),
		Duration: 50 * time.Millisecond,
	}, nil
}

func (e *FakeExporter) ValidateSetup() error { return e.ValidateErr }

// StepContent returns the deterministic output content FakeExporter writes
// for a part, so tests can assert on exact file bytes and checksums.
func StepContent(baseName string) string {
	return "ISO-10303-21; " + baseName
}

var _ pipeline.Exporter = (*FakeExporter)(nil)
