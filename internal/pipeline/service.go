package pipeline

import (
	"fmt"
	"strings"
)

// Options carries the pipeline policies that come from configuration.
type Options struct {
	// SourceExtensions are the part file extensions to export, lowercased
	// with leading dot (default ".ipt").
	SourceExtensions []string

	// ExportDirName is the sibling directory receiving STEP files.
	ExportDirName string

	// StatsDirName is the directory receiving slicer stats, nested inside
	// the export directory.
	StatsDirName string

	// BOMDirName is the directory receiving BOM files, nested inside the
	// export directory.
	BOMDirName string

	// FilamentCostPerKG prices sliced parts. Zero disables pricing.
	FilamentCostPerKG float64

	// PrintSettings is a human-readable profile description copied into
	// stats files.
	PrintSettings string

	// ContinueOnError keeps the run going past job failures. The failures
	// are still surfaced through the run's final error.
	ContinueOnError bool

	// Author is the automation identity used for commits.
	Author Identity

	// Remote is the git remote pushed to.
	Remote string

	// MirrorSources also mirrors the native part files (encrypted).
	MirrorSources bool
}

// DefaultOptions returns the built-in pipeline policies.
func DefaultOptions() Options {
	return Options{
		SourceExtensions: []string{".ipt"},
		ExportDirName:    "STEP_Exports",
		StatsDirName:     "Slicer_Stats",
		BOMDirName:       "BOM",
		Author:           Identity{Name: "partpipe", Email: "partpipe@localhost"},
		Remote:           "origin",
	}
}

// Service is the orchestration layer coordinating the exporter, slicer,
// repository, database and mirror to run the export pipeline.
//
// Jobs are processed strictly sequentially: the CAD application exposes a
// single-session automation interface that is not safe for concurrent
// invocation.
type Service struct {
	exporter  Exporter
	slicer    Slicer
	repo      Repository
	database  Database
	fsmgr     FilesystemManager
	mirror    Mirror
	encryptor Encryptor
	logger    Logger
	clock     Clock
	idgen     IDGenerator
	opts      Options
}

// NewService creates a Service with the provided dependencies.
// slicer, mirror and encryptor may be nil; the corresponding stages are
// then unavailable or skipped.
func NewService(exporter Exporter, slicer Slicer, repo Repository, database Database, fsmgr FilesystemManager, mirror Mirror, encryptor Encryptor, logger Logger, clock Clock, idgen IDGenerator, opts Options) *Service {
	return &Service{
		exporter:  exporter,
		slicer:    slicer,
		repo:      repo,
		database:  database,
		fsmgr:     fsmgr,
		mirror:    mirror,
		encryptor: encryptor,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		opts:      opts,
	}
}

// ValidateEnvironment verifies all external collaborators needed for a run
// are reachable. It is called before the first job so a missing application
// fails the run before any export or commit is attempted.
func (s *Service) ValidateEnvironment(needSlicer bool) error {
	if err := s.exporter.ValidateSetup(); err != nil {
		return fmt.Errorf("export application unavailable: %w", err)
	}
	if needSlicer {
		if s.slicer == nil {
			return fmt.Errorf("no slicer configured")
		}
		if err := s.slicer.ValidateSetup(); err != nil {
			return fmt.Errorf("slicer unavailable: %w", err)
		}
	}
	if s.mirror != nil {
		if err := s.mirror.ValidateSetup(); err != nil {
			return fmt.Errorf("artifact mirror unavailable: %w", err)
		}
	}
	return nil
}

// isSourceFile reports whether the path has one of the configured part
// extensions.
func (s *Service) isSourceFile(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range s.opts.SourceExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
