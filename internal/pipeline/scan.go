package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// JobsFromPaths builds export jobs for an explicit list of part files.
// Non-source paths are rejected rather than silently dropped: an explicit
// argument that cannot be exported is a user error.
func (s *Service) JobsFromPaths(rawPaths []string) ([]*ExportJob, error) {
	var jobs []*ExportJob
	for _, raw := range rawPaths {
		p, err := s.fsmgr.Resolve(raw)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", raw, err)
		}
		if p.IsDir() {
			return nil, fmt.Errorf("path is a directory, expected a part file: %s", p.String())
		}
		if !s.isSourceFile(p.String()) {
			return nil, fmt.Errorf("not a part file (want %s): %s", strings.Join(s.opts.SourceExtensions, ", "), p.String())
		}
		jobs = append(jobs, s.newJob(p))
	}
	return jobs, nil
}

// JobsFromChanges builds export jobs for the part files changed between ref
// and the work tree. Changed files that are not part files, that live under
// an export directory, or that no longer exist on disk are ignored.
func (s *Service) JobsFromChanges(ref string) ([]*ExportJob, error) {
	root, err := s.repo.Root()
	if err != nil {
		return nil, fmt.Errorf("locating repository root: %w", err)
	}

	changed, err := s.repo.ChangedFiles(ref)
	if err != nil {
		return nil, fmt.Errorf("listing changed files: %w", err)
	}

	var jobs []*ExportJob
	for _, rel := range changed {
		if !s.isSourceFile(rel) {
			continue
		}
		if s.isGenerated(rel) {
			continue
		}

		p, err := s.fsmgr.Resolve(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			// Deleted since the ref; nothing to export.
			s.logger.Debug("changed file not on disk, skipping", "path", rel)
			continue
		}
		if p.IsDir() {
			continue
		}
		jobs = append(jobs, s.newJob(p))
	}

	s.logger.Info("scan complete", "ref", ref, "changed", len(changed), "jobs", len(jobs))
	return jobs, nil
}

// newJob constructs the job for one source file. The output base name always
// matches the source base name.
func (s *Service) newJob(src *Path) *ExportJob {
	outputDir := filepath.Join(src.Dir(), s.opts.ExportDirName)
	return &ExportJob{
		Source:     src,
		OutputDir:  outputDir,
		OutputPath: filepath.Join(outputDir, src.BaseName()+".step"),
	}
}

// isGenerated reports whether a repository-relative path lies under one of
// the pipeline's own output directories.
func (s *Service) isGenerated(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if part == s.opts.ExportDirName || part == s.opts.StatsDirName || part == s.opts.BOMDirName {
			return true
		}
	}
	return false
}

// PruneOutputs removes STEP files under dir's export directory whose source
// part no longer exists. Returns the removed paths. Outputs for sources that
// still exist are never touched.
func (s *Service) PruneOutputs(dir *Path) ([]string, error) {
	if !dir.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir.String())
	}

	exportDir := filepath.Join(dir.String(), s.opts.ExportDirName)
	resolved, err := s.fsmgr.Resolve(exportDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolving export directory: %w", err)
	}

	outputs, err := s.fsmgr.FindFiles(resolved, false)
	if err != nil {
		return nil, fmt.Errorf("listing outputs: %w", err)
	}

	var removed []string
	for _, out := range outputs {
		if out.Ext() != ".step" {
			continue
		}
		if s.hasSource(dir.String(), out.BaseName()) {
			continue
		}
		if err := s.fsmgr.Remove(out.String()); err != nil {
			return removed, fmt.Errorf("removing orphaned output: %w", err)
		}
		s.logger.Info("pruned orphaned output", "path", out.String())
		removed = append(removed, out.String())
	}
	return removed, nil
}

// hasSource reports whether a part file with the given base name exists in dir.
func (s *Service) hasSource(dir, baseName string) bool {
	for _, ext := range s.opts.SourceExtensions {
		if _, err := s.fsmgr.Stat(filepath.Join(dir, baseName+ext)); err == nil {
			return true
		}
	}
	return false
}
