package pipeline

import (
	"fmt"
	"path/filepath"
)

// SourceStatus represents the export state of a single part file.
type SourceStatus struct {
	RelativePath string

	// HasExport is true when a STEP output exists for this part.
	HasExport bool

	// Stale is true when the part was modified after its output was written.
	Stale bool

	// LastStatus is the most recent recorded job status ("done", "skipped",
	// "failed"), or "" when the part has never been through the pipeline.
	LastStatus string
}

// Status reports the export state of every part file under dir.
func (s *Service) Status(dir *Path, recursive bool) ([]*SourceStatus, error) {
	if !dir.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir.String())
	}

	files, err := s.fsmgr.FindFiles(dir, recursive)
	if err != nil {
		return nil, fmt.Errorf("finding part files: %w", err)
	}

	var statuses []*SourceStatus
	for _, f := range files {
		if !s.isSourceFile(f.String()) {
			continue
		}

		rel, err := filepath.Rel(dir.String(), f.String())
		if err != nil {
			return nil, fmt.Errorf("computing relative path: %w", err)
		}

		st := &SourceStatus{RelativePath: rel}

		outputPath := filepath.Join(f.Dir(), s.opts.ExportDirName, f.BaseName()+".step")
		if info, err := s.fsmgr.Stat(outputPath); err == nil {
			st.HasExport = true
			if f.Info().ModTime().After(info.ModTime()) {
				st.Stale = true
			}
		}

		rec, err := s.database.FindLatestExportBySource(f.String())
		if err != nil {
			return nil, fmt.Errorf("looking up export history: %w", err)
		}
		if rec != nil {
			st.LastStatus = rec.Status
		}

		statuses = append(statuses, st)
	}

	return statuses, nil
}
