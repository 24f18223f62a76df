package pipeline

import (
	"fmt"
	"path/filepath"
	"sort"
)

// RunRequest describes one full pipeline invocation.
type RunRequest struct {
	// Ref selects changed-file scanning against this git ref.
	// Ignored when Paths is non-empty.
	Ref string

	// Paths is an explicit list of part files to export.
	Paths []string

	// Slice enables the slicing and BOM stages.
	Slice bool

	// Push pushes the commit after a successful run.
	Push bool

	// Prune removes orphaned outputs in the affected directories.
	Prune bool
}

// RunSummary reports what a pipeline run did.
type RunSummary struct {
	Jobs      int
	Exported  int
	Skipped   int
	Failed    int
	Sliced    int
	Pruned    []string
	BOMPaths  []string
	Committed bool
}

// Run executes the whole pipeline: scan, export, slice, BOM, commit, push.
// The commit happens only after every job has resolved; under the default
// abort-on-failure policy a failed job means nothing is committed at all.
func (s *Service) Run(opID int64, req RunRequest) (*RunSummary, error) {
	summary := &RunSummary{}

	if err := s.ValidateEnvironment(req.Slice); err != nil {
		return summary, err
	}

	var jobs []*ExportJob
	var err error
	if len(req.Paths) > 0 {
		jobs, err = s.JobsFromPaths(req.Paths)
	} else {
		jobs, err = s.JobsFromChanges(req.Ref)
	}
	if err != nil {
		return summary, err
	}
	summary.Jobs = len(jobs)

	if len(jobs) == 0 {
		s.logger.Info("no part files to export")
		return summary, nil
	}

	results, exportErr := s.ExportAll(opID, jobs)
	tally(summary, results)
	if exportErr != nil && !s.opts.ContinueOnError {
		return summary, exportErr
	}

	var sliceErr error
	if req.Slice {
		metrics, err := s.SliceAll(results)
		summary.Sliced = len(metrics)
		if err != nil && !s.opts.ContinueOnError {
			return summary, err
		}
		sliceErr = err
	}

	dirs := sourceDirs(jobs)

	if req.Prune {
		for _, d := range dirs {
			p, err := s.fsmgr.Resolve(d)
			if err != nil {
				continue
			}
			removed, err := s.PruneOutputs(p)
			if err != nil {
				return summary, err
			}
			summary.Pruned = append(summary.Pruned, removed...)
		}
	}

	if req.Slice {
		for _, d := range dirs {
			exportDir, err := s.fsmgr.Resolve(filepath.Join(d, s.opts.ExportDirName))
			if err != nil {
				continue
			}
			bomPath, err := s.GenerateBOM(exportDir)
			if err != nil {
				return summary, err
			}
			if bomPath != "" {
				summary.BOMPaths = append(summary.BOMPaths, bomPath)
			}
		}
	}

	batch, err := s.newBatch(jobs, summary)
	if err != nil {
		return summary, err
	}
	committed, err := s.CommitOutputs(batch, req.Push)
	summary.Committed = committed
	if err != nil {
		return summary, err
	}

	// Failures collected under ContinueOnError surface after the commit of
	// the successful jobs, still failing the run.
	if exportErr != nil {
		return summary, exportErr
	}
	if sliceErr != nil {
		return summary, sliceErr
	}
	return summary, nil
}

// newBatch builds the commit batch from the jobs' output directories,
// converted to repository-relative paths.
func (s *Service) newBatch(jobs []*ExportJob, summary *RunSummary) (*CommitBatch, error) {
	root, err := s.repo.Root()
	if err != nil {
		return nil, fmt.Errorf("locating repository root: %w", err)
	}

	seen := make(map[string]bool)
	var dirs []string
	for _, job := range jobs {
		rel, err := filepath.Rel(root, job.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("relativizing output dir: %w", err)
		}
		rel = filepath.ToSlash(rel)
		if !seen[rel] {
			seen[rel] = true
			dirs = append(dirs, rel)
		}
	}
	sort.Strings(dirs)

	message := fmt.Sprintf("Add STEP exports for %d part(s)", summary.Exported)
	if summary.Sliced > 0 {
		message = fmt.Sprintf("Add STEP exports and print stats for %d part(s)", summary.Exported)
	}
	return &CommitBatch{Dirs: dirs, Message: message}, nil
}

func tally(summary *RunSummary, results []*ExportResult) {
	for _, r := range results {
		switch r.Status {
		case JobDone:
			summary.Exported++
		case JobSkipped:
			summary.Skipped++
		case JobFailed:
			summary.Failed++
		}
	}
}

func sourceDirs(jobs []*ExportJob) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, job := range jobs {
		d := job.Source.Dir()
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	sort.Strings(dirs)
	return dirs
}
