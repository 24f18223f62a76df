package pipeline

import (
	"encoding/json"
	"fmt"
	"path/filepath"
)

// SliceAll slices the STEP output of every completed job and writes a stats
// file per part. Skipped and failed jobs are not sliced. The error policy
// mirrors the export stage: first failure aborts unless ContinueOnError.
func (s *Service) SliceAll(results []*ExportResult) ([]*SliceMetrics, error) {
	var all []*SliceMetrics
	var failed int

	for _, res := range results {
		if res.Status != JobDone {
			continue
		}
		out, err := s.fsmgr.Resolve(res.Job.OutputPath)
		if err != nil {
			return all, fmt.Errorf("resolving output for slicing: %w", err)
		}
		m, err := s.sliceOne(out)
		if err != nil {
			if !s.opts.ContinueOnError {
				return all, fmt.Errorf("slicing %s: %w", out.String(), err)
			}
			failed++
			s.logger.Warn("continuing past slicing failure", "path", out.String(), "error", err)
			continue
		}
		all = append(all, m)
	}

	if failed > 0 {
		return all, fmt.Errorf("%d slicing job(s) failed", failed)
	}
	return all, nil
}

// SlicePaths slices an explicit list of STEP files.
func (s *Service) SlicePaths(rawPaths []string) ([]*SliceMetrics, error) {
	var all []*SliceMetrics
	for _, raw := range rawPaths {
		p, err := s.fsmgr.Resolve(raw)
		if err != nil {
			return all, fmt.Errorf("resolving %s: %w", raw, err)
		}
		if p.IsDir() || p.Ext() != ".step" {
			return all, fmt.Errorf("not a STEP file: %s", p.String())
		}
		m, err := s.sliceOne(p)
		if err != nil {
			return all, fmt.Errorf("slicing %s: %w", p.String(), err)
		}
		all = append(all, m)
	}
	return all, nil
}

// sliceOne runs the slicer for a single STEP file, finalizes pricing, and
// writes the stats JSON next to the part under the stats directory.
func (s *Service) sliceOne(step *Path) (*SliceMetrics, error) {
	s.logger.Info("slicing part", "path", step.String())

	m, err := s.slicer.Slice(step.String())
	if err != nil {
		return nil, err
	}

	m.PartName = step.BaseName()
	m.PrintSettings = s.opts.PrintSettings
	m.Finalize(s.opts.FilamentCostPerKG)

	statsPath := s.statsPath(step)
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encoding stats: %w", err)
	}
	if err := s.fsmgr.WriteFile(statsPath, data, 0644); err != nil {
		return nil, fmt.Errorf("writing stats: %w", err)
	}

	s.logger.Info("part sliced", "stats", statsPath, "total_weight_g", m.TotalWeightG)
	return m, nil
}

// statsPath returns the stats file location for a STEP file:
// <dir>/<StatsDirName>/<base>_stats.json, where <dir> is the directory
// containing the STEP file.
func (s *Service) statsPath(step *Path) string {
	return filepath.Join(step.Dir(), s.opts.StatsDirName, step.BaseName()+"_stats.json")
}
