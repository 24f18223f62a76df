package pipeline

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"partpipe/internal/model"
)

// ExportAll processes jobs strictly sequentially, one application session at
// a time. Each job outcome is recorded in the database under opID.
//
// By default the first failure aborts the run and nothing is committed.
// With ContinueOnError the remaining jobs still run; the failures are
// reported through the returned error once all jobs have resolved.
func (s *Service) ExportAll(opID int64, jobs []*ExportJob) ([]*ExportResult, error) {
	var results []*ExportResult
	var failed int

	for _, job := range jobs {
		res := s.exportOne(opID, job)
		results = append(results, res)

		if res.Status == JobFailed {
			failed++
			if !s.opts.ContinueOnError {
				return results, fmt.Errorf("exporting %s: %w", job.Source.String(), res.Err)
			}
			s.logger.Warn("continuing past export failure", "source", job.Source.String())
		}
	}

	if failed > 0 {
		return results, fmt.Errorf("%d of %d export job(s) failed", failed, len(jobs))
	}

	s.logger.Info("export complete", "count", len(results))
	return results, nil
}

// exportOne runs a single job and records its outcome. It never returns a
// nil result; failures are carried in the result's Err.
func (s *Service) exportOne(opID int64, job *ExportJob) *ExportResult {
	s.logger.Info("exporting part", "source", job.Source.String(), "output", job.OutputPath)

	res, err := s.exporter.Export(job)
	if err != nil {
		res = &ExportResult{Job: job, Status: JobFailed, Err: err}
		s.logger.Error("export failed", "source", job.Source.String(), "error", err)
		s.record(opID, res, "")
		return res
	}
	res.Job = job

	if res.Skipped {
		res.Status = JobSkipped
		s.logger.Info("part not flagged for export, skipped", "source", job.Source.String())
		s.record(opID, res, "")
		return res
	}

	// The application reported success; the output file must exist.
	if _, err := s.fsmgr.Stat(job.OutputPath); err != nil {
		res.Status = JobFailed
		res.Err = fmt.Errorf("application reported success but output is missing: %w", err)
		s.logger.Error("export output missing", "output", job.OutputPath)
		s.record(opID, res, "")
		return res
	}

	res.Status = JobDone

	checksum, err := s.mirrorOutput(job)
	if err != nil {
		// Mirroring is best effort; the export itself succeeded.
		s.logger.Warn("mirroring output failed", "output", job.OutputPath, "error", err)
	}

	s.record(opID, res, checksum)
	s.logger.Info("part exported", "output", job.OutputPath, "duration", res.Duration)
	return res
}

// record persists one job outcome. Recording failures must not mask the job
// result, so errors are only logged.
func (s *Service) record(opID int64, res *ExportResult, checksum string) {
	rec := &model.ExportRecord{
		ID:          s.idgen.New(),
		OperationID: opID,
		SourcePath:  res.Job.Source.String(),
		OutputPath:  res.Job.OutputPath,
		Checksum:    checksum,
		Status:      res.Status,
		DurationMS:  res.Duration.Milliseconds(),
		CreatedAt:   s.clock.Now(),
	}
	if err := s.database.CreateExportRecord(rec); err != nil {
		s.logger.Error("recording export", "source", res.Job.Source.String(), "error", err)
	}
}

// mirrorOutput checksums the generated STEP file and, when a mirror is
// configured, uploads it (and optionally the encrypted source). The checksum
// is always computed so the database record stays auditable without a mirror.
func (s *Service) mirrorOutput(job *ExportJob) (string, error) {
	out, err := s.fsmgr.Resolve(job.OutputPath)
	if err != nil {
		return "", fmt.Errorf("resolving output: %w", err)
	}

	checksum, err := s.checksumFile(out)
	if err != nil {
		return "", fmt.Errorf("checksumming output: %w", err)
	}

	if s.mirror == nil {
		return checksum, nil
	}

	f, err := s.fsmgr.Open(out)
	if err != nil {
		return checksum, fmt.Errorf("opening output for mirror: %w", err)
	}
	defer f.Close()

	if err := s.mirror.PutArtifact(checksum, f, out.Info().Size()); err != nil {
		return checksum, fmt.Errorf("mirroring output: %w", err)
	}
	s.logger.Debug("output mirrored", "checksum", checksum)

	if s.opts.MirrorSources {
		if err := s.mirrorSource(job.Source); err != nil {
			return checksum, err
		}
	}

	return checksum, nil
}

// mirrorSource uploads the native part file, age-encrypted. The artifact is
// keyed by the plaintext checksum so re-mirroring an unchanged source stays
// idempotent even though the ciphertext differs between runs.
func (s *Service) mirrorSource(src *Path) error {
	if s.encryptor == nil || !s.encryptor.IsConfigured() {
		return fmt.Errorf("source mirroring enabled but encryption is not configured")
	}

	checksum, err := s.checksumFile(src)
	if err != nil {
		return fmt.Errorf("checksumming source: %w", err)
	}

	f, err := s.fsmgr.Open(src)
	if err != nil {
		return fmt.Errorf("opening source for mirror: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := s.encryptor.Encrypt(f, &buf); err != nil {
		return fmt.Errorf("encrypting source: %w", err)
	}

	if err := s.mirror.PutArtifact(checksum, &buf, int64(buf.Len())); err != nil {
		return fmt.Errorf("mirroring source: %w", err)
	}
	s.logger.Debug("source mirrored", "checksum", checksum)
	return nil
}

// checksumFile computes the SHA-256 checksum of a file's content.
func (s *Service) checksumFile(p *Path) (string, error) {
	f, err := s.fsmgr.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
