package pipeline_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"partpipe/internal/pipeline"
	"partpipe/internal/testutil"
)

func TestService_ExportAll(t *testing.T) {
	t.Run("exports every job and records the outcomes", func(t *testing.T) {
		e := newEnv(t, nil)
		bracket := e.addPart("Bracket.ipt")
		mount := e.addPart("Mount.ipt")
		opID := e.newOp(t)

		jobs, err := e.svc.JobsFromPaths([]string{bracket, mount})
		if err != nil {
			t.Fatalf("JobsFromPaths() error = %v", err)
		}

		results, err := e.svc.ExportAll(opID, jobs)
		if err != nil {
			t.Fatalf("ExportAll() error = %v", err)
		}

		if len(results) != 2 {
			t.Fatalf("got %d results, want 2", len(results))
		}
		for _, res := range results {
			if res.Status != pipeline.JobDone {
				t.Errorf("status of %s = %q, want done", res.Job.Source.String(), res.Status)
			}
			if !e.fs.Exists(res.Job.OutputPath) {
				t.Errorf("output %s was not written", res.Job.OutputPath)
			}
		}

		recs, err := e.db.ListExportRecords(opID)
		if err != nil {
			t.Fatalf("ListExportRecords() error = %v", err)
		}
		if len(recs) != 2 {
			t.Fatalf("got %d export records, want 2", len(recs))
		}
		wantChecksum := testutil.SHA256Hex([]byte(testutil.StepContent("Bracket")))
		for _, rec := range recs {
			if rec.SourcePath == bracket && rec.Checksum != wantChecksum {
				t.Errorf("checksum = %q, want %q", rec.Checksum, wantChecksum)
			}
		}
	})

	t.Run("skipped parts are recorded without a checksum", func(t *testing.T) {
		e := newEnv(t, nil)
		bracket := e.addPart("Bracket.ipt")
		e.exporter.SkipPaths[bracket] = true
		opID := e.newOp(t)

		jobs, _ := e.svc.JobsFromPaths([]string{bracket})
		results, err := e.svc.ExportAll(opID, jobs)
		if err != nil {
			t.Fatalf("ExportAll() error = %v", err)
		}

		if results[0].Status != pipeline.JobSkipped {
			t.Errorf("status = %q, want skipped", results[0].Status)
		}
		recs, _ := e.db.ListExportRecords(opID)
		if len(recs) != 1 || recs[0].Status != pipeline.JobSkipped {
			t.Fatalf("export records = %+v, want one skipped record", recs)
		}
		if recs[0].Checksum != "" {
			t.Errorf("checksum = %q, want empty for a skipped part", recs[0].Checksum)
		}
	})

	t.Run("first failure aborts the run by default", func(t *testing.T) {
		e := newEnv(t, nil)
		bad := e.addPart("Bad.ipt")
		good := e.addPart("Good.ipt")
		e.exporter.FailPaths[bad] = errors.New("application crashed")
		opID := e.newOp(t)

		jobs, _ := e.svc.JobsFromPaths([]string{bad, good})
		results, err := e.svc.ExportAll(opID, jobs)
		if err == nil {
			t.Fatal("ExportAll() expected error")
		}

		if len(results) != 1 {
			t.Fatalf("got %d results, want 1 (run aborted)", len(results))
		}
		if len(e.exporter.Exported) != 1 {
			t.Errorf("exporter ran %d job(s), want 1", len(e.exporter.Exported))
		}
	})

	t.Run("continue on error runs the remaining jobs", func(t *testing.T) {
		e := newEnv(t, func(o *pipeline.Options) { o.ContinueOnError = true })
		bad := e.addPart("Bad.ipt")
		good := e.addPart("Good.ipt")
		e.exporter.FailPaths[bad] = errors.New("application crashed")
		opID := e.newOp(t)

		jobs, _ := e.svc.JobsFromPaths([]string{bad, good})
		results, err := e.svc.ExportAll(opID, jobs)
		if err == nil || !strings.Contains(err.Error(), "1 of 2") {
			t.Fatalf("ExportAll() error = %v, want failure tally", err)
		}

		if len(results) != 2 {
			t.Fatalf("got %d results, want 2", len(results))
		}
		if results[1].Status != pipeline.JobDone {
			t.Errorf("second job status = %q, want done", results[1].Status)
		}
	})

	t.Run("missing output fails the job despite reported success", func(t *testing.T) {
		e := newEnv(t, nil)
		bracket := e.addPart("Bracket.ipt")
		e.exporter.SilentPaths[bracket] = true
		opID := e.newOp(t)

		jobs, _ := e.svc.JobsFromPaths([]string{bracket})
		results, err := e.svc.ExportAll(opID, jobs)
		if err == nil {
			t.Fatal("ExportAll() expected error")
		}
		if results[0].Status != pipeline.JobFailed {
			t.Errorf("status = %q, want failed", results[0].Status)
		}
	})
}

func TestService_Mirroring(t *testing.T) {
	t.Run("uploads the output keyed by its checksum", func(t *testing.T) {
		e := newEnv(t, nil)
		bracket := e.addPart("Bracket.ipt")
		opID := e.newOp(t)

		jobs, _ := e.svc.JobsFromPaths([]string{bracket})
		if _, err := e.svc.ExportAll(opID, jobs); err != nil {
			t.Fatalf("ExportAll() error = %v", err)
		}

		content := []byte(testutil.StepContent("Bracket"))
		var buf bytes.Buffer
		if err := e.mirror.GetArtifact(testutil.SHA256Hex(content), &buf); err != nil {
			t.Fatalf("GetArtifact() error = %v", err)
		}
		if !bytes.Equal(buf.Bytes(), content) {
			t.Errorf("mirrored content = %q, want %q", buf.Bytes(), content)
		}
	})

	t.Run("mirrors the encrypted source when enabled", func(t *testing.T) {
		e := newEnv(t, func(o *pipeline.Options) { o.MirrorSources = true })
		bracket := e.addPart("Bracket.ipt")
		opID := e.newOp(t)

		jobs, _ := e.svc.JobsFromPaths([]string{bracket})
		if _, err := e.svc.ExportAll(opID, jobs); err != nil {
			t.Fatalf("ExportAll() error = %v", err)
		}

		// The artifact is keyed by the plaintext checksum but stored
		// encrypted.
		source := []byte("ipt:Bracket.ipt")
		var buf bytes.Buffer
		if err := e.mirror.GetArtifact(testutil.SHA256Hex(source), &buf); err != nil {
			t.Fatalf("GetArtifact() error = %v", err)
		}
		if bytes.Equal(buf.Bytes(), source) {
			t.Error("mirrored source is not encrypted")
		}
		if !bytes.HasSuffix(buf.Bytes(), source) {
			t.Errorf("mirrored payload = %q, want encrypted form of %q", buf.Bytes(), source)
		}
	})

	t.Run("mirror failure does not fail the export", func(t *testing.T) {
		e := newEnv(t, func(o *pipeline.Options) { o.MirrorSources = true })
		bracket := e.addPart("Bracket.ipt")
		opID := e.newOp(t)

		// No encryptor makes source mirroring fail while the export itself
		// succeeds.
		svc := pipeline.NewService(e.exporter, e.slicer, e.repo, e.db, e.fs,
			e.mirror, nil, pipeline.NewNopLogger(), e.clock,
			testutil.NewStubIDGenerator(), mirrorSourcesOptions())

		jobs, _ := svc.JobsFromPaths([]string{bracket})
		results, err := svc.ExportAll(opID, jobs)
		if err != nil {
			t.Fatalf("ExportAll() error = %v", err)
		}
		if results[0].Status != pipeline.JobDone {
			t.Errorf("status = %q, want done", results[0].Status)
		}
	})
}

func mirrorSourcesOptions() pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.MirrorSources = true
	return opts
}
