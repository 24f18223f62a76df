package pipeline

import "time"

// Job status values recorded in the database and reported in run summaries.
const (
	JobDone    = "done"
	JobSkipped = "skipped"
	JobFailed  = "failed"
)

// ExportJob pairs one source part file with its STEP output path.
// Jobs are created per changed source file and consumed exactly once.
type ExportJob struct {
	// Source is the resolved part file on disk.
	Source *Path

	// OutputDir is the sibling export directory, e.g. "/parts/STEP_Exports".
	OutputDir string

	// OutputPath is the target file, e.g. "/parts/STEP_Exports/Bracket.step".
	// Its base name always matches the source base name.
	OutputPath string
}

// ExportResult is the outcome of one export job.
type ExportResult struct {
	Job *ExportJob

	// Status is one of JobDone, JobSkipped, JobFailed.
	Status string

	// Skipped is true when the application reported the part is not flagged
	// for export (the harness signals this with a dedicated exit code).
	Skipped bool

	// Output is the combined harness output, kept for logging and diagnostics.
	Output string

	Duration time.Duration

	// Err holds the job-level failure when the run continues past errors.
	Err error
}

// CommitBatch is the set of generated output directories staged and pushed
// as a single commit once all jobs have resolved.
type CommitBatch struct {
	// Dirs are repository-relative directories to stage (export, stats, BOM).
	Dirs []string

	Message string
}
