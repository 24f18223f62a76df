package model

import (
	"database/sql"
	"time"
)

// PipelineOperation represents one CLI run that may mutate the repository
// (export, run, prune). Read-only commands are not recorded.
type PipelineOperation struct {
	ID         int64 // Auto-increment, doubles as the manifest version
	Operation  string
	Parameters string
	Status     string // "success" or "error"
	StartedAt  time.Time
	FinishedAt sql.NullTime
}

// ExportRecord represents the outcome of a single export job.
type ExportRecord struct {
	ID          string // UUID
	OperationID int64  // Foreign key to PipelineOperation
	SourcePath  string // Absolute path of the part file
	OutputPath  string // Absolute path of the generated STEP file
	Checksum    string // SHA-256 of the output (empty for skipped/failed jobs)
	Status      string // "done", "skipped", "failed"
	DurationMS  int64
	CreatedAt   time.Time
}
