package pipeline

import "partpipe/internal/model"

// Database provides an interface for the local run-history store.
type Database interface {
	// CreatePipelineOperation records the start of a CLI operation and
	// returns it with its auto-increment ID assigned.
	CreatePipelineOperation(operation, parameters string) (*model.PipelineOperation, error)

	// FinishPipelineOperation marks an operation finished with the given status.
	FinishPipelineOperation(id int64, status string) error

	// ListPipelineOperations returns the most recent operations, newest first.
	ListPipelineOperations(limit int) ([]*model.PipelineOperation, error)

	// MaxPipelineOperationID returns the highest operation ID, or 0 when the
	// table is empty. Used to version manifest snapshots in the mirror.
	MaxPipelineOperationID() (int64, error)

	// CreateExportRecord records one export job outcome.
	CreateExportRecord(rec *model.ExportRecord) error

	// FindLatestExportBySource returns the newest export record for a source
	// path, or nil when the file has never been exported.
	FindLatestExportBySource(sourcePath string) (*model.ExportRecord, error)

	// ListExportRecords returns all export records for an operation.
	ListExportRecords(operationID int64) ([]*model.ExportRecord, error)

	// CheckMigrations verifies the schema is current and not dirty.
	CheckMigrations() error

	// MigrateUp brings the schema to the latest version. A no-op when the
	// schema is already current.
	MigrateUp() error

	// BackupTo writes a consistent snapshot of the database to the given path.
	BackupTo(path string) error

	// Close closes the database connection.
	Close() error
}
