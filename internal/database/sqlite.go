package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"partpipe/internal/database/migrations"
	"partpipe/internal/model"
	"partpipe/internal/pipeline"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the run-history Database interface using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteDatabase{
		db:   db,
		path: path,
	}, nil
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for an in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Pipeline operation tracking

func (s *SQLiteDatabase) CreatePipelineOperation(operation, parameters string) (*model.PipelineOperation, error) {
	op := &model.PipelineOperation{
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  time.Now(),
	}

	res, err := s.db.Exec(
		`INSERT INTO pipeline_operations (operation, parameters, status, started_at) VALUES (?, ?, '', ?)`,
		op.Operation, op.Parameters, op.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline operation: %w", err)
	}

	op.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading pipeline operation id: %w", err)
	}
	return op, nil
}

func (s *SQLiteDatabase) FinishPipelineOperation(id int64, status string) error {
	_, err := s.db.Exec(
		`UPDATE pipeline_operations SET status = ?, finished_at = ? WHERE id = ?`,
		status, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("finishing pipeline operation: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListPipelineOperations(limit int) ([]*model.PipelineOperation, error) {
	rows, err := s.db.Query(
		`SELECT id, operation, parameters, status, started_at, finished_at
		 FROM pipeline_operations ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing pipeline operations: %w", err)
	}
	defer rows.Close()

	var ops []*model.PipelineOperation
	for rows.Next() {
		var op model.PipelineOperation
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.Status, &op.StartedAt, &op.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning pipeline operation: %w", err)
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing pipeline operations: %w", err)
	}
	return ops, nil
}

func (s *SQLiteDatabase) MaxPipelineOperationID() (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT COALESCE(MAX(id), 0) FROM pipeline_operations`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("getting max pipeline operation ID: %w", err)
	}
	return id, nil
}

// Export record tracking

func (s *SQLiteDatabase) CreateExportRecord(rec *model.ExportRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO export_records (id, operation_id, source_path, output_path, checksum, status, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OperationID, rec.SourcePath, rec.OutputPath, rec.Checksum, rec.Status, rec.DurationMS, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating export record: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindLatestExportBySource(sourcePath string) (*model.ExportRecord, error) {
	var rec model.ExportRecord
	err := s.db.QueryRow(
		`SELECT id, operation_id, source_path, output_path, checksum, status, duration_ms, created_at
		 FROM export_records WHERE source_path = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		sourcePath,
	).Scan(&rec.ID, &rec.OperationID, &rec.SourcePath, &rec.OutputPath, &rec.Checksum, &rec.Status, &rec.DurationMS, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Never exported
	}
	if err != nil {
		return nil, fmt.Errorf("finding latest export by source: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteDatabase) ListExportRecords(operationID int64) ([]*model.ExportRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, operation_id, source_path, output_path, checksum, status, duration_ms, created_at
		 FROM export_records WHERE operation_id = ? ORDER BY created_at, id`,
		operationID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing export records: %w", err)
	}
	defer rows.Close()

	var recs []*model.ExportRecord
	for rows.Next() {
		var rec model.ExportRecord
		if err := rows.Scan(&rec.ID, &rec.OperationID, &rec.SourcePath, &rec.OutputPath, &rec.Checksum, &rec.Status, &rec.DurationMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning export record: %w", err)
		}
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing export records: %w", err)
	}
	return recs, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrateUp brings the database schema to the latest version.
func (s *SQLiteDatabase) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements pipeline.Database
var _ pipeline.Database = (*SQLiteDatabase)(nil)
