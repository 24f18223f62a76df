// Package app is the application layer between the CLI and the pipeline
// service. It constructs all dependencies from config and manages the
// run-history database lifecycle.
package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"partpipe/internal/config"
	"partpipe/internal/database"
	"partpipe/internal/encryption"
	"partpipe/internal/exporter"
	"partpipe/internal/fs"
	"partpipe/internal/gitrepo"
	"partpipe/internal/mirror"
	"partpipe/internal/model"
	"partpipe/internal/pipeline"
	"partpipe/internal/slicer"
)

// manifestName is the mirror manifest under which the run-history database
// snapshot is stored per host.
const manifestName = "history.db"

// App wires the pipeline service from config, exposes high-level operations
// that accept raw string paths, and manages the DB lifecycle on Close.
type App struct {
	cfg     *config.Config
	db      pipeline.Database
	mirror  pipeline.Mirror
	fsmgr   pipeline.FilesystemManager
	service *pipeline.Service
	op      *PipelineOperation
	logFile *os.File
}

// NewApp creates a fully wired App from the given config. operation
// identifies the CLI command being run (e.g. "Run", "Export"). The work tree
// is discovered from the current directory. The caller must call Close when
// done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	fsmgr := fs.NewOSFilesystemManager(cfg.Filesystem.Ignore)

	repo, err := gitrepo.NewGitRepository(".")
	if err != nil {
		return nil, fmt.Errorf("opening work tree: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	// A fresh database (or one behind the binary) is migrated in place;
	// MigrateUp is a no-op when the schema is already current.
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	m, err := mirror.NewMirrorFromConfig(cfg.Mirror)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating mirror: %w", err)
	}

	// The mirror holds a snapshot of the run history versioned by operation
	// ID. A remote version ahead of the local database means this host's
	// history was lost or rolled back; refuse to run rather than re-record
	// operations under already-used IDs.
	if m != nil {
		remoteVersion, err := m.GetManifestVersion(cfg.HostID, manifestName)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("checking remote history version: %w", err)
		}

		localMax, err := db.MaxPipelineOperationID()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("checking local history version: %w", err)
		}

		if remoteVersion > localMax {
			db.Close()
			return nil, fmt.Errorf("local run history is behind the mirror (local=%d, remote=%d): restore the database or re-initialize", localMax, remoteVersion)
		}
	}

	exp, err := exporter.NewExporterFromConfig(cfg.Exporter)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating exporter: %w", err)
	}

	sl, err := slicer.NewSlicerFromConfig(cfg.Slicer)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating slicer: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	svc := pipeline.NewService(exp, sl, repo, db, fsmgr, m, enc,
		&slogAdapter{l: logger}, pipeline.RealClock{}, pipeline.UUIDGenerator{},
		optionsFromConfig(cfg))
	op := NewPipelineOperation(operation, "")

	return &App{
		cfg:     cfg,
		db:      db,
		mirror:  m,
		fsmgr:   fsmgr,
		service: svc,
		op:      op,
		logFile: logFile,
	}, nil
}

// optionsFromConfig maps the config file onto pipeline policies.
func optionsFromConfig(cfg *config.Config) pipeline.Options {
	opts := pipeline.DefaultOptions()
	if len(cfg.Source.Extensions) > 0 {
		opts.SourceExtensions = cfg.Source.Extensions
	}
	if cfg.Source.ExportDir != "" {
		opts.ExportDirName = cfg.Source.ExportDir
	}
	if cfg.Source.StatsDir != "" {
		opts.StatsDirName = cfg.Source.StatsDir
	}
	if cfg.Source.BOMDir != "" {
		opts.BOMDirName = cfg.Source.BOMDir
	}
	opts.FilamentCostPerKG = cfg.Slicer.FilamentCostPerKG
	opts.PrintSettings = cfg.Slicer.PrintSettings
	opts.ContinueOnError = cfg.Pipeline.ContinueOnError
	opts.MirrorSources = cfg.Pipeline.MirrorSources
	if cfg.Git.AuthorName != "" {
		opts.Author = pipeline.Identity{Name: cfg.Git.AuthorName, Email: cfg.Git.AuthorEmail}
	}
	if cfg.Git.Remote != "" {
		opts.Remote = cfg.Git.Remote
	}
	return opts
}

// persistOperation saves the pipeline operation to the database, giving it
// an auto-increment ID. This should only be called for DB-mutating commands.
func (a *App) persistOperation() error {
	if a.op.Persisted() {
		return nil // already persisted
	}
	dbOp, err := a.db.CreatePipelineOperation(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting pipeline operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// Run executes a full pipeline invocation: scan, export, optional slice and
// BOM, commit, optional push. A run error also marks the operation record
// failed.
func (a *App) Run(req pipeline.RunRequest) (*pipeline.RunSummary, error) {
	if len(req.Paths) == 0 && req.Ref == "" {
		req.Ref = a.cfg.Git.DefaultRef
	}
	a.op.Parameters = describeRequest(req)
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	summary, err := a.service.Run(a.op.ID, req)
	if err != nil {
		a.op.Status = "error"
	}
	return summary, err
}

// describeRequest renders a RunRequest as the operation's parameters string.
func describeRequest(req pipeline.RunRequest) string {
	var parts []string
	if len(req.Paths) > 0 {
		parts = append(parts, fmt.Sprintf("paths=%d", len(req.Paths)))
	} else if req.Ref != "" {
		parts = append(parts, "ref="+req.Ref)
	}
	if req.Slice {
		parts = append(parts, "slice")
	}
	if req.Push {
		parts = append(parts, "push")
	}
	if req.Prune {
		parts = append(parts, "prune")
	}
	return strings.Join(parts, " ")
}

// SlicePaths slices the given STEP files and writes their stats files.
// Slicing does not touch the run-history database, so the operation stays
// unpersisted.
func (a *App) SlicePaths(rawPaths []string) ([]*pipeline.SliceMetrics, error) {
	return a.service.SlicePaths(rawPaths)
}

// GenerateBOM aggregates the stats files under the given directory into a
// bill of materials and returns the path of the written CSV.
func (a *App) GenerateBOM(rawDir string) (string, error) {
	p, err := a.fsmgr.Resolve(rawDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	return a.service.GenerateBOM(p)
}

// Status reports the export state of part files under the given path.
func (a *App) Status(rawPath string, recursive bool) ([]*pipeline.SourceStatus, error) {
	p, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	return a.service.Status(p, recursive)
}

// History returns the most recent pipeline operations.
func (a *App) History(limit int) ([]*model.PipelineOperation, error) {
	return a.service.GetHistory(limit)
}

// Exports returns the export records for one operation.
func (a *App) Exports(operationID int64) ([]*model.ExportRecord, error) {
	return a.service.GetExports(operationID)
}

// Close finalizes the operation and closes all resources. For persisted
// operations: finishes the operation record, snapshots the DB, and uploads
// the snapshot to the mirror. For non-persisted operations: just closes the
// database.
func (a *App) Close() error {
	var firstErr error

	if a.op.Persisted() {
		// Finalize the operation record
		if err := a.db.FinishPipelineOperation(a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing pipeline operation: %w", err)
		}

		// Snapshot the DB to a temp file
		tmpFile, err := os.CreateTemp("", "partpipe-history-*.db")
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("creating temp file for history snapshot: %w", err)
			}
		}

		var tmpPath string
		if tmpFile != nil {
			tmpPath = tmpFile.Name()
			tmpFile.Close()

			if err := a.db.BackupTo(tmpPath); err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("snapshotting database: %w", err)
				}
				tmpPath = "" // skip mirror upload
			}
		}

		// Close the database
		if err := a.db.Close(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("closing database: %w", err)
			}
		}

		// Upload the snapshot to the mirror with version = operation ID
		if tmpPath != "" && a.mirror != nil {
			if err := a.uploadSnapshot(tmpPath, a.op.ID); err != nil {
				if firstErr == nil {
					firstErr = err
				}
			}
		}

		// Clean up temp file
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	} else {
		// Non-mutating operation: just close the database, no upload
		if err := a.db.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// uploadSnapshot opens the temp DB file and uploads it to the mirror as the
// host's run-history manifest.
func (a *App) uploadSnapshot(path string, version int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening history snapshot for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat history snapshot: %w", err)
	}

	if err := a.mirror.PutManifest(a.cfg.HostID, manifestName, f, info.Size(), version); err != nil {
		return fmt.Errorf("uploading history snapshot to mirror: %w", err)
	}

	return nil
}
