package pipeline

// Exporter invokes the CAD application's automation interface to convert one
// part file into a STEP file.
//
// Implementations are not safe for concurrent use: the desktop application
// exposes a single automation session, so the service runs jobs strictly
// sequentially and owns the session for the duration of the run. The
// application must be released between jobs so no process is leaked on the
// persistent runner machine.
type Exporter interface {
	// Export blocks until the application reports completion, failure, or the
	// configured timeout expires. A successful call leaves exactly one output
	// file at job.OutputPath and never modifies the source file.
	//
	// A result with Skipped=true means the application declined the part
	// (it is not flagged for export); this is not an error.
	Export(job *ExportJob) (*ExportResult, error)

	// ValidateSetup verifies the automation harness is installed and
	// reachable. Called once before the first job so a missing application
	// fails the run before any side effect.
	ValidateSetup() error
}
