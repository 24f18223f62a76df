package pipeline

import "io"

// Mirror provides an interface for off-repository artifact storage. Exported
// STEP files (and optionally the native sources) are mirrored keyed by
// content checksum so a run can be audited even after history rewrites.
// All operations stream through io.Reader/io.Writer to support large files.
type Mirror interface {
	// PutArtifact stores content identified by its checksum.
	// The operation is idempotent: storing the same checksum twice is safe.
	// size is the number of bytes that will be read from r.
	PutArtifact(checksum string, r io.Reader, size int64) error

	// GetArtifact retrieves content by checksum and writes it to w.
	GetArtifact(checksum string, w io.Writer) error

	// PutManifest stores a named per-host metadata item (e.g. the run-history
	// database snapshot). version is stored alongside for consistency checks.
	PutManifest(hostID string, name string, r io.Reader, size int64, version int64) error

	// GetManifest retrieves a named per-host metadata item and writes it to w.
	GetManifest(hostID string, name string, w io.Writer) error

	// GetManifestVersion returns the stored version for a host/name pair,
	// or 0 when nothing has been stored.
	GetManifestVersion(hostID string, name string) (int64, error)

	// ValidateSetup verifies the mirror is accessible and properly configured.
	ValidateSetup() error
}
