package mirror

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"partpipe/internal/pipeline"
)

// FileSystemMirror is a filesystem-based implementation of the Mirror
// interface, for mirroring to a mounted NAS or backup drive. It stores
// artifacts and manifests in a directory structure:
//
//	<root>/
//	  artifacts/
//	    <checksum>           (artifact files, named by SHA-256)
//	  manifests/
//	    <hostID>/<name>      (per-host manifest files)
//	    <hostID>/<name>.version
type FileSystemMirror struct {
	name         string
	root         string
	artifactsDir string
	manifestsDir string
}

// NewFileSystemMirror creates a new filesystem mirror rooted at the given path.
func NewFileSystemMirror(name, root string) (*FileSystemMirror, error) {
	artifactsDir := filepath.Join(root, "artifacts")
	manifestsDir := filepath.Join(root, "manifests")

	// Create directory structure
	if err := os.MkdirAll(artifactsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifacts directory: %w", err)
	}
	if err := os.MkdirAll(manifestsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create manifests directory: %w", err)
	}

	return &FileSystemMirror{
		name:         name,
		root:         root,
		artifactsDir: artifactsDir,
		manifestsDir: manifestsDir,
	}, nil
}

// PutArtifact stores content identified by its checksum.
// The operation is idempotent: storing the same checksum multiple times is safe.
func (m *FileSystemMirror) PutArtifact(checksum string, r io.Reader, size int64) error {
	destPath := filepath.Join(m.artifactsDir, checksum)

	// If the artifact already exists, skip (idempotent)
	if _, err := os.Stat(destPath); err == nil {
		// Consume the reader to maintain expected behavior
		written, err := io.Copy(io.Discard, r)
		if err != nil {
			return fmt.Errorf("failed to read artifact: %w", err)
		}
		if written != size {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
		}
		return nil
	}

	return m.writeFile(destPath, r, size)
}

// GetArtifact retrieves an artifact by checksum and writes it to w.
func (m *FileSystemMirror) GetArtifact(checksum string, w io.Writer) error {
	srcPath := filepath.Join(m.artifactsDir, checksum)
	return m.readFile(srcPath, w, fmt.Sprintf("artifact not found: %s", checksum))
}

// PutManifest stores a named manifest for a specific host along with a version marker.
func (m *FileSystemMirror) PutManifest(hostID string, name string, r io.Reader, size int64, version int64) error {
	hostDir := filepath.Join(m.manifestsDir, hostID)
	if err := os.MkdirAll(hostDir, 0755); err != nil {
		return fmt.Errorf("failed to create host manifest directory: %w", err)
	}

	destPath := filepath.Join(hostDir, name)
	if err := m.writeFile(destPath, r, size); err != nil {
		return err
	}

	// Write version file
	versionPath := destPath + ".version"
	versionData := strconv.FormatInt(version, 10)
	return os.WriteFile(versionPath, []byte(versionData), 0644)
}

// GetManifest retrieves a named manifest for a specific host and writes it to w.
func (m *FileSystemMirror) GetManifest(hostID string, name string, w io.Writer) error {
	srcPath := filepath.Join(m.manifestsDir, hostID, name)
	return m.readFile(srcPath, w, fmt.Sprintf("manifest %q not found for host: %s", name, hostID))
}

// GetManifestVersion returns the manifest version for a host/name pair.
// Returns 0 if no version file exists.
func (m *FileSystemMirror) GetManifestVersion(hostID string, name string) (int64, error) {
	versionPath := filepath.Join(m.manifestsDir, hostID, name+".version")
	data, err := os.ReadFile(versionPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies that the mirror directories are accessible.
func (m *FileSystemMirror) ValidateSetup() error {
	info, err := os.Stat(m.root)
	if err != nil {
		return fmt.Errorf("mirror root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("mirror root is not a directory: %s", m.root)
	}

	for _, dir := range []string{m.artifactsDir, m.manifestsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("mirror directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("mirror path is not a directory: %s", dir)
		}
	}

	return nil
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (m *FileSystemMirror) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Create temp file in the same directory to ensure atomic rename works
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on failure
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// readFile reads from the specified path and writes to w.
func (m *FileSystemMirror) readFile(srcPath string, w io.Writer, notFoundMsg string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s", notFoundMsg)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	return nil
}

// Compile-time check that FileSystemMirror implements pipeline.Mirror
var _ pipeline.Mirror = (*FileSystemMirror)(nil)
