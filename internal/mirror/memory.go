package mirror

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"partpipe/internal/pipeline"
)

// MemoryMirror is an in-memory implementation of the Mirror interface.
// It stores all artifacts and manifests in memory, making it useful for
// testing. This implementation is safe for concurrent use.
type MemoryMirror struct {
	name            string
	artifacts       map[string][]byte // checksum -> content
	manifests       map[string][]byte // "hostID/name" -> manifest
	manifestVersion map[string]int64  // "hostID/name" -> version
	mu              sync.RWMutex
}

// NewMemoryMirror creates a new in-memory mirror with the given name.
func NewMemoryMirror(name string) *MemoryMirror {
	return &MemoryMirror{
		name:            name,
		artifacts:       make(map[string][]byte),
		manifests:       make(map[string][]byte),
		manifestVersion: make(map[string]int64),
	}
}

// manifestKey returns the map key for a host/name pair.
func manifestKey(hostID, name string) string {
	return hostID + "/" + name
}

// PutArtifact stores content identified by its checksum.
func (m *MemoryMirror) PutArtifact(checksum string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read artifact: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Idempotent: storing the same checksum multiple times is safe
	m.artifacts[checksum] = data
	return nil
}

// GetArtifact retrieves an artifact by checksum.
func (m *MemoryMirror) GetArtifact(checksum string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.artifacts[checksum]
	if !ok {
		return fmt.Errorf("artifact not found: %s", checksum)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	return nil
}

// PutManifest stores a named manifest for a specific host.
func (m *MemoryMirror) PutManifest(hostID string, name string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := manifestKey(hostID, name)
	m.manifests[key] = data
	m.manifestVersion[key] = version
	return nil
}

// GetManifest retrieves a named manifest for a specific host.
func (m *MemoryMirror) GetManifest(hostID string, name string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := manifestKey(hostID, name)
	data, ok := m.manifests[key]
	if !ok {
		return fmt.Errorf("manifest %q not found for host: %s", name, hostID)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

// GetManifestVersion returns the manifest version for a host/name pair.
// Returns 0 if no manifest has been stored for this host/name.
func (m *MemoryMirror) GetManifestVersion(hostID string, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.manifestVersion[manifestKey(hostID, name)], nil
}

// ValidateSetup always succeeds for the in-memory mirror.
func (m *MemoryMirror) ValidateSetup() error {
	return nil
}

// Compile-time check that MemoryMirror implements pipeline.Mirror
var _ pipeline.Mirror = (*MemoryMirror)(nil)
