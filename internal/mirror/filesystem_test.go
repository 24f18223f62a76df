package mirror

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFileSystemMirror(t *testing.T) {
	t.Run("creates directory structure", func(t *testing.T) {
		tmpDir := t.TempDir()
		root := filepath.Join(tmpDir, "mirror")

		m, err := NewFileSystemMirror("test", root)
		if err != nil {
			t.Fatalf("NewFileSystemMirror() error = %v", err)
		}

		// Check directories were created
		if _, err := os.Stat(filepath.Join(root, "artifacts")); err != nil {
			t.Errorf("artifacts directory not created: %v", err)
		}
		if _, err := os.Stat(filepath.Join(root, "manifests")); err != nil {
			t.Errorf("manifests directory not created: %v", err)
		}

		if m.name != "test" {
			t.Errorf("name = %q, want %q", m.name, "test")
		}
	})

	t.Run("works with existing directory", func(t *testing.T) {
		tmpDir := t.TempDir()

		_, err := NewFileSystemMirror("test", tmpDir)
		if err != nil {
			t.Fatalf("NewFileSystemMirror() error = %v", err)
		}
	})
}

func TestFileSystemMirror_PutArtifact(t *testing.T) {
	tests := []struct {
		name     string
		checksum string
		data     string
		size     int64
		wantErr  bool
	}{
		{
			name:     "store artifact successfully",
			checksum: "abc123",
			data:     "ISO-10303-21;",
			size:     13,
			wantErr:  false,
		},
		{
			name:     "size mismatch",
			checksum: "def456",
			data:     "hello",
			size:     100,
			wantErr:  true,
		},
		{
			name:     "empty artifact",
			checksum: "empty",
			data:     "",
			size:     0,
			wantErr:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewFileSystemMirror("test", t.TempDir())
			if err != nil {
				t.Fatalf("NewFileSystemMirror() error = %v", err)
			}

			err = m.PutArtifact(tt.checksum, strings.NewReader(tt.data), tt.size)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PutArtifact() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			var buf bytes.Buffer
			if err := m.GetArtifact(tt.checksum, &buf); err != nil {
				t.Fatalf("GetArtifact() error = %v", err)
			}
			if buf.String() != tt.data {
				t.Errorf("GetArtifact() = %q, want %q", buf.String(), tt.data)
			}
		})
	}

	t.Run("idempotent for same checksum", func(t *testing.T) {
		m, err := NewFileSystemMirror("test", t.TempDir())
		if err != nil {
			t.Fatalf("NewFileSystemMirror() error = %v", err)
		}

		if err := m.PutArtifact("chk", strings.NewReader("data"), 4); err != nil {
			t.Fatalf("first PutArtifact() error = %v", err)
		}
		if err := m.PutArtifact("chk", strings.NewReader("data"), 4); err != nil {
			t.Fatalf("second PutArtifact() error = %v", err)
		}

		var buf bytes.Buffer
		if err := m.GetArtifact("chk", &buf); err != nil {
			t.Fatalf("GetArtifact() error = %v", err)
		}
		if buf.String() != "data" {
			t.Errorf("GetArtifact() = %q, want %q", buf.String(), "data")
		}
	})

	t.Run("no partial file left on size mismatch", func(t *testing.T) {
		root := t.TempDir()
		m, err := NewFileSystemMirror("test", root)
		if err != nil {
			t.Fatalf("NewFileSystemMirror() error = %v", err)
		}

		if err := m.PutArtifact("bad", strings.NewReader("short"), 99); err == nil {
			t.Fatal("PutArtifact() expected size mismatch error")
		}

		if _, err := os.Stat(filepath.Join(root, "artifacts", "bad")); !os.IsNotExist(err) {
			t.Error("partial artifact left behind after failed put")
		}
	})
}

func TestFileSystemMirror_GetArtifact_NotFound(t *testing.T) {
	m, err := NewFileSystemMirror("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemMirror() error = %v", err)
	}

	var buf bytes.Buffer
	err = m.GetArtifact("missing", &buf)
	if err == nil {
		t.Fatal("GetArtifact() expected error for missing artifact")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestFileSystemMirror_Manifests(t *testing.T) {
	t.Run("put and get round trip", func(t *testing.T) {
		m, err := NewFileSystemMirror("test", t.TempDir())
		if err != nil {
			t.Fatalf("NewFileSystemMirror() error = %v", err)
		}

		data := "database snapshot bytes"
		if err := m.PutManifest("host-1", "history.db", strings.NewReader(data), int64(len(data)), 7); err != nil {
			t.Fatalf("PutManifest() error = %v", err)
		}

		var buf bytes.Buffer
		if err := m.GetManifest("host-1", "history.db", &buf); err != nil {
			t.Fatalf("GetManifest() error = %v", err)
		}
		if buf.String() != data {
			t.Errorf("GetManifest() = %q, want %q", buf.String(), data)
		}

		version, err := m.GetManifestVersion("host-1", "history.db")
		if err != nil {
			t.Fatalf("GetManifestVersion() error = %v", err)
		}
		if version != 7 {
			t.Errorf("GetManifestVersion() = %d, want 7", version)
		}
	})

	t.Run("version is zero when never stored", func(t *testing.T) {
		m, err := NewFileSystemMirror("test", t.TempDir())
		if err != nil {
			t.Fatalf("NewFileSystemMirror() error = %v", err)
		}

		version, err := m.GetManifestVersion("host-1", "history.db")
		if err != nil {
			t.Fatalf("GetManifestVersion() error = %v", err)
		}
		if version != 0 {
			t.Errorf("GetManifestVersion() = %d, want 0", version)
		}
	})

	t.Run("newer put replaces manifest and version", func(t *testing.T) {
		m, err := NewFileSystemMirror("test", t.TempDir())
		if err != nil {
			t.Fatalf("NewFileSystemMirror() error = %v", err)
		}

		if err := m.PutManifest("host-1", "history.db", strings.NewReader("v1"), 2, 1); err != nil {
			t.Fatalf("PutManifest() error = %v", err)
		}
		if err := m.PutManifest("host-1", "history.db", strings.NewReader("v2"), 2, 2); err != nil {
			t.Fatalf("PutManifest() error = %v", err)
		}

		var buf bytes.Buffer
		if err := m.GetManifest("host-1", "history.db", &buf); err != nil {
			t.Fatalf("GetManifest() error = %v", err)
		}
		if buf.String() != "v2" {
			t.Errorf("GetManifest() = %q, want %q", buf.String(), "v2")
		}

		version, err := m.GetManifestVersion("host-1", "history.db")
		if err != nil {
			t.Fatalf("GetManifestVersion() error = %v", err)
		}
		if version != 2 {
			t.Errorf("GetManifestVersion() = %d, want 2", version)
		}
	})
}

func TestFileSystemMirror_ValidateSetup(t *testing.T) {
	t.Run("passes for valid mirror", func(t *testing.T) {
		m, err := NewFileSystemMirror("test", t.TempDir())
		if err != nil {
			t.Fatalf("NewFileSystemMirror() error = %v", err)
		}
		if err := m.ValidateSetup(); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}
	})

	t.Run("fails when root removed", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "mirror")
		m, err := NewFileSystemMirror("test", root)
		if err != nil {
			t.Fatalf("NewFileSystemMirror() error = %v", err)
		}

		if err := os.RemoveAll(root); err != nil {
			t.Fatalf("removing root: %v", err)
		}

		if err := m.ValidateSetup(); err == nil {
			t.Error("ValidateSetup() expected error after root removed")
		}
	})
}
