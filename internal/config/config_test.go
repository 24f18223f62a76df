package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		HostID:  "test-host-abc",
		BaseDir: "/home/user/.local/share/partpipe",
		LogDir:  "/home/user/.local/share/partpipe/log",
		Source: SourceConfig{
			Extensions: []string{".ipt"},
			ExportDir:  "STEP_Exports",
			StatsDir:   "Slicer_Stats",
			BOMDir:     "BOM",
		},
		Exporter: ExporterConfig{
			Type:           "process",
			Command:        "InventorExport.exe",
			Args:           []string{"/step", "{input}", "{output}"},
			TimeoutSeconds: 300,
			SkipExitCode:   3,
		},
		Slicer: SlicerConfig{
			Type:              "prusa",
			Command:           "prusa-slicer-console.exe",
			ProfilePath:       "/profiles/pla.ini",
			SupportsEnabled:   true,
			FilamentCostPerKG: 350,
			PrintSettings:     "0.2mm PLA",
		},
		Git: GitConfig{
			Remote:      "origin",
			DefaultRef:  "origin/main",
			AuthorName:  "partpipe",
			AuthorEmail: "partpipe@localhost",
		},
		Pipeline: PipelineConfig{ContinueOnError: true, MirrorSources: true},
		Database: DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/partpipe/db"},
		Mirror:   MirrorConfig{Type: "filesystem", Name: "local", FSMirrorRoot: "/backup/mirror"},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  "/home/user/.local/share/partpipe/keys/partpipe.pub",
			PrivateKeyPath: "/home/user/.local/share/partpipe/keys/partpipe.key",
		},
		Watch: WatchConfig{DebounceMS: 500},
		Filesystem: FilesystemConfig{
			Ignore: []string{"*.log", ".git"},
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.HostID != original.HostID {
		t.Errorf("HostID = %q, want %q", got.HostID, original.HostID)
	}
	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if len(got.Source.Extensions) != 1 || got.Source.Extensions[0] != ".ipt" {
		t.Errorf("Source.Extensions = %v, want [.ipt]", got.Source.Extensions)
	}
	if got.Exporter.Command != "InventorExport.exe" {
		t.Errorf("Exporter.Command = %q, want %q", got.Exporter.Command, "InventorExport.exe")
	}
	if got.Exporter.SkipExitCode != 3 {
		t.Errorf("Exporter.SkipExitCode = %d, want 3", got.Exporter.SkipExitCode)
	}
	if got.Slicer.FilamentCostPerKG != 350 {
		t.Errorf("Slicer.FilamentCostPerKG = %v, want 350", got.Slicer.FilamentCostPerKG)
	}
	if got.Git.DefaultRef != "origin/main" {
		t.Errorf("Git.DefaultRef = %q, want %q", got.Git.DefaultRef, "origin/main")
	}
	if !got.Pipeline.ContinueOnError {
		t.Error("Pipeline.ContinueOnError = false, want true")
	}
	if got.Mirror.Type != "filesystem" {
		t.Errorf("Mirror.Type = %q, want %q", got.Mirror.Type, "filesystem")
	}
	if got.Mirror.FSMirrorRoot != "/backup/mirror" {
		t.Errorf("Mirror.FSMirrorRoot = %q, want %q", got.Mirror.FSMirrorRoot, "/backup/mirror")
	}
	if got.Encryption.PublicKeyPath != original.Encryption.PublicKeyPath {
		t.Errorf("Encryption.PublicKeyPath = %q, want %q", got.Encryption.PublicKeyPath, original.Encryption.PublicKeyPath)
	}
	if got.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", got.Database.Type, "sqlite")
	}
	if got.Watch.DebounceMS != 500 {
		t.Errorf("Watch.DebounceMS = %d, want %d", got.Watch.DebounceMS, 500)
	}
	if len(got.Filesystem.Ignore) != 2 {
		t.Fatalf("len(Filesystem.Ignore) = %d, want 2", len(got.Filesystem.Ignore))
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("host-1", "/data/partpipe")

	if cfg.HostID != "host-1" {
		t.Errorf("HostID = %q, want %q", cfg.HostID, "host-1")
	}
	if cfg.BaseDir != "/data/partpipe" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/partpipe")
	}
	if cfg.LogDir != "/data/partpipe/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/partpipe/log")
	}
	if len(cfg.Source.Extensions) != 1 || cfg.Source.Extensions[0] != ".ipt" {
		t.Errorf("Source.Extensions = %v, want [.ipt]", cfg.Source.Extensions)
	}
	if cfg.Source.ExportDir != "STEP_Exports" {
		t.Errorf("Source.ExportDir = %q, want %q", cfg.Source.ExportDir, "STEP_Exports")
	}
	if cfg.Exporter.SkipExitCode != 3 {
		t.Errorf("Exporter.SkipExitCode = %d, want 3", cfg.Exporter.SkipExitCode)
	}
	if cfg.Git.Remote != "origin" {
		t.Errorf("Git.Remote = %q, want %q", cfg.Git.Remote, "origin")
	}
	if cfg.Mirror.Type != "none" {
		t.Errorf("Mirror.Type = %q, want %q", cfg.Mirror.Type, "none")
	}
	if cfg.Encryption.PublicKeyPath != "/data/partpipe/keys/partpipe.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q, want %q", cfg.Encryption.PublicKeyPath, "/data/partpipe/keys/partpipe.pub")
	}
	if cfg.Encryption.PrivateKeyPath != "/data/partpipe/keys/partpipe.key" {
		t.Errorf("Encryption.PrivateKeyPath = %q, want %q", cfg.Encryption.PrivateKeyPath, "/data/partpipe/keys/partpipe.key")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "partpipe.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "partpipe.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "partpipe.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.HostID != "read-test" {
			t.Errorf("HostID = %q, want %q", got.HostID, "read-test")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/partpipe.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
