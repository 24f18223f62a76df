package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for partpipe.
type Config struct {
	HostID  string `toml:"host_id"`
	BaseDir string `toml:"base_dir"`
	LogDir  string `toml:"log_dir"`

	Source     SourceConfig     `toml:"source"`
	Exporter   ExporterConfig   `toml:"exporter"`
	Slicer     SlicerConfig     `toml:"slicer"`
	Git        GitConfig        `toml:"git"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Database   DatabaseConfig   `toml:"database"`
	Mirror     MirrorConfig     `toml:"mirror"`
	Encryption EncryptionConfig `toml:"encryption"`
	Watch      WatchConfig      `toml:"watch"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// SourceConfig describes which files count as part sources and where
// generated outputs go relative to them.
type SourceConfig struct {
	Extensions []string `toml:"extensions"` // e.g. [".ipt"]
	ExportDir  string   `toml:"export_dir"` // e.g. "STEP_Exports"
	StatsDir   string   `toml:"stats_dir"`  // e.g. "Slicer_Stats"
	BOMDir     string   `toml:"bom_dir"`    // e.g. "BOM"
}

// ExporterConfig configures the CAD export harness invocation.
// Args may contain {input} and {output} placeholders; when absent the
// source and output paths are appended as the final arguments.
type ExporterConfig struct {
	Type           string   `toml:"type"` // "process" (default)
	Command        string   `toml:"command"`
	Args           []string `toml:"args"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	SkipExitCode   int      `toml:"skip_exit_code"` // harness exit code meaning "part not flagged for export"
}

// SlicerConfig configures the slicer console invocation and filament pricing.
type SlicerConfig struct {
	Type              string  `toml:"type"` // "none" (default) or "prusa"
	Command           string  `toml:"command"`
	ProfilePath       string  `toml:"profile_path"` // base slicer profile INI
	SupportsEnabled   bool    `toml:"supports_enabled"`
	FilamentCostPerKG float64 `toml:"filament_cost_per_kg"`
	PrintSettings     string  `toml:"print_settings"` // profile description recorded in part stats
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// GitConfig holds the push target and the automation commit identity.
type GitConfig struct {
	Remote      string `toml:"remote"`
	DefaultRef  string `toml:"default_ref"` // comparison base for change detection, e.g. "origin/main"
	AuthorName  string `toml:"author_name"`
	AuthorEmail string `toml:"author_email"`
}

// PipelineConfig holds run policies.
type PipelineConfig struct {
	// ContinueOnError keeps a run going past individual job failures
	// instead of aborting before the commit. The run still exits non-zero.
	ContinueOnError bool `toml:"continue_on_error"`

	// MirrorSources also mirrors the native part files, age-encrypted.
	MirrorSources bool `toml:"mirror_sources"`
}

// DatabaseConfig represents configuration for the run-history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// MirrorConfig represents configuration for the artifact mirror backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type MirrorConfig struct {
	Type string `toml:"type"` // "none", "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`

	// Optional static credentials; when empty the default AWS credential
	// chain is used (env vars, shared config, instance role).
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSMirrorRoot string `toml:"fs_mirror_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used when mirroring
// native part sources.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default), "none", or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// WatchConfig holds settings for the directory watcher.
type WatchConfig struct {
	DebounceMS int `toml:"debounce_ms"`
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// NewConfig creates a new Config with the provided values and built-in defaults.
func NewConfig(hostID, baseDir string) *Config {
	return &Config{
		HostID:  hostID,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Source: SourceConfig{
			Extensions: []string{".ipt"},
			ExportDir:  "STEP_Exports",
			StatsDir:   "Slicer_Stats",
			BOMDir:     "BOM",
		},
		Exporter: ExporterConfig{
			Type:           "process",
			TimeoutSeconds: 600,
			SkipExitCode:   3,
		},
		Slicer: SlicerConfig{
			Type:            "none",
			SupportsEnabled: true,
			TimeoutSeconds:  600,
		},
		Git: GitConfig{
			Remote:      "origin",
			DefaultRef:  "origin/main",
			AuthorName:  "partpipe",
			AuthorEmail: "partpipe@localhost",
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Mirror: MirrorConfig{Type: "none"},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "partpipe.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "partpipe.key"),
		},
		Watch: WatchConfig{DebounceMS: 2000},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
