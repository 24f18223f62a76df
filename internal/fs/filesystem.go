package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"partpipe/internal/pipeline"
)

// OSFilesystemManager is the real filesystem implementation of
// pipeline.FilesystemManager. Ignore patterns filter out files the CAD
// application litters next to parts (lock files like "~$Bracket.ipt",
// autosave backups) so they never become export jobs.
type OSFilesystemManager struct {
	ignore *IgnoreMatcher
}

// NewOSFilesystemManager creates a filesystem manager applying the given
// ignore patterns during file discovery.
func NewOSFilesystemManager(ignorePatterns []string) *OSFilesystemManager {
	return &OSFilesystemManager{ignore: NewIgnoreMatcher(ignorePatterns)}
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*pipeline.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	// Reject special file types the pipeline cannot process.
	mode := info.Mode()
	if mode&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("symlinks not supported: %s", absPath)
	}
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	return pipeline.NewPath(absPath, info.IsDir(), info), nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path *pipeline.Path) (io.ReadCloser, error) {
	if path.IsDir() {
		return nil, fmt.Errorf("cannot open directory as file: %s", path.String())
	}
	return os.Open(path.String())
}

// Stat returns fresh file info for a raw path.
func (m *OSFilesystemManager) Stat(rawPath string) (fs.FileInfo, error) {
	return os.Stat(rawPath)
}

// FindFiles discovers regular, non-ignored files under the given directory.
func (m *OSFilesystemManager) FindFiles(path *pipeline.Path, recursive bool) ([]*pipeline.Path, error) {
	if !path.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", path.String())
	}

	var paths []*pipeline.Path

	if recursive {
		err := filepath.WalkDir(path.String(), func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, relErr := filepath.Rel(path.String(), p)
			if relErr != nil {
				return relErr
			}
			if d.IsDir() {
				if rel != "." && m.ignore.Match(rel) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if m.ignore.Match(rel) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return fmt.Errorf("stat %s: %w", p, err)
			}
			paths = append(paths, pipeline.NewPath(p, false, info))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking directory: %w", err)
		}
	} else {
		entries, err := os.ReadDir(path.String())
		if err != nil {
			return nil, fmt.Errorf("reading directory: %w", err)
		}
		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}
			if m.ignore.Match(entry.Name()) {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
			}
			fullPath := filepath.Join(path.String(), entry.Name())
			paths = append(paths, pipeline.NewPath(fullPath, false, info))
		}
	}

	return paths, nil
}

// WriteFile writes data to rawPath, creating parent directories as needed.
func (m *OSFilesystemManager) WriteFile(rawPath string, data []byte, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(rawPath), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(rawPath, data, perm); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

// Remove deletes a single file. Directories are rejected.
func (m *OSFilesystemManager) Remove(rawPath string) error {
	info, err := os.Stat(rawPath)
	if err != nil {
		return fmt.Errorf("stat path: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("refusing to remove directory: %s", rawPath)
	}
	return os.Remove(rawPath)
}

// Compile-time check that OSFilesystemManager implements pipeline.FilesystemManager
var _ pipeline.FilesystemManager = (*OSFilesystemManager)(nil)
