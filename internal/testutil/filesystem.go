package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"partpipe/internal/pipeline"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing. All paths
// are stored as absolute paths.
type MockFilesystemManager struct {
	files map[string]*MockFile
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files: make(map[string]*MockFile),
	}
}

// AddFile adds a file to the mock filesystem, creating parent directories.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.addParents(path)
	m.files[path] = &MockFile{
		Content:     content,
		Permissions: 0644,
		ModTime:     time.Now(),
	}
}

// AddFileWithModTime adds a file with an explicit modification time.
func (m *MockFilesystemManager) AddFileWithModTime(path string, content []byte, modTime time.Time) {
	m.AddFile(path, content)
	m.files[path].ModTime = modTime
}

// AddDirectory adds a directory to the mock filesystem.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.addParents(path)
	m.files[path] = &MockFile{
		Permissions: 0755,
		ModTime:     time.Now(),
		IsDirectory: true,
	}
}

// RemoveAll deletes a path and everything under it.
func (m *MockFilesystemManager) RemoveAll(path string) {
	delete(m.files, path)
	prefix := path + string(filepath.Separator)
	for p := range m.files {
		if strings.HasPrefix(p, prefix) {
			delete(m.files, p)
		}
	}
}

// Exists reports whether the path is present in the mock filesystem.
func (m *MockFilesystemManager) Exists(path string) bool {
	_, ok := m.files[path]
	return ok
}

// Content returns a file's content, or nil when the path is absent.
func (m *MockFilesystemManager) Content(path string) []byte {
	f, ok := m.files[path]
	if !ok {
		return nil
	}
	return f.Content
}

func (m *MockFilesystemManager) addParents(path string) {
	for dir := filepath.Dir(path); dir != "/" && dir != "."; dir = filepath.Dir(dir) {
		if _, ok := m.files[dir]; ok {
			continue
		}
		m.files[dir] = &MockFile{
			Permissions: 0755,
			ModTime:     time.Now(),
			IsDirectory: true,
		}
	}
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*pipeline.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}

	file, ok := m.files[absPath]
	if !ok {
		return nil, fmt.Errorf("resolving %s: %w", absPath, fs.ErrNotExist)
	}

	return pipeline.NewPath(absPath, file.IsDirectory, m.infoFor(absPath, file)), nil
}

func (m *MockFilesystemManager) Open(path *pipeline.Path) (io.ReadCloser, error) {
	file, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("opening %s: %w", path.String(), fs.ErrNotExist)
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", path.String())
	}
	return io.NopCloser(bytes.NewReader(file.Content)), nil
}

func (m *MockFilesystemManager) Stat(rawPath string) (fs.FileInfo, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}

	file, ok := m.files[absPath]
	if !ok {
		return nil, fmt.Errorf("stat %s: %w", absPath, fs.ErrNotExist)
	}
	return m.infoFor(absPath, file), nil
}

func (m *MockFilesystemManager) FindFiles(path *pipeline.Path, recursive bool) ([]*pipeline.Path, error) {
	dir := path.String()
	if f, ok := m.files[dir]; !ok || !f.IsDirectory {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	prefix := dir + string(filepath.Separator)
	var names []string
	for p, f := range m.files {
		if f.IsDirectory || !strings.HasPrefix(p, prefix) {
			continue
		}
		if !recursive && strings.ContainsRune(p[len(prefix):], filepath.Separator) {
			continue
		}
		names = append(names, p)
	}
	sort.Strings(names)

	var found []*pipeline.Path
	for _, p := range names {
		found = append(found, pipeline.NewPath(p, false, m.infoFor(p, m.files[p])))
	}
	return found, nil
}

func (m *MockFilesystemManager) WriteFile(rawPath string, data []byte, perm fs.FileMode) error {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return err
	}

	m.addParents(absPath)
	m.files[absPath] = &MockFile{
		Content:     append([]byte(nil), data...),
		Permissions: perm,
		ModTime:     time.Now(),
	}
	return nil
}

func (m *MockFilesystemManager) Remove(rawPath string) error {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return err
	}

	file, ok := m.files[absPath]
	if !ok {
		return fmt.Errorf("removing %s: %w", absPath, fs.ErrNotExist)
	}
	if file.IsDirectory {
		return fmt.Errorf("cannot remove directory: %s", absPath)
	}
	delete(m.files, absPath)
	return nil
}

func (m *MockFilesystemManager) infoFor(path string, file *MockFile) fs.FileInfo {
	mode := file.Permissions
	if file.IsDirectory {
		mode |= fs.ModeDir
	}
	return &mockFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(file.Content)),
		mode:    mode,
		modTime: file.ModTime,
		isDir:   file.IsDirectory,
	}
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

// Compile-time check
var _ pipeline.FilesystemManager = (*MockFilesystemManager)(nil)
