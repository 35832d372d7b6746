package resolver

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileSystem is the file access the resolver, walker and bundler need.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
	// IsFile reports whether name exists and is a regular file.
	IsFile(name string) bool
	Exists(name string) bool
	// Realpath returns the absolute, symlink-free form of name.
	Realpath(name string) (string, error)
}

// OSFileSystem reads from the real disk.
type OSFileSystem struct{}

func (OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (OSFileSystem) IsFile(name string) bool {
	st, err := os.Stat(name)
	return err == nil && st.Mode().IsRegular()
}

func (OSFileSystem) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

func (OSFileSystem) Realpath(name string) (string, error) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", err
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return filepath.Clean(real), nil
}

// MockFS is an in-memory file system keyed by slash-separated absolute
// paths. It counts reads per file so tests can observe caching.
type MockFS struct {
	mu    sync.Mutex
	files map[string]string
	dirs  map[string]bool
	reads map[string]int
}

func NewMockFS(files map[string]string) *MockFS {
	m := &MockFS{
		files: make(map[string]string, len(files)),
		dirs:  map[string]bool{"/": true},
		reads: make(map[string]int),
	}
	for name, content := range files {
		m.Add(name, content)
	}
	return m
}

// Add creates or replaces a file.
func (m *MockFS) Add(name, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = path.Clean(filepath.ToSlash(name))
	m.files[name] = content
	for dir := path.Dir(name); ; dir = path.Dir(dir) {
		m.dirs[dir] = true
		if dir == "/" || dir == "." {
			break
		}
	}
}

func (m *MockFS) ReadFile(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = path.Clean(filepath.ToSlash(name))
	content, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	m.reads[name]++
	return []byte(content), nil
}

func (m *MockFS) IsFile(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path.Clean(filepath.ToSlash(name))]
	return ok
}

func (m *MockFS) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = path.Clean(filepath.ToSlash(name))
	_, ok := m.files[name]
	return ok || m.dirs[name]
}

func (m *MockFS) Realpath(name string) (string, error) {
	name = path.Clean(filepath.ToSlash(name))
	if !m.Exists(name) {
		return "", &fs.PathError{Op: "realpath", Path: name, Err: fs.ErrNotExist}
	}
	return name, nil
}

// Reads returns how many times name has been read.
func (m *MockFS) Reads(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads[path.Clean(filepath.ToSlash(name))]
}

// Files lists every file path in sorted order.
func (m *MockFS) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for name := range m.files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ToUnixPath converts Windows separators to forward slashes.
func ToUnixPath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
