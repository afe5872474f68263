// Package testutil provides sandboxed directories and e-book fixtures for tests.
package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// TestEnv is a temporary directory tree that rejects paths escaping it.
// It is removed when the test completes.
type TestEnv struct {
	t       *testing.T
	rootDir string
}

// NewTestEnv creates a new sandboxed test environment.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	return &TestEnv{t: t, rootDir: t.TempDir()}
}

// RootDir returns the root directory of the test environment.
func (e *TestEnv) RootDir() string {
	return e.rootDir
}

// Path returns an absolute path within the test environment.
func (e *TestEnv) Path(elem ...string) string {
	e.t.Helper()

	p := filepath.Clean(filepath.Join(append([]string{e.rootDir}, elem...)...))
	if p != e.rootDir && !strings.HasPrefix(p, e.rootDir+string(filepath.Separator)) {
		e.t.Fatalf("path %q escapes test sandbox %q", p, e.rootDir)
	}
	return p
}

// WriteFile writes content to a file, creating parent directories, and
// returns its absolute path.
func (e *TestEnv) WriteFile(path string, content []byte) string {
	e.t.Helper()

	p := e.Path(path)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		e.t.Fatalf("failed to create directory for %q: %v", p, err)
	}
	if err := os.WriteFile(p, content, 0o644); err != nil {
		e.t.Fatalf("failed to write file %q: %v", p, err)
	}
	return p
}

// WriteFileString writes a string to a file within the test environment.
func (e *TestEnv) WriteFileString(path, content string) string {
	e.t.Helper()
	return e.WriteFile(path, []byte(content))
}

// ReadFile reads a file from within the test environment.
func (e *TestEnv) ReadFile(path string) []byte {
	e.t.Helper()

	content, err := os.ReadFile(e.Path(path))
	if err != nil {
		e.t.Fatalf("failed to read file %q: %v", path, err)
	}
	return content
}

// MkdirAll creates a directory and its parents and returns its absolute path.
func (e *TestEnv) MkdirAll(path string) string {
	e.t.Helper()

	p := e.Path(path)
	if err := os.MkdirAll(p, 0o755); err != nil {
		e.t.Fatalf("failed to create directory %q: %v", p, err)
	}
	return p
}

// FileExists checks if a file exists within the test environment.
func (e *TestEnv) FileExists(path string) bool {
	e.t.Helper()
	_, err := os.Stat(e.Path(path))
	return err == nil
}

// RequireFileExists fails the test when path does not exist.
func (e *TestEnv) RequireFileExists(path string) {
	e.t.Helper()
	if !e.FileExists(path) {
		e.t.Fatalf("expected file %q to exist", e.Path(path))
	}
}

// Symlink creates a symbolic link within the test environment.
func (e *TestEnv) Symlink(target, link string) {
	e.t.Helper()

	linkPath := e.Path(link)
	if err := os.MkdirAll(filepath.Dir(linkPath), 0o755); err != nil {
		e.t.Fatalf("failed to create directory for %q: %v", linkPath, err)
	}
	if err := os.Symlink(target, linkPath); err != nil {
		e.t.Fatalf("failed to create symlink %q -> %q: %v", linkPath, target, err)
	}
}

// Files lists every regular file below path, relative to it, in sorted
// slash-separated form.
func (e *TestEnv) Files(path string) []string {
	e.t.Helper()

	root := e.Path(path)
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, _ := filepath.Rel(root, p)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		e.t.Fatalf("failed to walk %q: %v", root, err)
	}
	sort.Strings(files)
	return files
}

// Chdir switches the working directory into the environment until the
// test completes.
func (e *TestEnv) Chdir(path string) {
	e.t.Helper()
	e.t.Chdir(e.Path(path))
}
