package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Dir implements Source backed by a local directory.
type Dir struct {
	root string // absolute path to the inbox directory
}

// NewDir creates a Source rooted at the given directory, creating it when
// absent.
func NewDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &Dir{root: abs}, nil
}

// Root returns the absolute root path.
func (d *Dir) Root() string {
	return d.root
}

// safeName rejects names that would escape the root (directory traversal) or
// address a subdirectory.
func (d *Dir) safeName(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "/\\") || filepath.Clean(name) != name {
		return "", fmt.Errorf("storage: invalid file name: %s", name)
	}
	return filepath.Join(d.root, name), nil
}

// List returns every .md file directly in the root.
func (d *Dir) List() ([]File, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var out []File
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, File{Name: e.Name(), ModTime: info.ModTime()})
	}
	return out, nil
}

// Read returns the raw bytes of a file in the root.
func (d *Dir) Read(name string) ([]byte, error) {
	abs, err := d.safeName(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", name, err)
	}
	return data, nil
}

// Move relocates a file into a subdirectory of the root, creating it on
// demand. An existing file of the same name in the subdirectory is
// overwritten.
func (d *Dir) Move(name, subdir string) error {
	abs, err := d.safeName(name)
	if err != nil {
		return err
	}
	if subdir == "" || strings.ContainsAny(subdir, "/\\") {
		return fmt.Errorf("storage: invalid subdir: %s", subdir)
	}
	destDir := filepath.Join(d.root, subdir)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", subdir, err)
	}
	if err := os.Rename(abs, filepath.Join(destDir, name)); err != nil {
		return fmt.Errorf("storage: move %s: %w", name, err)
	}
	return nil
}
