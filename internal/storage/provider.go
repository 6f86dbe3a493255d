// Package storage provides the traversal-guarded directory source backing
// the inbox importer.
package storage

import "time"

// File describes one Markdown file in the source directory.
type File struct {
	Name    string
	ModTime time.Time
}

// Source is the file-system surface the inbox importer consumes.
type Source interface {
	// List returns every .md file directly in the root (non-recursive, so
	// files already moved into subdirectories are not re-imported).
	List() ([]File, error)
	// Read returns the raw bytes of a file in the root.
	Read(name string) ([]byte, error)
	// Move relocates a file from the root into a subdirectory of the root.
	Move(name, subdir string) error
}

// Verify *Dir satisfies Source at compile time.
var _ Source = (*Dir)(nil)
