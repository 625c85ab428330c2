// Package storage defines the file-system abstraction over a knowledge base root.
package storage

import "github.com/starford/kbclaude/internal/models"

// Provider is the interface for knowledge base file operations.
// Paths are slash-separated and relative to the root.
type Provider interface {
	// List returns metadata for every entry file under the known type directories.
	List() ([]models.FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Exists reports whether a file is present at path.
	Exists(path string) (bool, error)
	// Abs resolves path to an absolute file-system path.
	Abs(path string) (string, error)
}
