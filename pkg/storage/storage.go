// Package storage provides local filesystem access for input documents and output files.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrDirNotFound is returned when a listed directory does not exist.
var ErrDirNotFound = errors.New("directory not found")

// FileInfo contains metadata about a stored file
type FileInfo struct {
	ID      string    `json:"id"`   // Name without extension
	Name    string    `json:"name"` // Base name
	Size    int64     `json:"size"`
	Path    string    `json:"path"` // Absolute path
	ModTime time.Time `json:"mod_time"`
}

// Storage defines the interface for file storage operations
type Storage interface {
	// List returns the regular files in dir, relative to the storage root, sorted by name
	List(ctx context.Context, dir string) ([]*FileInfo, error)

	// Path resolves a path under the storage root
	Path(elem ...string) string

	// Create opens a new file for writing, creating parent directories as needed
	Create(ctx context.Context, name string) (io.WriteCloser, string, error)

	// Remove deletes a file, ignoring files that do not exist
	Remove(ctx context.Context, name string) error
}
