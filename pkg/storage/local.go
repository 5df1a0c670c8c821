package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStorage implements Storage using the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local filesystem storage rooted at basePath.
// The directory is created lazily on the first write.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage path: %w", err)
	}
	return &LocalStorage{basePath: abs}, nil
}

// List returns the regular files in dir
func (s *LocalStorage) List(ctx context.Context, dir string) ([]*FileInfo, error) {
	full := s.Path(sanitizePath(dir))

	entries, err := os.ReadDir(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDirNotFound, full)
		}
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}

	files := make([]*FileInfo, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Type().IsRegular() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		name := entry.Name()
		files = append(files, &FileInfo{
			ID:      strings.TrimSuffix(name, filepath.Ext(name)),
			Name:    name,
			Size:    info.Size(),
			Path:    filepath.Join(full, name),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Path resolves a path under the storage root
func (s *LocalStorage) Path(elem ...string) string {
	return filepath.Join(append([]string{s.basePath}, elem...)...)
}

// Create opens a new file for writing, truncating any previous content
func (s *LocalStorage) Create(ctx context.Context, name string) (io.WriteCloser, string, error) {
	filePath := s.Path(sanitizePath(name))
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create storage directory: %w", err)
	}

	f, err := os.Create(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file: %w", err)
	}
	return f, filePath, nil
}

// Remove deletes a file, ignoring files that do not exist
func (s *LocalStorage) Remove(ctx context.Context, name string) error {
	filePath := s.Path(sanitizePath(name))
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// sanitizePath keeps a relative path inside the storage root
func sanitizePath(name string) string {
	parts := strings.Split(filepath.ToSlash(name), "/")
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			continue
		}
		clean = append(clean, sanitizeFilename(p))
	}
	return filepath.Join(clean...)
}

// sanitizeFilename removes unsafe characters from filenames
func sanitizeFilename(name string) string {
	// Replace path separators and other dangerous characters
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
