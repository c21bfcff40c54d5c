// Package filestore is a generic filename-to-JSON-blob store over a
// private directory. Every operation is total: failures are logged and
// reported as a false/absent return value, never raised, so callers
// built on top of it need no error handling of their own.
package filestore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// SizeUnknown is returned by FileSize for blank names, missing files,
// and I/O errors.
const SizeUnknown int64 = -1

// Store reads and writes UTF-8 JSON blobs under a single private
// directory, keyed by filename.
type Store struct {
	dir string
	log *slog.Logger
}

// New creates the private directory if needed and returns a store over
// it. logger may be nil, in which case slog.Default is used.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Store{dir: dir, log: logger}, nil
}

// Dir returns the private directory path.
func (s *Store) Dir() string {
	return s.dir
}

// path validates name and resolves it inside the private directory.
// Blank names and names containing path separators are rejected.
func (s *Store) path(name string) (string, bool) {
	if strings.TrimSpace(name) == "" {
		return "", false
	}
	if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return "", false
	}
	return filepath.Join(s.dir, name), true
}

// SaveJSON writes data verbatim to the named file, creating it if
// absent and fully overwriting it if present. It returns false on a
// blank or invalid name, a cancelled context, or any I/O failure.
func (s *Store) SaveJSON(ctx context.Context, name, data string) bool {
	p, ok := s.path(name)
	if !ok {
		s.log.Warn("save rejected: invalid file name", "name", name)
		return false
	}
	if ctx.Err() != nil {
		s.log.Warn("save aborted: context done", "name", name, "error", ctx.Err())
		return false
	}
	if err := os.WriteFile(p, []byte(data), 0o600); err != nil {
		s.log.Error("failed to save file", "name", name, "error", err)
		return false
	}
	return true
}

// LoadJSON returns the named file's full contents. The second return
// is false if the name is invalid, the file does not exist, or an I/O
// error occurs.
func (s *Store) LoadJSON(ctx context.Context, name string) (string, bool) {
	p, ok := s.path(name)
	if !ok {
		s.log.Warn("load rejected: invalid file name", "name", name)
		return "", false
	}
	if ctx.Err() != nil {
		return "", false
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Debug("file does not exist", "name", name)
		} else {
			s.log.Error("failed to load file", "name", name, "error", err)
		}
		return "", false
	}
	return string(data), true
}

// FileExists reports whether the named file exists.
func (s *Store) FileExists(ctx context.Context, name string) bool {
	p, ok := s.path(name)
	if !ok || ctx.Err() != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// DeleteFile removes the named file. It returns false if the name is
// invalid, the file does not exist, or deletion fails.
func (s *Store) DeleteFile(ctx context.Context, name string) bool {
	p, ok := s.path(name)
	if !ok || ctx.Err() != nil {
		return false
	}
	if err := os.Remove(p); err != nil {
		if !os.IsNotExist(err) {
			s.log.Error("failed to delete file", "name", name, "error", err)
		}
		return false
	}
	return true
}

// ListFiles returns a snapshot of all filenames in the private
// directory, empty on error.
func (s *Store) ListFiles(ctx context.Context) []string {
	if ctx.Err() != nil {
		return nil
	}
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Error("failed to list files", "dir", s.dir, "error", err)
		return nil
	}
	names := make([]string, 0, len(dirents))
	for _, d := range dirents {
		if !d.IsDir() {
			names = append(names, d.Name())
		}
	}
	return names
}

// FileSize returns the named file's byte length, or SizeUnknown if the
// name is invalid, the file is absent, or stat fails.
func (s *Store) FileSize(ctx context.Context, name string) int64 {
	p, ok := s.path(name)
	if !ok || ctx.Err() != nil {
		return SizeUnknown
	}
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return SizeUnknown
	}
	return info.Size()
}

// ClearAllFiles deletes every file in the private directory,
// best-effort, and returns the number actually deleted. Files that
// fail to delete are logged and skipped, never failing the call.
func (s *Store) ClearAllFiles(ctx context.Context) int {
	deleted := 0
	for _, name := range s.ListFiles(ctx) {
		if s.DeleteFile(ctx, name) {
			deleted++
		}
	}
	return deleted
}
