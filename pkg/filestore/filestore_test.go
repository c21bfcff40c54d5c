package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestNew_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "storage")

	s, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", s.Dir(), dir)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("directory not created: %v", err)
	}
}

func TestSaveAndLoadJSON(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	data := `[{"id":"1","message":"hello"}]`
	if !s.SaveJSON(ctx, "logs.json", data) {
		t.Fatal("SaveJSON() = false, want true")
	}

	got, ok := s.LoadJSON(ctx, "logs.json")
	if !ok {
		t.Fatal("LoadJSON() ok = false, want true")
	}
	if got != data {
		t.Errorf("LoadJSON() = %q, want %q", got, data)
	}
}

func TestSaveJSON_Overwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SaveJSON(ctx, "x.json", "first")
	s.SaveJSON(ctx, "x.json", "second")

	got, _ := s.LoadJSON(ctx, "x.json")
	if got != "second" {
		t.Errorf("LoadJSON() after overwrite = %q, want second", got)
	}
}

func TestSaveJSON_InvalidNames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		fileName string
	}{
		{"blank name", ""},
		{"whitespace name", "   "},
		{"path traversal", "../escape.json"},
		{"nested path", "sub/file.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if s.SaveJSON(ctx, tt.fileName, "data") {
				t.Errorf("SaveJSON(%q) = true, want false", tt.fileName)
			}
		})
	}

	// Nothing may have been written.
	if got := len(s.ListFiles(ctx)); got != 0 {
		t.Errorf("ListFiles() len = %d after rejected saves, want 0", got)
	}
}

func TestLoadJSON_Missing(t *testing.T) {
	s := newTestStore(t)

	got, ok := s.LoadJSON(context.Background(), "missing.json")
	if ok {
		t.Error("LoadJSON(missing) ok = true, want false")
	}
	if got != "" {
		t.Errorf("LoadJSON(missing) = %q, want empty", got)
	}
}

func TestFileExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if s.FileExists(ctx, "a.json") {
		t.Error("FileExists() = true before save")
	}
	s.SaveJSON(ctx, "a.json", "{}")
	if !s.FileExists(ctx, "a.json") {
		t.Error("FileExists() = false after save")
	}
}

func TestDeleteFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if s.DeleteFile(ctx, "ghost.json") {
		t.Error("DeleteFile(missing) = true, want false")
	}
	if s.DeleteFile(ctx, "") {
		t.Error("DeleteFile(blank) = true, want false")
	}

	s.SaveJSON(ctx, "a.json", "{}")
	if !s.DeleteFile(ctx, "a.json") {
		t.Error("DeleteFile() = false, want true")
	}
	if s.FileExists(ctx, "a.json") {
		t.Error("file still exists after DeleteFile")
	}
}

func TestListFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if got := s.ListFiles(ctx); len(got) != 0 {
		t.Errorf("ListFiles() on empty dir = %v, want empty", got)
	}

	s.SaveJSON(ctx, "a.json", "{}")
	s.SaveJSON(ctx, "b.json", "{}")

	got := s.ListFiles(ctx)
	if len(got) != 2 {
		t.Errorf("ListFiles() len = %d, want 2", len(got))
	}
}

func TestFileSize(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if got := s.FileSize(ctx, "missing.json"); got != SizeUnknown {
		t.Errorf("FileSize(missing) = %d, want %d", got, SizeUnknown)
	}
	if got := s.FileSize(ctx, ""); got != SizeUnknown {
		t.Errorf("FileSize(blank) = %d, want %d", got, SizeUnknown)
	}

	s.SaveJSON(ctx, "a.json", "12345")
	if got := s.FileSize(ctx, "a.json"); got != 5 {
		t.Errorf("FileSize() = %d, want 5", got)
	}
}

func TestClearAllFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SaveJSON(ctx, "a.json", "{}")
	s.SaveJSON(ctx, "b.json", "{}")
	s.SaveJSON(ctx, "c.json", "{}")

	if got := s.ClearAllFiles(ctx); got != 3 {
		t.Errorf("ClearAllFiles() = %d, want 3", got)
	}
	if got := len(s.ListFiles(ctx)); got != 0 {
		t.Errorf("ListFiles() len = %d after clear, want 0", got)
	}
}

func TestSaveJSON_CancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if s.SaveJSON(ctx, "a.json", "{}") {
		t.Error("SaveJSON() with cancelled context = true, want false")
	}
	if s.FileExists(context.Background(), "a.json") {
		t.Error("file written despite cancelled context")
	}
}
