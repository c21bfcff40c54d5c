package archive

import (
	"fmt"
	"testing"
	"time"

	"github.com/frontiercc/campfire/pkg/logstore"
)

func newTestArchive(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{DBPath: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeEntries(n int, level logstore.Level, base time.Time) []logstore.Entry {
	entries := make([]logstore.Entry, n)
	for i := range entries {
		entries[i] = logstore.NewEntryAt(base.Add(time.Duration(i)*time.Second),
			level, "rotated", fmt.Sprintf("entry %d", i), "")
	}
	return entries
}

func TestArchiveAndQuery(t *testing.T) {
	s := newTestArchive(t)

	s.Archive(makeEntries(10, logstore.LevelInfo, time.Now().Add(-time.Hour)))

	entries, total, err := s.Query(nil, 100, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if total != 10 || len(entries) != 10 {
		t.Fatalf("Query() = %d entries, total %d, want 10/10", len(entries), total)
	}

	// Oldest first.
	if entries[0].Message != "entry 0" {
		t.Errorf("first entry = %q, want entry 0", entries[0].Message)
	}
}

func TestQuery_Pagination(t *testing.T) {
	s := newTestArchive(t)

	s.Archive(makeEntries(25, logstore.LevelInfo, time.Now().Add(-time.Hour)))

	entries, total, err := s.Query(nil, 10, 20)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if total != 25 {
		t.Errorf("total = %d, want 25", total)
	}
	if len(entries) != 5 {
		t.Errorf("page len = %d, want 5", len(entries))
	}
}

type levelFilter struct {
	level logstore.Level
}

func (f levelFilter) Match(e logstore.Entry) bool {
	return e.Level == f.level
}

func TestQuery_Filtered(t *testing.T) {
	s := newTestArchive(t)

	base := time.Now().Add(-time.Hour)
	s.Archive(makeEntries(5, logstore.LevelInfo, base))
	s.Archive(makeEntries(3, logstore.LevelError, base.Add(time.Minute)))

	entries, total, err := s.Query(levelFilter{logstore.LevelError}, 100, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if total != 3 || len(entries) != 3 {
		t.Errorf("filtered query = %d/%d, want 3/3", len(entries), total)
	}
}

func TestGetStats(t *testing.T) {
	s := newTestArchive(t)

	base := time.Now().Add(-time.Hour)
	s.Archive(makeEntries(4, logstore.LevelInfo, base))
	s.Archive(makeEntries(2, logstore.LevelWarning, base.Add(time.Minute)))

	stats, err := s.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.TotalEntries != 6 {
		t.Errorf("TotalEntries = %d, want 6", stats.TotalEntries)
	}
	if stats.Levels["INFO"] != 4 || stats.Levels["WARNING"] != 2 {
		t.Errorf("Levels = %v, want INFO:4 WARNING:2", stats.Levels)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	s := newTestArchive(t)

	old := makeEntries(5, logstore.LevelInfo, time.Now().AddDate(0, 0, -10))
	recent := makeEntries(5, logstore.LevelInfo, time.Now().Add(-time.Hour))
	s.Archive(old)
	s.Archive(recent)

	deleted, err := s.DeleteOlderThan(time.Now().AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if deleted != 5 {
		t.Errorf("deleted = %d, want 5", deleted)
	}

	_, total, err := s.Query(nil, 100, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if total != 5 {
		t.Errorf("remaining = %d, want 5", total)
	}
}

func TestDeleteAll(t *testing.T) {
	s := newTestArchive(t)

	s.Archive(makeEntries(8, logstore.LevelDebug, time.Now().Add(-time.Hour)))

	deleted, err := s.DeleteAll()
	if err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if deleted != 8 {
		t.Errorf("deleted = %d, want 8", deleted)
	}

	_, total, _ := s.Query(nil, 100, 0)
	if total != 0 {
		t.Errorf("remaining = %d, want 0", total)
	}
}
