package logstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry is one immutable structured log record. Fields are never
// mutated after creation; corrections are logged as new entries.
type Entry struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
	Level     Level  `json:"level"`
	Tag       string `json:"tag"`
	Message   string `json:"message"`
	Exception string `json:"exception,omitempty"`
}

// NewEntry creates an entry stamped with the current wall clock.
func NewEntry(level Level, tag, message, exception string) Entry {
	return newEntryAt(time.Now(), level, tag, message, exception)
}

// NewEntryAt creates an entry stamped with the given time. It is used
// by ingestion paths that carry their own timestamps.
func NewEntryAt(t time.Time, level Level, tag, message, exception string) Entry {
	return newEntryAt(t, level, tag, message, exception)
}

func newEntryAt(now time.Time, level Level, tag, message, exception string) Entry {
	ms := now.UnixMilli()
	return Entry{
		ID:        fmt.Sprintf("%d-%s", ms, uuid.NewString()[:8]),
		Timestamp: ms,
		Level:     level,
		Tag:       tag,
		Message:   message,
		Exception: exception,
	}
}

// Time returns the entry timestamp as a time.Time.
func (e Entry) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Matches reports whether q is a case-insensitive substring of the
// entry's tag, message, or exception. A blank query matches everything.
func (e Entry) Matches(q string) bool {
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	if strings.Contains(strings.ToLower(e.Tag), q) {
		return true
	}
	if strings.Contains(strings.ToLower(e.Message), q) {
		return true
	}
	return e.Exception != "" && strings.Contains(strings.ToLower(e.Exception), q)
}
