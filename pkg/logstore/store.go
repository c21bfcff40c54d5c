// Package logstore implements the application's in-memory structured
// log store: a bounded, concurrently writable entry sequence with
// severity filtering, search, reactive snapshots, and asynchronous
// JSON persistence.
package logstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/frontiercc/campfire/internal/metrics"
)

const (
	// maxEntries is the in-memory capacity ceiling.
	maxEntries = 1000
	// rotateKeep is the size rotation trims down to.
	rotateKeep = 500

	// DefaultSnapshotFile is the filename used for the persisted snapshot.
	DefaultSnapshotFile = "campfire_logs.json"

	storeTag = "LogStore"
)

// Persister is the slice of the persistence adapter the store uses for
// snapshotting. *filestore.Store satisfies it.
type Persister interface {
	SaveJSON(ctx context.Context, name, data string) bool
	LoadJSON(ctx context.Context, name string) (string, bool)
	FileExists(ctx context.Context, name string) bool
	DeleteFile(ctx context.Context, name string) bool
}

// Archiver receives entries evicted by rotation.
type Archiver interface {
	Archive(entries []Entry)
}

// Options configures a Store.
type Options struct {
	// Persister backs snapshot load/save. Required.
	Persister Persister
	// SnapshotFile overrides DefaultSnapshotFile.
	SnapshotFile string
	// Archiver, when set, receives entries dropped by rotation.
	Archiver Archiver
}

// Store is the single authoritative log destination for the process.
// Log and its level wrappers are safe to call from any goroutine and
// never block on I/O; persistence runs on a store-owned worker.
type Store struct {
	mu       sync.RWMutex
	entries  []Entry
	minLevel Level
	subs     map[int]chan []Entry
	nextSub  int

	persister Persister
	archiver  Archiver
	snapshot  string

	flushCh   chan struct{}
	clearCh   chan struct{}
	archiveCh chan []Entry
	loaded    chan struct{}
	done      chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	now func() time.Time
}

// New creates a store and starts its persistence worker. The worker
// first attempts to restore a previously persisted snapshot; until
// that completes the visible sequence holds only entries logged since
// startup.
func New(opts Options) *Store {
	name := opts.SnapshotFile
	if name == "" {
		name = DefaultSnapshotFile
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		subs:      make(map[int]chan []Entry),
		persister: opts.Persister,
		archiver:  opts.Archiver,
		snapshot:  name,
		flushCh:   make(chan struct{}, 1),
		clearCh:   make(chan struct{}, 1),
		archiveCh: make(chan []Entry, 4),
		loaded:    make(chan struct{}),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
	}

	go s.run()

	return s
}

// Log appends one entry. It never fails visibly to the caller: storage
// trouble surfaces later as ERROR entries in this same store.
func (s *Store) Log(level Level, tag, message string, cause error) {
	exception := ""
	if cause != nil {
		exception = cause.Error()
	}
	s.append(newEntryAt(s.now(), level, tag, message, exception), true)
}

// Ingest appends a prebuilt entry, preserving its ID and timestamp.
// Ingestion paths (line collectors) use this to keep original
// timestamps; everything else should use Log.
func (s *Store) Ingest(e Entry) {
	s.append(e, true)
}

// Debug logs a DEBUG entry.
func (s *Store) Debug(tag, message string) { s.Log(LevelDebug, tag, message, nil) }

// Info logs an INFO entry.
func (s *Store) Info(tag, message string) { s.Log(LevelInfo, tag, message, nil) }

// Warning logs a WARNING entry.
func (s *Store) Warning(tag, message string) { s.Log(LevelWarning, tag, message, nil) }

// Error logs an ERROR entry with an optional cause.
func (s *Store) Error(tag, message string, cause error) {
	s.Log(LevelError, tag, message, cause)
}

// append adds an entry, rotates if the ceiling was crossed, publishes
// the new visible snapshot, and (when schedule is set) signals the
// worker to persist. Failures raised from inside the worker append
// with schedule=false so a failing disk cannot loop the pipeline.
func (s *Store) append(e Entry, schedule bool) {
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.rotateLocked()
	snap := s.visibleLocked()
	s.mu.Unlock()

	metrics.EntriesTotal.WithLabelValues(e.Level.String()).Inc()
	s.publish(snap)
	if schedule {
		s.requestFlush()
	}
}

// rotateLocked trims the sequence to rotateKeep entries once it
// exceeds maxEntries, then appends one INFO entry announcing the drop.
// The announcement counts toward the post-rotation size.
func (s *Store) rotateLocked() {
	if len(s.entries) <= maxEntries {
		return
	}
	dropped := len(s.entries) - rotateKeep

	evicted := make([]Entry, dropped)
	copy(evicted, s.entries[:dropped])

	kept := make([]Entry, rotateKeep, rotateKeep+1)
	copy(kept, s.entries[dropped:])
	s.entries = append(kept, newEntryAt(s.now(), LevelInfo, storeTag,
		fmt.Sprintf("Rotated log: dropped %d oldest entries", dropped), ""))

	metrics.RotationsTotal.Inc()
	metrics.RotatedEntriesTotal.Add(float64(dropped))

	if s.archiver != nil {
		select {
		case s.archiveCh <- evicted:
		default:
			// Archive backlog full; rotation must not block writers.
		}
	}
}

// SetMinimumLevel changes the visibility filter and republishes the
// visible sequence. Stored entries are unaffected.
func (s *Store) SetMinimumLevel(level Level) {
	s.mu.Lock()
	s.minLevel = level
	snap := s.visibleLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// MinimumLevel returns the current visibility filter.
func (s *Store) MinimumLevel() Level {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.minLevel
}

// Entries returns a copy of the full stored sequence.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Visible returns a copy of the filtered sequence, as published to
// subscribers.
func (s *Store) Visible() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visibleLocked()
}

// Search returns all stored entries whose tag, message, or exception
// contains q, case-insensitively. A blank q returns everything. The
// search runs over the full sequence, not the filtered view.
func (s *Store) Search(q string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Matches(q) {
			out = append(out, e)
		}
	}
	return out
}

// ByLevel returns all stored entries with exactly the given level.
func (s *Store) ByLevel(level Level) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Statistics counts stored entries per level over the full sequence.
// All four levels are present in the result, zero-valued if unused.
func (s *Store) Statistics() map[Level]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := make(map[Level]int, len(Levels))
	for _, l := range Levels {
		stats[l] = 0
	}
	for _, e := range s.entries {
		stats[e.Level]++
	}
	return stats
}

// ExportJSON serializes the full stored sequence. On encoding failure
// it logs the failure and returns an empty JSON array instead of
// failing the call.
func (s *Store) ExportJSON() string {
	s.mu.RLock()
	entries := make([]Entry, len(s.entries))
	copy(entries, s.entries)
	s.mu.RUnlock()

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		s.Error(storeTag, "failed to export log entries", err)
		return "[]"
	}
	return string(data)
}

// Clear empties the in-memory sequence, publishes an empty view, and
// asks the worker to delete the persisted snapshot. A deletion failure
// is logged through Error, which repopulates the just-cleared store
// with one entry; that is long-standing observable behavior and is
// covered by tests.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = nil
	snap := s.visibleLocked()
	s.mu.Unlock()
	s.publish(snap)

	select {
	case s.clearCh <- struct{}{}:
	default:
	}
}

// Subscribe registers a listener for visible-sequence snapshots. The
// current snapshot is delivered immediately; afterwards each mutation
// delivers a fresh immutable snapshot, with intermediate snapshots
// dropped in favor of the latest when the listener lags. The returned
// cancel func unregisters the listener.
func (s *Store) Subscribe() (<-chan []Entry, func()) {
	ch := make(chan []Entry, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	snap := s.visibleLocked()
	s.mu.Unlock()

	ch <- snap

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
	return ch, cancel
}

// Ready is closed once the initial snapshot load has completed,
// whether or not anything was restored.
func (s *Store) Ready() <-chan struct{} {
	return s.loaded
}

// Shutdown stops the worker and writes one final snapshot. After it
// returns no further background work runs; subsequent Log calls still
// append in memory but are no longer persisted.
func (s *Store) Shutdown(ctx context.Context) {
	s.cancel()
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	s.flush(ctx)
}

// visibleLocked computes a fresh copy of the filtered sequence.
func (s *Store) visibleLocked() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Level >= s.minLevel {
			out = append(out, e)
		}
	}
	return out
}

// publish delivers a snapshot to every subscriber without blocking.
// A full subscriber channel is drained first so the latest snapshot
// wins over a stale undelivered one.
func (s *Store) publish(snap []Entry) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (s *Store) requestFlush() {
	select {
	case s.flushCh <- struct{}{}:
	default:
		// A flush is already pending; it will serialize the latest state.
	}
}

// run is the persistence worker. It restores the snapshot once, then
// serves coalesced flush requests, snapshot deletions, and archive
// hand-offs until Shutdown cancels it.
func (s *Store) run() {
	defer close(s.done)

	s.restore()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.flushCh:
			s.flush(s.ctx)
		case <-s.clearCh:
			s.deleteSnapshot()
		case batch := <-s.archiveCh:
			s.archiver.Archive(batch)
			metrics.ArchivedEntriesTotal.Add(float64(len(batch)))
		}
	}
}

// restore loads the persisted snapshot, prepending restored entries to
// anything logged since startup (restored entries are older).
func (s *Store) restore() {
	defer close(s.loaded)

	if !s.persister.FileExists(s.ctx, s.snapshot) {
		s.append(newEntryAt(s.now(), LevelDebug, storeTag,
			"no persisted log snapshot found", ""), false)
		return
	}

	data, ok := s.persister.LoadJSON(s.ctx, s.snapshot)
	if !ok {
		s.append(newEntryAt(s.now(), LevelError, storeTag,
			"failed to load persisted log snapshot", ""), false)
		return
	}

	var restored []Entry
	if err := json.Unmarshal([]byte(data), &restored); err != nil {
		s.append(newEntryAt(s.now(), LevelError, storeTag,
			"failed to decode persisted log snapshot", err.Error()), false)
		return
	}

	s.mu.Lock()
	s.entries = append(restored, s.entries...)
	if len(s.entries) > maxEntries {
		s.entries = s.entries[len(s.entries)-maxEntries:]
	}
	snap := s.visibleLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// flush serializes the current full sequence and overwrites the
// snapshot file. Each flush writes the state at the time it runs, so
// under concurrent scheduling the last write to complete wins.
func (s *Store) flush(ctx context.Context) {
	s.mu.RLock()
	entries := make([]Entry, len(s.entries))
	copy(entries, s.entries)
	s.mu.RUnlock()

	metrics.SnapshotFlushesTotal.Inc()

	data, err := json.Marshal(entries)
	if err != nil {
		metrics.SnapshotFlushFailuresTotal.Inc()
		s.append(newEntryAt(s.now(), LevelError, storeTag,
			"failed to encode log snapshot", err.Error()), false)
		return
	}
	if !s.persister.SaveJSON(ctx, s.snapshot, string(data)) {
		metrics.SnapshotFlushFailuresTotal.Inc()
		s.append(newEntryAt(s.now(), LevelError, storeTag,
			"failed to persist log snapshot", ""), false)
	}
}

// deleteSnapshot removes the persisted snapshot after a Clear. A
// missing file is treated as success; an actual deletion failure goes
// through the public Error path, which re-appends and re-persists.
func (s *Store) deleteSnapshot() {
	if !s.persister.FileExists(s.ctx, s.snapshot) {
		return
	}
	if !s.persister.DeleteFile(s.ctx, s.snapshot) {
		s.Error(storeTag, "failed to delete persisted log snapshot", nil)
	}
}
