// Package archive keeps entries evicted from the in-memory log store
// by rotation. It is backed by Badger so long sessions can page weeks
// of rotated history without growing the live store.
package archive

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/frontiercc/campfire/pkg/logstore"
)

const entryPrefix = "entry:"

// Filter selects archived entries. *query.Query satisfies it.
type Filter interface {
	Match(entry logstore.Entry) bool
}

// Config holds archive configuration
type Config struct {
	DBPath        string
	RetentionSize int64 // in bytes, 0 disables size-based retention
	RetentionDays int   // 0 disables age-based retention
}

// Store is a Badger-backed archive of rotated log entries.
type Store struct {
	db            *badger.DB
	retentionSize int64
	retentionDays int
	log           *slog.Logger

	cleanupEvery int
	writeCount   int
	cleanupChan  chan struct{}
	doneChan     chan struct{}
}

// Open creates the archive directory if needed and opens the Badger
// database under it.
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.DBPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	opts := badger.DefaultOptions(cfg.DBPath)
	opts.Logger = nil // Disable badger logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive db: %w", err)
	}

	s := &Store{
		db:            db,
		retentionSize: cfg.RetentionSize,
		retentionDays: cfg.RetentionDays,
		log:           logger,
		cleanupEvery:  1000, // Run retention every 1000 archived entries
		cleanupChan:   make(chan struct{}, 1),
		doneChan:      make(chan struct{}),
	}

	if err := s.enforceRetention(); err != nil {
		return nil, fmt.Errorf("failed to enforce retention: %w", err)
	}

	go s.cleanupWorker()

	return s, nil
}

// Archive stores a batch of rotated entries. It satisfies
// logstore.Archiver. Failures are logged and the batch is dropped;
// the archive is best-effort by design.
func (s *Store) Archive(entries []logstore.Entry) {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, e := range entries {
			data, err := json.Marshal(e)
			if err != nil {
				return err
			}
			key := fmt.Sprintf("%s%013d:%s", entryPrefix, e.Timestamp, e.ID)
			if err := txn.Set([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Error("failed to archive rotated entries", "count", len(entries), "error", err)
		return
	}

	s.writeCount += len(entries)
	if s.writeCount >= s.cleanupEvery {
		s.writeCount = 0
		select {
		case s.cleanupChan <- struct{}{}:
		default:
			// Cleanup already pending, skip
		}
	}
}

// Query retrieves archived entries matching filter, oldest first,
// returning the requested page and the total match count.
func (s *Store) Query(filter Filter, limit, offset int) ([]logstore.Entry, int, error) {
	var entries []logstore.Entry
	total := 0
	skipped := 0

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(entryPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var e logstore.Entry
				if err := json.Unmarshal(val, &e); err != nil {
					return nil // Skip invalid entries
				}
				if filter != nil && !filter.Match(e) {
					return nil
				}
				total++
				if skipped < offset {
					skipped++
					return nil
				}
				if len(entries) < limit {
					entries = append(entries, e)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	return entries, total, err
}

// Stats summarizes the archive contents.
type Stats struct {
	TotalEntries int            `json:"total_entries"`
	DBSizeBytes  int64          `json:"db_size_bytes"`
	Levels       map[string]int `json:"levels"`
}

// GetStats returns archive statistics.
func (s *Store) GetStats() (Stats, error) {
	stats := Stats{Levels: make(map[string]int)}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(entryPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var e logstore.Entry
				if err := json.Unmarshal(val, &e); err != nil {
					return nil
				}
				stats.TotalEntries++
				stats.Levels[e.Level.String()]++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	lsm, vlog := s.db.Size()
	stats.DBSizeBytes = lsm + vlog
	return stats, nil
}

// enforceRetention removes old entries based on the retention policy.
func (s *Store) enforceRetention() error {
	if s.retentionSize > 0 {
		lsm, vlog := s.db.Size()
		if lsm+vlog > s.retentionSize {
			// Delete 20% beyond the overage to leave headroom
			target := int(float64(lsm+vlog-s.retentionSize) * 1.2)
			if err := s.deleteOldestBytes(target); err != nil {
				return err
			}
		}
	}

	if s.retentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
		if _, err := s.DeleteOlderThan(cutoff); err != nil {
			return err
		}
	}

	return nil
}

// deleteOldestBytes deletes approximately targetBytes worth of the
// oldest archived entries.
func (s *Store) deleteOldestBytes(targetBytes int) error {
	var keysToDelete [][]byte
	deletedSize := 0

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(entryPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			keysToDelete = append(keysToDelete, item.KeyCopy(nil))
			deletedSize += int(item.EstimatedSize())
			if deletedSize >= targetBytes {
				break
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.deleteKeys(keysToDelete)
}

// DeleteOlderThan deletes archived entries older than cutoff and
// returns the number removed.
func (s *Store) DeleteOlderThan(cutoff time.Time) (int, error) {
	cutoffMs := cutoff.UnixMilli()
	var keysToDelete [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(entryPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			// Key format: entry:{timestamp_ms}:{id}
			var ts int64
			if _, err := fmt.Sscanf(key[len(entryPrefix):], "%d:", &ts); err != nil {
				continue
			}
			if ts < cutoffMs {
				keysToDelete = append(keysToDelete, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(keysToDelete), s.deleteKeys(keysToDelete)
}

// DeleteAll removes every archived entry and returns the count.
func (s *Store) DeleteAll() (int, error) {
	var keysToDelete [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(entryPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keysToDelete = append(keysToDelete, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(keysToDelete), s.deleteKeys(keysToDelete)
}

func (s *Store) deleteKeys(keys [][]byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close stops the cleanup worker and closes the database.
func (s *Store) Close() error {
	close(s.doneChan)
	return s.db.Close()
}

// cleanupWorker runs in the background and handles retention requests.
func (s *Store) cleanupWorker() {
	for {
		select {
		case <-s.cleanupChan:
			if err := s.enforceRetention(); err != nil {
				s.log.Error("archive retention failed", "error", err)
			}
		case <-s.doneChan:
			return
		}
	}
}
