// Package metrics defines the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EntriesTotal counts appended log entries by level name.
	EntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campfire_log_entries_total",
		Help: "Log entries appended to the in-memory store, by level.",
	}, []string{"level"})

	// RotationsTotal counts log rotations.
	RotationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campfire_log_rotations_total",
		Help: "Rotations performed on the in-memory store.",
	})

	// RotatedEntriesTotal counts entries evicted by rotation.
	RotatedEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campfire_log_rotated_entries_total",
		Help: "Entries dropped from the in-memory store by rotation.",
	})

	// SnapshotFlushesTotal counts snapshot writes attempted by the
	// persistence worker.
	SnapshotFlushesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campfire_snapshot_flushes_total",
		Help: "Snapshot writes attempted by the persistence worker.",
	})

	// SnapshotFlushFailuresTotal counts failed snapshot writes.
	SnapshotFlushFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campfire_snapshot_flush_failures_total",
		Help: "Snapshot writes that failed.",
	})

	// ArchivedEntriesTotal counts rotated entries handed to the archive.
	ArchivedEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campfire_archived_entries_total",
		Help: "Rotated entries written to the archive.",
	})
)
