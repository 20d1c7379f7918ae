package repository

import (
	"context"
	"time"

	"github.com/cadosfrit/sensor-events/internal/models"
)

// EventRepository is the persistence collaborator for sensor events.
//
// UpsertBatch must honor the upsert contract per row, atomically:
// no existing row → insert (ACCEPTED); existing row with an identical
// (machineId, eventTime, durationMs, defectCount) tuple → DEDUPED, with the
// stored receivedTime still advanced; any differing field → UPDATED with a
// full overwrite. Implementations must acquire per-row locks in a single
// globally consistent order (sorted by eventId) so concurrent batches
// touching overlapping ids in different orders cannot deadlock.
type EventRepository interface {
	UpsertBatch(ctx context.Context, rows []models.EventRow) (models.UpsertCounts, error)

	// MachineWindow returns the defect sum (sentinel rows contributing 0)
	// and event count for a machine over the half-open window [start, end).
	MachineWindow(ctx context.Context, machineID string, start, end time.Time) (defects, events int64, err error)

	// TopDefectLines aggregates per production line under a factory over
	// [from, to), ordered by raw total defects descending, truncated to limit.
	TopDefectLines(ctx context.Context, factoryID string, from, to time.Time, limit int) ([]models.LineStats, error)

	Close() error
}
