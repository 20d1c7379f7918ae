package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cadosfrit/sensor-events/internal/models"
)

// MemoryRepository implements EventRepository with in-process maps. It
// honors the same observable upsert contract as the PostgreSQL
// implementation and backs unit tests plus the `database.type: memory`
// configuration.
type MemoryRepository struct {
	mu       sync.RWMutex
	events   map[string]*models.EventRow
	machines map[string]string // machine id -> line id
	lines    map[string]string // line id -> factory id
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		events:   make(map[string]*models.EventRow),
		machines: make(map[string]string),
		lines:    make(map[string]string),
	}
}

// AddLine registers a production line under a factory.
func (r *MemoryRepository) AddLine(lineID, factoryID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[lineID] = factoryID
}

// AddMachine registers a machine under a production line.
func (r *MemoryRepository) AddMachine(machineID, lineID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.machines[machineID] = lineID
}

// UpsertBatch applies the upsert contract under a single lock, which makes
// each batch atomic and trivially free of cross-batch lock inversions.
// Rows are still processed in ascending event_id order so outcomes are
// deterministic for a given batch.
func (r *MemoryRepository) UpsertBatch(ctx context.Context, rows []models.EventRow) (models.UpsertCounts, error) {
	var counts models.UpsertCounts
	if len(rows) == 0 {
		return counts, nil
	}
	if err := ctx.Err(); err != nil {
		return counts, err
	}

	sorted := make([]models.EventRow, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].EventID < sorted[j].EventID })

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, row := range sorted {
		row := row
		existing, ok := r.events[row.EventID]
		switch {
		case !ok:
			counts.Accepted++
		case existing.MachineID == row.MachineID &&
			existing.EventTime.Equal(row.EventTime) &&
			existing.DurationMs == row.DurationMs &&
			existing.DefectCount == row.DefectCount:
			counts.Deduped++
		default:
			counts.Updated++
		}
		// Full overwrite either way; for duplicates this is exactly the
		// receivedTime advance the contract requires.
		r.events[row.EventID] = &row
	}

	return counts, nil
}

// MachineWindow aggregates over the half-open window [start, end).
func (r *MemoryRepository) MachineWindow(ctx context.Context, machineID string, start, end time.Time) (int64, int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var defects, events int64
	for _, row := range r.events {
		if row.MachineID != machineID {
			continue
		}
		if row.EventTime.Before(start) || !row.EventTime.Before(end) {
			continue
		}
		events++
		if row.DefectCount != models.SentinelDefectCount {
			defects += int64(row.DefectCount)
		}
	}
	return defects, events, nil
}

// TopDefectLines ranks a factory's lines by raw defect totals over [from, to).
func (r *MemoryRepository) TopDefectLines(ctx context.Context, factoryID string, from, to time.Time, limit int) ([]models.LineStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	byLine := make(map[string]*models.LineStats)
	for lineID, factory := range r.lines {
		if factory == factoryID {
			byLine[lineID] = &models.LineStats{LineID: lineID}
		}
	}

	for _, row := range r.events {
		lineID, ok := r.machines[row.MachineID]
		if !ok {
			continue
		}
		stats, ok := byLine[lineID]
		if !ok {
			continue
		}
		if row.EventTime.Before(from) || !row.EventTime.Before(to) {
			continue
		}
		stats.EventCount++
		if row.DefectCount != models.SentinelDefectCount {
			stats.TotalDefects += int64(row.DefectCount)
		}
	}

	lines := make([]models.LineStats, 0, len(byLine))
	for _, stats := range byLine {
		lines = append(lines, *stats)
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].TotalDefects != lines[j].TotalDefects {
			return lines[i].TotalDefects > lines[j].TotalDefects
		}
		return lines[i].LineID < lines[j].LineID
	})
	if len(lines) > limit {
		lines = lines[:limit]
	}
	return lines, nil
}

// EventCount reports the number of distinct stored event ids.
func (r *MemoryRepository) EventCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

// GetEvent returns a copy of the stored row for an event id, if present.
func (r *MemoryRepository) GetEvent(eventID string) (models.EventRow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.events[eventID]
	if !ok {
		return models.EventRow{}, false
	}
	return *row, true
}

// Close releases nothing but satisfies EventRepository.
func (r *MemoryRepository) Close() error {
	return nil
}
