package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cadosfrit/sensor-events/internal/models"
)

// PostgresRepository implements EventRepository using PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// UpsertBatch applies the upsert contract to every row in one transaction.
// Rows are processed in ascending event_id order and each existing row is
// locked with SELECT ... FOR UPDATE before classification, so every
// transaction acquires row locks in the same global order and cross-batch
// circular waits are impossible. Read committed isolation suffices; the
// last transaction to commit wins for each id.
func (r *PostgresRepository) UpsertBatch(ctx context.Context, rows []models.EventRow) (models.UpsertCounts, error) {
	var counts models.UpsertCounts
	if len(rows) == 0 {
		return counts, nil
	}

	sorted := make([]models.EventRow, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].EventID < sorted[j].EventID })

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return counts, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, row := range sorted {
		outcome, err := upsertRow(ctx, tx, row)
		if err != nil {
			return models.UpsertCounts{}, fmt.Errorf("failed to upsert event %s: %w", row.EventID, err)
		}
		switch outcome {
		case models.OutcomeAccepted:
			counts.Accepted++
		case models.OutcomeUpdated:
			counts.Updated++
		case models.OutcomeDeduped:
			counts.Deduped++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.UpsertCounts{}, fmt.Errorf("failed to commit batch: %w", err)
	}
	return counts, nil
}

func upsertRow(ctx context.Context, tx pgx.Tx, row models.EventRow) (string, error) {
	const lockQuery = `
		SELECT machine_id, event_time, duration_ms, defect_count
		FROM machine_events
		WHERE event_id = $1
		FOR UPDATE
	`

	var existing models.EventRow
	err := tx.QueryRow(ctx, lockQuery, row.EventID).Scan(
		&existing.MachineID, &existing.EventTime, &existing.DurationMs, &existing.DefectCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		// DO NOTHING settles the race between two transactions inserting
		// the same new id: the loser re-locks the committed row below.
		tag, err := tx.Exec(ctx, `
			INSERT INTO machine_events (event_id, machine_id, event_time, received_time, duration_ms, defect_count)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (event_id) DO NOTHING
		`, row.EventID, row.MachineID, row.EventTime, row.ReceivedTime, row.DurationMs, row.DefectCount)
		if err != nil {
			return "", fmt.Errorf("insert: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return models.OutcomeAccepted, nil
		}
		if err := tx.QueryRow(ctx, lockQuery, row.EventID).Scan(
			&existing.MachineID, &existing.EventTime, &existing.DurationMs, &existing.DefectCount,
		); err != nil {
			return "", fmt.Errorf("relock after insert race: %w", err)
		}
	} else if err != nil {
		return "", fmt.Errorf("lock row: %w", err)
	}

	// Postgres stores timestamps at microsecond precision; compare at that
	// precision so a sub-microsecond difference is not mistaken for an update.
	if existing.MachineID == row.MachineID &&
		existing.EventTime.Equal(row.EventTime.Truncate(time.Microsecond)) &&
		existing.DurationMs == row.DurationMs &&
		existing.DefectCount == row.DefectCount {
		// Duplicate payload: the stored receivedTime is still advanced.
		if _, err := tx.Exec(ctx,
			`UPDATE machine_events SET received_time = $2 WHERE event_id = $1`,
			row.EventID, row.ReceivedTime,
		); err != nil {
			return "", fmt.Errorf("advance received_time: %w", err)
		}
		return models.OutcomeDeduped, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE machine_events
		SET machine_id = $2, event_time = $3, received_time = $4, duration_ms = $5, defect_count = $6
		WHERE event_id = $1
	`, row.EventID, row.MachineID, row.EventTime, row.ReceivedTime, row.DurationMs, row.DefectCount); err != nil {
		return "", fmt.Errorf("overwrite row: %w", err)
	}
	return models.OutcomeUpdated, nil
}

// MachineWindow aggregates defect and event totals for a machine over the
// half-open window [start, end). Sentinel defect counts contribute zero to
// the sum but still count as events.
func (r *PostgresRepository) MachineWindow(ctx context.Context, machineID string, start, end time.Time) (int64, int64, error) {
	const query = `
		SELECT
			COALESCE(SUM(CASE WHEN defect_count = -1 THEN 0 ELSE defect_count END), 0) AS total_defects,
			COUNT(event_id) AS total_events
		FROM machine_events
		WHERE machine_id = $1
		  AND event_time >= $2
		  AND event_time < $3
	`

	var defects, events int64
	if err := r.pool.QueryRow(ctx, query, machineID, start, end).Scan(&defects, &events); err != nil {
		return 0, 0, fmt.Errorf("failed to query machine window: %w", err)
	}
	return defects, events, nil
}

// TopDefectLines ranks a factory's production lines by raw defect totals
// over [from, to). Lines without events in the window still appear with
// zero counts; the limit trims them off the tail of the ranking.
func (r *PostgresRepository) TopDefectLines(ctx context.Context, factoryID string, from, to time.Time, limit int) ([]models.LineStats, error) {
	const query = `
		SELECT
			l.line_id,
			COALESCE(SUM(CASE WHEN e.defect_count = -1 THEN 0 ELSE e.defect_count END), 0) AS total_defects,
			COUNT(e.event_id) AS event_count
		FROM production_lines l
		LEFT JOIN machines m ON m.line_id = l.line_id
		LEFT JOIN machine_events e ON e.machine_id = m.id
			AND e.event_time >= $2
			AND e.event_time < $3
		WHERE l.factory_id = $1
		GROUP BY l.line_id
		ORDER BY total_defects DESC, l.line_id
		LIMIT $4
	`

	rows, err := r.pool.Query(ctx, query, factoryID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top defect lines: %w", err)
	}
	defer rows.Close()

	lines := []models.LineStats{}
	for rows.Next() {
		var line models.LineStats
		if err := rows.Scan(&line.LineID, &line.TotalDefects, &line.EventCount); err != nil {
			return nil, fmt.Errorf("failed to scan line stats: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return lines, nil
}

// Close closes the database connection pool.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
