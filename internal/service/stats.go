package service

import (
	"context"
	"math"
	"time"

	"github.com/cadosfrit/sensor-events/internal/logging"
	"github.com/cadosfrit/sensor-events/internal/metrics"
	"github.com/cadosfrit/sensor-events/internal/models"
	"github.com/cadosfrit/sensor-events/internal/repository"
)

// warningDefectRate is the defects-per-hour threshold at which a machine
// stops being reported as Healthy.
const warningDefectRate = 2.0

// StatsCache caches machine stats on the dashboard read path. A nil cache
// disables caching.
type StatsCache interface {
	Get(ctx context.Context, machineID string, start, end time.Time) (*models.MachineStats, bool)
	Set(ctx context.Context, stats *models.MachineStats)
}

// StatsService computes windowed aggregate statistics from stored events.
// It deliberately fails open: this is a monitoring read path, so internal
// failures yield a neutral zero-valued result instead of an error.
type StatsService struct {
	repo   repository.EventRepository
	cache  StatsCache
	logger *logging.Logger
}

// NewStatsService constructs the aggregator. cache may be nil.
func NewStatsService(repo repository.EventRepository, cache StatsCache, logger *logging.Logger) *StatsService {
	if logger == nil {
		logger = logging.Default()
	}
	return &StatsService{repo: repo, cache: cache, logger: logger}
}

// MachineStats returns windowed stats for one machine over the half-open
// window [start, end). The caller guarantees start < end.
func (s *StatsService) MachineStats(ctx context.Context, machineID string, start, end time.Time) *models.MachineStats {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, machineID, start, end); ok {
			metrics.StatsCacheHits.WithLabelValues("hit").Inc()
			return cached
		}
		metrics.StatsCacheHits.WithLabelValues("miss").Inc()
	}

	defects, events, err := s.repo.MachineWindow(ctx, machineID, start, end)
	if err != nil {
		s.logger.WarnContext(ctx, "machine stats query failed, returning neutral result",
			"machine_id", machineID, "error", err)
		defects, events = 0, 0
	}

	windowHours := math.Max(0, end.Sub(start).Seconds()) / 3600
	rate := 0.0
	if windowHours > 0 {
		rate = float64(defects) / windowHours
	}
	rate = roundTwoDecimals(rate)

	status := models.StatusHealthy
	if rate >= warningDefectRate {
		status = models.StatusWarning
	}

	stats := &models.MachineStats{
		MachineID:     machineID,
		Start:         start,
		End:           end,
		EventsCount:   events,
		DefectsCount:  defects,
		AvgDefectRate: rate,
		Status:        status,
	}
	if s.cache != nil && err == nil {
		s.cache.Set(ctx, stats)
	}
	return stats
}

// TopDefectLines ranks a factory's production lines by raw defect totals
// over [from, to), truncated to limit. The caller guarantees limit > 0.
// The result is never nil.
func (s *StatsService) TopDefectLines(ctx context.Context, factoryID string, from, to time.Time, limit int) []models.LineStats {
	lines, err := s.repo.TopDefectLines(ctx, factoryID, from, to, limit)
	if err != nil {
		s.logger.WarnContext(ctx, "top defect lines query failed, returning empty result",
			"factory_id", factoryID, "error", err)
		return []models.LineStats{}
	}
	if lines == nil {
		lines = []models.LineStats{}
	}

	for i := range lines {
		if lines[i].EventCount > 0 {
			lines[i].DefectsPercent = roundTwoDecimals(float64(lines[i].TotalDefects) * 100 / float64(lines[i].EventCount))
		} else {
			lines[i].DefectsPercent = 0
		}
	}
	return lines
}

// roundTwoDecimals rounds half-up to two decimal places and normalizes
// NaN and infinities to zero.
func roundTwoDecimals(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return math.Round(value*100) / 100
}
