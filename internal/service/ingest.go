package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cadosfrit/sensor-events/internal/logging"
	"github.com/cadosfrit/sensor-events/internal/metrics"
	"github.com/cadosfrit/sensor-events/internal/models"
	"github.com/cadosfrit/sensor-events/internal/pipeline"
	"github.com/cadosfrit/sensor-events/internal/repository"
	"github.com/cadosfrit/sensor-events/internal/validator"
)

// DefaultMaxBatchSize bounds worst-case batch latency.
const DefaultMaxBatchSize = 10000

var (
	// ErrEmptyBatch rejects a request with no events before any per-event work.
	ErrEmptyBatch = errors.New("batch is empty")

	// ErrBatchTooLarge rejects an oversized request before any per-event work.
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")

	// ErrMalformedRecord rejects the whole request when any record is nil
	// or lacks a non-blank eventId and machineId.
	ErrMalformedRecord = errors.New("batch contains a malformed record")
)

// BatchNotifier receives a summary of every successfully processed batch.
// Implementations must be safe for concurrent use; a nil notifier disables
// notification.
type BatchNotifier interface {
	BatchProcessed(ctx context.Context, response *models.IngestResponse)
}

// Ingestor processes one submitted batch end to end. The two
// implementations share preprocessing and validation and differ only in
// how validated events are routed to the persistence upsert contract.
type Ingestor interface {
	ProcessBatch(ctx context.Context, batch []*models.Event) (*models.IngestResponse, error)
}

type ingestCore struct {
	repo         repository.EventRepository
	chain        *validator.Chain
	logger       *logging.Logger
	notifier     BatchNotifier
	maxBatchSize int
}

func newIngestCore(repo repository.EventRepository, chain *validator.Chain, logger *logging.Logger, notifier BatchNotifier, maxBatchSize int) ingestCore {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	if logger == nil {
		logger = logging.Default()
	}
	return ingestCore{
		repo:         repo,
		chain:        chain,
		logger:       logger,
		notifier:     notifier,
		maxBatchSize: maxBatchSize,
	}
}

// checkEnvelope enforces batch-level preconditions; a violation fails the
// whole request with nothing committed. Every record must carry a
// non-blank eventId and machineId; a nil or blank record is fatal to the
// request, not a per-event rejection.
func (c *ingestCore) checkEnvelope(batch []*models.Event) error {
	if len(batch) == 0 {
		return ErrEmptyBatch
	}
	if len(batch) > c.maxBatchSize {
		return fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(batch), c.maxBatchSize)
	}
	for i, event := range batch {
		if event == nil {
			return fmt.Errorf("%w: record %d is null", ErrMalformedRecord, i)
		}
		if strings.TrimSpace(event.EventID) == "" {
			return fmt.Errorf("%w: record %d has a blank eventId", ErrMalformedRecord, i)
		}
		if strings.TrimSpace(event.MachineID) == "" {
			return fmt.Errorf("%w: record %d has a blank machineId", ErrMalformedRecord, i)
		}
	}
	return nil
}

// validate runs the chain over the unique set, splitting it into events
// that proceed to persistence and per-event rejections.
func (c *ingestCore) validate(events []*models.Event, now time.Time) ([]*models.Event, []models.Rejection) {
	valid := make([]*models.Event, 0, len(events))
	rejections := make([]models.Rejection, 0)

	for _, event := range events {
		if reason := c.chain.Validate(event, now); reason != "" {
			rejections = append(rejections, models.Rejection{EventID: event.EventID, Reason: reason})
			metrics.Rejections.WithLabelValues(reason).Inc()
			continue
		}
		valid = append(valid, event)
	}
	return valid, rejections
}

// toRows resolves events into persistence rows, stamping every row with the
// server's wall clock. receivedTime is assigned here, at persistence time,
// and never taken from the client.
func toRows(events []*models.Event, receivedTime time.Time) []models.EventRow {
	rows := make([]models.EventRow, 0, len(events))
	for _, event := range events {
		var duration int64
		if event.DurationMs != nil {
			duration = *event.DurationMs
		}
		rows = append(rows, models.EventRow{
			EventID:      event.EventID,
			MachineID:    event.MachineID,
			EventTime:    event.EventTime,
			ReceivedTime: receivedTime,
			DurationMs:   duration,
			DefectCount:  event.DefectCount,
		})
	}
	return rows
}

func (c *ingestCore) buildResponse(counts models.UpsertCounts, pre pipeline.PreprocessResult, rejections []models.Rejection) *models.IngestResponse {
	// Intra-batch repeats were collapsed before persistence, so their
	// classification is folded back into the final tallies here.
	counts.Updated += pre.IntraUpdates
	counts.Deduped += pre.IntraDedups

	metrics.EventOutcomes.WithLabelValues(models.OutcomeAccepted).Add(float64(counts.Accepted))
	metrics.EventOutcomes.WithLabelValues(models.OutcomeUpdated).Add(float64(counts.Updated))
	metrics.EventOutcomes.WithLabelValues(models.OutcomeDeduped).Add(float64(counts.Deduped))

	return &models.IngestResponse{
		Accepted:   counts.Accepted,
		Updated:    counts.Updated,
		Deduped:    counts.Deduped,
		Rejected:   len(rejections),
		Rejections: rejections,
	}
}

func (c *ingestCore) notify(ctx context.Context, response *models.IngestResponse) {
	if c.notifier != nil {
		c.notifier.BatchProcessed(ctx, response)
	}
}

// SimpleIngestor routes the whole validated set through a single upsert
// call. It is the default strategy.
type SimpleIngestor struct {
	ingestCore
}

// NewSimpleIngestor constructs the single-path ingestion strategy.
func NewSimpleIngestor(repo repository.EventRepository, chain *validator.Chain, logger *logging.Logger, notifier BatchNotifier, maxBatchSize int) *SimpleIngestor {
	return &SimpleIngestor{newIngestCore(repo, chain, logger, notifier, maxBatchSize)}
}

// ProcessBatch preprocesses, validates, then persists the surviving events
// with one upsert call.
func (s *SimpleIngestor) ProcessBatch(ctx context.Context, batch []*models.Event) (*models.IngestResponse, error) {
	started := time.Now()
	if err := s.checkEnvelope(batch); err != nil {
		metrics.BatchesTotal.WithLabelValues("simple", "rejected").Inc()
		return nil, err
	}

	pre := pipeline.Preprocess(batch)
	valid, rejections := s.validate(pre.Unique, time.Now())

	var counts models.UpsertCounts
	if len(valid) > 0 {
		upsertStart := time.Now()
		var err error
		counts, err = s.repo.UpsertBatch(ctx, toRows(valid, time.Now()))
		metrics.UpsertDuration.WithLabelValues("all").Observe(time.Since(upsertStart).Seconds())
		if err != nil {
			metrics.BatchesTotal.WithLabelValues("simple", "error").Inc()
			return nil, fmt.Errorf("batch persistence failed: %w", err)
		}
	}

	response := s.buildResponse(counts, pre, rejections)
	s.logger.InfoContext(ctx, "batch processed",
		"strategy", "simple",
		"accepted", response.Accepted,
		"updated", response.Updated,
		"deduped", response.Deduped,
		"rejected", response.Rejected,
	)
	metrics.BatchesTotal.WithLabelValues("simple", "ok").Inc()
	metrics.BatchDuration.WithLabelValues("simple").Observe(time.Since(started).Seconds())
	s.notify(ctx, response)
	return response, nil
}

// PartitionedIngestor splits validated events into a bulk partition (ids
// unique within the original batch) and a contention partition (ids that
// repeated), persisting the two concurrently. Isolating rewritten rows on
// their own path keeps row-lock ordering deterministic while the
// uncontended majority gets batch throughput.
type PartitionedIngestor struct {
	ingestCore
}

// NewPartitionedIngestor constructs the throughput-optimized strategy.
func NewPartitionedIngestor(repo repository.EventRepository, chain *validator.Chain, logger *logging.Logger, notifier BatchNotifier, maxBatchSize int) *PartitionedIngestor {
	return &PartitionedIngestor{newIngestCore(repo, chain, logger, notifier, maxBatchSize)}
}

// ProcessBatch preprocesses, validates, splits, then persists each partition
// concurrently. Relative execution order of the partitions is unconstrained;
// only the summed counts matter.
func (s *PartitionedIngestor) ProcessBatch(ctx context.Context, batch []*models.Event) (*models.IngestResponse, error) {
	started := time.Now()
	if err := s.checkEnvelope(batch); err != nil {
		metrics.BatchesTotal.WithLabelValues("partitioned", "rejected").Inc()
		return nil, err
	}

	pre := pipeline.Preprocess(batch)
	valid, rejections := s.validate(pre.Unique, time.Now())

	var counts models.UpsertCounts
	if len(valid) > 0 {
		split := pipeline.Split(valid, pre.Multiplicity)
		receivedTime := time.Now()

		var wg sync.WaitGroup
		var bulkCounts, contentionCounts models.UpsertCounts
		var bulkErr, contentErr error

		wg.Add(2)
		go func() {
			defer wg.Done()
			bulkCounts, bulkErr = s.persistPartition(ctx, "bulk", split.Bulk, receivedTime)
		}()
		go func() {
			defer wg.Done()
			contentionCounts, contentErr = s.persistPartition(ctx, "contention", split.Contention, receivedTime)
		}()
		wg.Wait()

		if err := errors.Join(bulkErr, contentErr); err != nil {
			metrics.BatchesTotal.WithLabelValues("partitioned", "error").Inc()
			return nil, fmt.Errorf("batch persistence failed: %w", err)
		}

		counts = bulkCounts
		counts.Add(contentionCounts)
	}

	response := s.buildResponse(counts, pre, rejections)
	s.logger.InfoContext(ctx, "batch processed",
		"strategy", "partitioned",
		"accepted", response.Accepted,
		"updated", response.Updated,
		"deduped", response.Deduped,
		"rejected", response.Rejected,
	)
	metrics.BatchesTotal.WithLabelValues("partitioned", "ok").Inc()
	metrics.BatchDuration.WithLabelValues("partitioned").Observe(time.Since(started).Seconds())
	s.notify(ctx, response)
	return response, nil
}

func (s *PartitionedIngestor) persistPartition(ctx context.Context, partition string, events []*models.Event, receivedTime time.Time) (models.UpsertCounts, error) {
	if len(events) == 0 {
		return models.UpsertCounts{}, nil
	}
	started := time.Now()
	counts, err := s.repo.UpsertBatch(ctx, toRows(events, receivedTime))
	metrics.UpsertDuration.WithLabelValues(partition).Observe(time.Since(started).Seconds())
	if err != nil {
		return models.UpsertCounts{}, fmt.Errorf("%s partition: %w", partition, err)
	}
	return counts, nil
}
