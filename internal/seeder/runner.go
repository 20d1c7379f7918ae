package seeder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cadosfrit/sensor-events/internal/logging"
	"github.com/cadosfrit/sensor-events/internal/models"
)

// RunnerConfig controls batch submission.
type RunnerConfig struct {
	URL       string
	Strategy  string
	Count     int
	BatchSize int
}

// Runner generates batches and posts them to the ingest endpoint.
type Runner struct {
	generator *Generator
	config    RunnerConfig
	client    *http.Client
	logger    *logging.Logger
}

// NewRunner wires a generator to the ingest endpoint.
func NewRunner(generator *Generator, config RunnerConfig, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{
		generator: generator,
		config:    config,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
	}
}

// Run submits Count events in BatchSize chunks and logs the accumulated
// response tallies.
func (r *Runner) Run(ctx context.Context) error {
	var totals models.IngestResponse

	remaining := r.config.Count
	for remaining > 0 {
		size := r.config.BatchSize
		if size > remaining {
			size = remaining
		}

		response, err := r.sendBatch(ctx, r.generator.Batch(size))
		if err != nil {
			return err
		}

		totals.Accepted += response.Accepted
		totals.Updated += response.Updated
		totals.Deduped += response.Deduped
		totals.Rejected += response.Rejected
		remaining -= size
	}

	r.logger.Info("seeding complete",
		"accepted", totals.Accepted,
		"updated", totals.Updated,
		"deduped", totals.Deduped,
		"rejected", totals.Rejected,
	)
	return nil
}

func (r *Runner) sendBatch(ctx context.Context, batch []*models.Event) (*models.IngestResponse, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch: %w", err)
	}

	url := fmt.Sprintf("%s/events/batch?strategy=%s", r.config.URL, r.config.Strategy)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ingest endpoint returned %s", resp.Status)
	}

	var response models.IngestResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &response, nil
}
