// Package notifier publishes per-batch ingest summaries over NATS so
// downstream monitoring can react without polling the service.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/cadosfrit/sensor-events/internal/logging"
	"github.com/cadosfrit/sensor-events/internal/models"
)

// Subject carries batch result summaries.
const Subject = "sensor.events.ingest.result"

// NATSNotifier implements service.BatchNotifier over a NATS connection.
// Publishing is fire-and-forget: a failed publish is logged, never
// surfaced to the ingest caller.
type NATSNotifier struct {
	conn   *nats.Conn
	logger *logging.Logger
}

// New connects to NATS and returns a notifier.
func New(url, name string, logger *logging.Logger) (*NATSNotifier, error) {
	if logger == nil {
		logger = logging.Default()
	}

	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSNotifier{conn: conn, logger: logger}, nil
}

// BatchProcessed publishes a summary of a processed batch.
func (n *NATSNotifier) BatchProcessed(ctx context.Context, response *models.IngestResponse) {
	payload, err := json.Marshal(response)
	if err != nil {
		n.logger.WarnContext(ctx, "failed to marshal batch summary", "error", err)
		return
	}
	if err := n.conn.Publish(Subject, payload); err != nil {
		n.logger.WarnContext(ctx, "failed to publish batch summary", "error", err)
	}
}

// Close drains and closes the NATS connection.
func (n *NATSNotifier) Close() {
	if err := n.conn.Drain(); err != nil {
		n.logger.Warn("failed to drain NATS connection", "error", err)
	}
}
