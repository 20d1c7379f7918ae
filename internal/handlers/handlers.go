package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cadosfrit/sensor-events/internal/httputil"
	"github.com/cadosfrit/sensor-events/internal/logging"
	"github.com/cadosfrit/sensor-events/internal/models"
	"github.com/cadosfrit/sensor-events/internal/service"
)

// Handler exposes the ingestion and stats endpoints.
type Handler struct {
	simple      service.Ingestor
	partitioned service.Ingestor
	stats       *service.StatsService
	logger      *logging.Logger
}

// NewHandler wires the two ingestion strategies and the stats service.
func NewHandler(simple, partitioned service.Ingestor, stats *service.StatsService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		simple:      simple,
		partitioned: partitioned,
		stats:       stats,
		logger:      logger,
	}
}

// HealthCheck responds to liveness probes.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// IngestBatch handles POST /events/batch. The strategy query parameter
// selects the ingestion path explicitly: "simple" (default) or
// "partitioned".
func (h *Handler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	var batch []*models.Event
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "malformed batch payload")
		return
	}

	ingestor := h.simple
	switch r.URL.Query().Get("strategy") {
	case "", "simple":
	case "partitioned":
		ingestor = h.partitioned
	default:
		httputil.WriteError(w, http.StatusBadRequest, "unknown strategy: must be simple or partitioned")
		return
	}

	h.logger.DebugContext(r.Context(), "received ingestion batch", "size", len(batch))

	response, err := ingestor.ProcessBatch(r.Context(), batch)
	if err != nil {
		if errors.Is(err, service.ErrEmptyBatch) || errors.Is(err, service.ErrBatchTooLarge) || errors.Is(err, service.ErrMalformedRecord) {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		// A failed telemetry write must never masquerade as a
		// zero-count success.
		h.logger.ErrorContext(r.Context(), "batch processing failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "batch persistence failed")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, response)
}

// MachineStats handles GET /stats?machineId=&start=&end= with RFC 3339
// window bounds.
func (h *Handler) MachineStats(w http.ResponseWriter, r *http.Request) {
	machineID := r.URL.Query().Get("machineId")
	if machineID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "machineId is required")
		return
	}

	start, err := parseTime(r.URL.Query().Get("start"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "start must be an RFC 3339 timestamp")
		return
	}
	end, err := parseTime(r.URL.Query().Get("end"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "end must be an RFC 3339 timestamp")
		return
	}
	if !start.Before(end) {
		httputil.WriteError(w, http.StatusBadRequest, "start must be before end")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, h.stats.MachineStats(r.Context(), machineID, start, end))
}

// TopDefectLines handles GET /stats/top-defect-lines.
func (h *Handler) TopDefectLines(w http.ResponseWriter, r *http.Request) {
	factoryID := r.URL.Query().Get("factoryId")
	if factoryID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "factoryId is required")
		return
	}

	from, err := parseTime(r.URL.Query().Get("from"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "from must be an RFC 3339 timestamp")
		return
	}
	to, err := parseTime(r.URL.Query().Get("to"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "to must be an RFC 3339 timestamp")
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httputil.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
	}

	httputil.WriteJSON(w, http.StatusOK, h.stats.TopDefectLines(r.Context(), factoryID, from, to, limit))
}

func parseTime(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339, raw)
}
