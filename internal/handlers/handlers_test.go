package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadosfrit/sensor-events/internal/handlers"
	"github.com/cadosfrit/sensor-events/internal/models"
	"github.com/cadosfrit/sensor-events/internal/repository"
	"github.com/cadosfrit/sensor-events/internal/server"
	"github.com/cadosfrit/sensor-events/internal/service"
	"github.com/cadosfrit/sensor-events/internal/validator"
)

func newServer(t *testing.T) (*httptest.Server, *repository.MemoryRepository) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	chain := validator.Default()
	handler := handlers.NewHandler(
		service.NewSimpleIngestor(repo, chain, nil, nil, 0),
		service.NewPartitionedIngestor(repo, chain, nil, nil, 0),
		service.NewStatsService(repo, nil, nil),
		nil,
	)
	srv := httptest.NewServer(server.NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv, repo
}

func postBatch(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func batchJSON(t *testing.T, events []*models.Event) string {
	t.Helper()
	data, err := json.Marshal(events)
	require.NoError(t, err)
	return string(data)
}

func makeEvent(id string, defects int, eventTime time.Time) *models.Event {
	duration := int64(1000)
	return &models.Event{
		EventID:     id,
		MachineID:   "m1",
		EventTime:   eventTime,
		DurationMs:  &duration,
		DefectCount: defects,
	}
}

func TestIngestBatch_Success(t *testing.T) {
	srv, repo := newServer(t)
	now := time.Now()

	resp := postBatch(t, srv.URL+"/events/batch", batchJSON(t, []*models.Event{
		makeEvent("a", 1, now),
		makeEvent("b", 2, now),
	}))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var response models.IngestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
	assert.Equal(t, 2, response.Accepted)
	assert.Empty(t, response.Rejections)
	assert.Equal(t, 2, repo.EventCount())
}

func TestIngestBatch_PartitionedStrategy(t *testing.T) {
	srv, repo := newServer(t)
	now := time.Now()

	resp := postBatch(t, srv.URL+"/events/batch?strategy=partitioned", batchJSON(t, []*models.Event{
		makeEvent("a", 1, now),
		makeEvent("a", 3, now),
		makeEvent("b", 2, now),
	}))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var response models.IngestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
	assert.Equal(t, 2, response.Accepted)
	assert.Equal(t, 1, response.Updated)
	assert.Equal(t, 2, repo.EventCount())
}

func TestIngestBatch_UnknownStrategy(t *testing.T) {
	srv, _ := newServer(t)

	resp := postBatch(t, srv.URL+"/events/batch?strategy=turbo", "[]")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIngestBatch_MalformedPayload(t *testing.T) {
	srv, _ := newServer(t)

	resp := postBatch(t, srv.URL+"/events/batch", "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIngestBatch_EmptyBatch(t *testing.T) {
	srv, _ := newServer(t)

	resp := postBatch(t, srv.URL+"/events/batch", "[]")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIngestBatch_RejectionsReported(t *testing.T) {
	srv, _ := newServer(t)
	now := time.Now()

	bad := makeEvent("bad", 1, now)
	badDuration := int64(-1)
	bad.DurationMs = &badDuration

	resp := postBatch(t, srv.URL+"/events/batch", batchJSON(t, []*models.Event{
		makeEvent("ok", 1, now),
		bad,
	}))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var response models.IngestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
	assert.Equal(t, 1, response.Accepted)
	assert.Equal(t, 1, response.Rejected)
	require.Len(t, response.Rejections, 1)
	assert.Equal(t, "bad", response.Rejections[0].EventID)
	assert.Equal(t, models.ReasonInvalidDuration, response.Rejections[0].Reason)
}

func TestIngestBatch_MalformedRecord(t *testing.T) {
	srv, repo := newServer(t)
	now := time.Now()

	blankMachine := makeEvent("e1", 1, now)
	blankMachine.MachineID = ""
	blankID := makeEvent("  ", 1, now)

	cases := map[string][]*models.Event{
		"blank machineId": {blankMachine, makeEvent("e2", 1, now)},
		"blank eventId":   {blankID},
		"null record":     {makeEvent("e3", 1, now), nil},
	}

	for name, batch := range cases {
		t.Run(name, func(t *testing.T) {
			resp := postBatch(t, srv.URL+"/events/batch", batchJSON(t, batch))
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, 0, repo.EventCount(), "nothing committed when a record is malformed")
		})
	}
}

func TestIngestBatch_MethodNotAllowed(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/events/batch")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMachineStats_Endpoint(t *testing.T) {
	srv, repo := newServer(t)

	start := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	_, err := repo.UpsertBatch(t.Context(), []models.EventRow{
		{EventID: "a", MachineID: "m1", EventTime: start.Add(time.Minute), ReceivedTime: time.Now(), DurationMs: 10, DefectCount: 5},
	})
	require.NoError(t, err)

	url := fmt.Sprintf("%s/stats?machineId=m1&start=%s&end=%s",
		srv.URL, start.Format(time.RFC3339), end.Format(time.RFC3339))
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats models.MachineStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.EventsCount)
	assert.Equal(t, int64(5), stats.DefectsCount)
	assert.Equal(t, models.StatusWarning, stats.Status)
}

func TestMachineStats_RejectsInvertedWindow(t *testing.T) {
	srv, _ := newServer(t)

	end := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
	start := end.Add(time.Hour)
	url := fmt.Sprintf("%s/stats?machineId=m1&start=%s&end=%s",
		srv.URL, start.Format(time.RFC3339), end.Format(time.RFC3339))
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMachineStats_RequiresParams(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/stats?machineId=m1&start=yesterday&end=today")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestTopDefectLines_Endpoint(t *testing.T) {
	srv, repo := newServer(t)

	repo.AddLine("line-1", "f1")
	repo.AddMachine("m1", "line-1")

	base := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
	_, err := repo.UpsertBatch(t.Context(), []models.EventRow{
		{EventID: "a", MachineID: "m1", EventTime: base.Add(time.Minute), ReceivedTime: time.Now(), DurationMs: 10, DefectCount: 7},
	})
	require.NoError(t, err)

	url := fmt.Sprintf("%s/stats/top-defect-lines?factoryId=f1&from=%s&to=%s&limit=5",
		srv.URL, base.Format(time.RFC3339), base.Add(time.Hour).Format(time.RFC3339))
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var lines []models.LineStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lines))
	require.Len(t, lines, 1)
	assert.Equal(t, "line-1", lines[0].LineID)
	assert.Equal(t, int64(7), lines[0].TotalDefects)
}

func TestTopDefectLines_RejectsBadLimit(t *testing.T) {
	srv, _ := newServer(t)

	base := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
	url := fmt.Sprintf("%s/stats/top-defect-lines?factoryId=f1&from=%s&to=%s&limit=0",
		srv.URL, base.Format(time.RFC3339), base.Add(time.Hour).Format(time.RFC3339))
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
