package pipeline_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadosfrit/sensor-events/internal/models"
	"github.com/cadosfrit/sensor-events/internal/pipeline"
)

func makeEvent(id, machineID string, durationMs int64, defects int, eventTime time.Time) *models.Event {
	return &models.Event{
		EventID:     id,
		MachineID:   machineID,
		EventTime:   eventTime,
		DurationMs:  &durationMs,
		DefectCount: defects,
	}
}

func TestPreprocess_NoRepeats(t *testing.T) {
	now := time.Now()
	batch := []*models.Event{
		makeEvent("a", "m1", 100, 1, now),
		makeEvent("b", "m1", 200, 2, now),
	}

	result := pipeline.Preprocess(batch)

	require.Len(t, result.Unique, 2)
	assert.Equal(t, 0, result.IntraUpdates)
	assert.Equal(t, 0, result.IntraDedups)
	assert.Equal(t, 1, result.Multiplicity["a"])
	assert.Equal(t, 1, result.Multiplicity["b"])
}

func TestPreprocess_IdenticalRepeatCountsAsDedup(t *testing.T) {
	now := time.Now()
	batch := []*models.Event{
		makeEvent("a", "m1", 100, 1, now),
		makeEvent("a", "m1", 100, 1, now),
	}

	result := pipeline.Preprocess(batch)

	require.Len(t, result.Unique, 1)
	assert.Equal(t, 0, result.IntraUpdates)
	assert.Equal(t, 1, result.IntraDedups)
	assert.Equal(t, 2, result.Multiplicity["a"])
}

func TestPreprocess_DifferingRepeatCountsAsUpdate_LastWins(t *testing.T) {
	now := time.Now()
	batch := []*models.Event{
		makeEvent("a", "m1", 100, 1, now),
		makeEvent("a", "m1", 100, 7, now),
	}

	result := pipeline.Preprocess(batch)

	require.Len(t, result.Unique, 1)
	assert.Equal(t, 1, result.IntraUpdates)
	assert.Equal(t, 0, result.IntraDedups)
	assert.Equal(t, 7, result.Unique[0].DefectCount, "last occurrence wins")
}

func TestPreprocess_PreservesFirstOccurrenceOrder(t *testing.T) {
	now := time.Now()
	batch := []*models.Event{
		makeEvent("c", "m1", 1, 0, now),
		makeEvent("a", "m1", 1, 0, now),
		makeEvent("c", "m1", 2, 0, now),
		makeEvent("b", "m1", 1, 0, now),
	}

	result := pipeline.Preprocess(batch)

	require.Len(t, result.Unique, 3)
	assert.Equal(t, "c", result.Unique[0].EventID)
	assert.Equal(t, "a", result.Unique[1].EventID)
	assert.Equal(t, "b", result.Unique[2].EventID)
	assert.Equal(t, int64(2), *result.Unique[0].DurationMs, "forwarded payload is the last occurrence")
}

func TestPreprocess_DropsBlankIDsSilently(t *testing.T) {
	now := time.Now()
	batch := []*models.Event{
		makeEvent("", "m1", 1, 0, now),
		makeEvent("   ", "m1", 1, 0, now), // whitespace-only counts as blank
		nil,
		makeEvent("a", "m1", 1, 0, now),
	}

	result := pipeline.Preprocess(batch)

	require.Len(t, result.Unique, 1)
	assert.Equal(t, "a", result.Unique[0].EventID)
	assert.Equal(t, 0, result.IntraUpdates)
	assert.Equal(t, 0, result.IntraDedups)
	assert.NotContains(t, result.Multiplicity, "")
	assert.NotContains(t, result.Multiplicity, "   ")
}

func TestPreprocess_RepeatClassificationComparesLatestOccurrence(t *testing.T) {
	now := time.Now()
	batch := []*models.Event{
		makeEvent("a", "m1", 100, 1, now),
		makeEvent("a", "m1", 200, 1, now), // differs from first: update
		makeEvent("a", "m1", 200, 1, now), // identical to second: dedup
	}

	result := pipeline.Preprocess(batch)

	assert.Equal(t, 1, result.IntraUpdates)
	assert.Equal(t, 1, result.IntraDedups)
	assert.Equal(t, 3, result.Multiplicity["a"])
}
