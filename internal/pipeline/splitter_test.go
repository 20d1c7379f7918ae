package pipeline_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadosfrit/sensor-events/internal/models"
	"github.com/cadosfrit/sensor-events/internal/pipeline"
)

func TestSplit_RoutesByOriginalMultiplicity(t *testing.T) {
	now := time.Now()
	events := []*models.Event{
		makeEvent("a", "m1", 1, 0, now),
		makeEvent("b", "m1", 1, 0, now),
		makeEvent("c", "m1", 1, 0, now),
	}
	multiplicity := map[string]int{"a": 1, "b": 3, "c": 1}

	result := pipeline.Split(events, multiplicity)

	require.Len(t, result.Bulk, 2)
	require.Len(t, result.Contention, 1)
	assert.Equal(t, "a", result.Bulk[0].EventID)
	assert.Equal(t, "c", result.Bulk[1].EventID)
	assert.Equal(t, "b", result.Contention[0].EventID)
}

func TestSplit_AllUnique(t *testing.T) {
	now := time.Now()
	events := []*models.Event{
		makeEvent("a", "m1", 1, 0, now),
		makeEvent("b", "m1", 1, 0, now),
	}

	result := pipeline.Split(events, map[string]int{"a": 1, "b": 1})

	assert.Len(t, result.Bulk, 2)
	assert.Empty(t, result.Contention)
}

func TestSplit_EmptyInput(t *testing.T) {
	result := pipeline.Split(nil, map[string]int{})

	assert.NotNil(t, result.Bulk)
	assert.NotNil(t, result.Contention)
	assert.Empty(t, result.Bulk)
	assert.Empty(t, result.Contention)
}
