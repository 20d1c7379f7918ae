package seeder_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadosfrit/sensor-events/internal/seeder"
	"github.com/cadosfrit/sensor-events/internal/validator"
)

func TestGenerator_BatchSizeAndShape(t *testing.T) {
	gen := seeder.NewGenerator(seeder.DefaultTopology(), seeder.GeneratorConfig{})

	batch := gen.Batch(200)
	require.Len(t, batch, 200)

	known := seeder.DefaultTopology().MachineIDs()
	now := time.Now()
	for _, event := range batch {
		assert.NotEmpty(t, event.EventID)
		assert.Contains(t, known, event.MachineID)
		require.NotNil(t, event.DurationMs)
		assert.GreaterOrEqual(t, *event.DurationMs, int64(0))
		assert.LessOrEqual(t, *event.DurationMs, validator.MaxDurationMs)
		assert.False(t, event.EventTime.After(now.Add(time.Second)))
	}
}

func TestGenerator_DuplicateRatio(t *testing.T) {
	gen := seeder.NewGenerator(seeder.DefaultTopology(), seeder.GeneratorConfig{
		DuplicateRatio: 1.0,
	})

	batch := gen.Batch(50)
	require.Len(t, batch, 50)

	// With the ratio pinned to 1, every event after the first repeats an
	// earlier id.
	seen := map[string]int{}
	for _, event := range batch {
		seen[event.EventID]++
	}
	assert.Len(t, seen, 1)
}

func TestGenerator_NoDuplicates(t *testing.T) {
	gen := seeder.NewGenerator(seeder.DefaultTopology(), seeder.GeneratorConfig{})

	batch := gen.Batch(100)
	seen := map[string]struct{}{}
	for _, event := range batch {
		seen[event.EventID] = struct{}{}
	}
	assert.Len(t, seen, 100)
}

func TestGenerator_TimeSpread(t *testing.T) {
	spread := 2 * time.Hour
	gen := seeder.NewGenerator(seeder.DefaultTopology(), seeder.GeneratorConfig{
		TimeSpread: spread,
	})

	floor := time.Now().Add(-spread - time.Second)
	batch := gen.Batch(100)
	for _, event := range batch {
		assert.True(t, event.EventTime.After(floor))
	}
}

func TestLoadTopology(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
factories:
  - id: plant-north
    lines:
      - id: line-a
        machines: [m1, m2]
      - id: line-b
        machines: [m3]
`), 0o644))

	topology, err := seeder.LoadTopology(path)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"m1", "m2", "m3"}, topology.MachineIDs())
	require.Len(t, topology.Factories, 1)
	assert.Equal(t, "plant-north", topology.Factories[0].ID)
}

func TestLoadTopology_RejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte("factories: []\n"), 0o644))

	_, err := seeder.LoadTopology(path)
	assert.Error(t, err)
}

func TestLoadTopology_MissingFile(t *testing.T) {
	_, err := seeder.LoadTopology(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
