package seeder

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/cadosfrit/sensor-events/internal/models"
	"github.com/cadosfrit/sensor-events/internal/validator"
)

// GeneratorConfig tunes the shape of generated batches.
type GeneratorConfig struct {
	// DuplicateRatio is the fraction of events that repeat an earlier
	// eventId within the same batch, exercising the contention partition.
	DuplicateRatio float64

	// SentinelRatio is the fraction of events carrying the unknown-defect
	// sentinel.
	SentinelRatio float64

	// TimeSpread scatters event times uniformly over the trailing window;
	// zero means "now".
	TimeSpread time.Duration
}

// Generator produces realistic telemetry batches against a plant topology.
type Generator struct {
	topology *Topology
	config   GeneratorConfig
	machines []string
}

// NewGenerator seeds the fake data source and prepares a generator.
func NewGenerator(topology *Topology, config GeneratorConfig) *Generator {
	gofakeit.Seed(time.Now().UnixNano())
	return &Generator{
		topology: topology,
		config:   config,
		machines: topology.MachineIDs(),
	}
}

// Batch generates n events. Duplicated ids re-submit an earlier event of
// the batch, half of them with a mutated payload so both intra-batch
// classifications occur.
func (g *Generator) Batch(n int) []*models.Event {
	batch := make([]*models.Event, 0, n)
	for i := 0; i < n; i++ {
		if len(batch) > 0 && gofakeit.Float64Range(0, 1) < g.config.DuplicateRatio {
			original := batch[gofakeit.Number(0, len(batch)-1)]
			repeat := *original
			if gofakeit.Bool() {
				repeat.DefectCount = g.defectCount()
			}
			batch = append(batch, &repeat)
			continue
		}
		batch = append(batch, g.event())
	}
	return batch
}

func (g *Generator) event() *models.Event {
	duration := gofakeit.Int64() % validator.MaxDurationMs
	if duration < 0 {
		duration = -duration
	}

	eventTime := time.Now()
	if g.config.TimeSpread > 0 {
		offset := time.Duration(gofakeit.Number(0, int(g.config.TimeSpread)))
		eventTime = eventTime.Add(-offset)
	}

	return &models.Event{
		EventID:     uuid.New().String(),
		MachineID:   g.machines[gofakeit.Number(0, len(g.machines)-1)],
		EventTime:   eventTime,
		DurationMs:  &duration,
		DefectCount: g.defectCount(),
	}
}

func (g *Generator) defectCount() int {
	if gofakeit.Float64Range(0, 1) < g.config.SentinelRatio {
		return models.SentinelDefectCount
	}
	return gofakeit.Number(0, 25)
}
