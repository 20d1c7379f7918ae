package validator

import (
	"time"

	"github.com/cadosfrit/sensor-events/internal/models"
)

// MaxDurationMs is the longest accepted event duration: 6 hours in
// milliseconds. The boundary value itself is valid.
const MaxDurationMs int64 = 6 * 60 * 60 * 1000

// DurationValidator rejects events whose duration is absent, negative, or
// above MaxDurationMs.
type DurationValidator struct{}

func (DurationValidator) Validate(event *models.Event, _ time.Time) string {
	if event.DurationMs == nil {
		return models.ReasonInvalidDuration
	}
	if *event.DurationMs < 0 || *event.DurationMs > MaxDurationMs {
		return models.ReasonInvalidDuration
	}
	return ""
}
