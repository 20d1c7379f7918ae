package validator

import (
	"time"

	"github.com/cadosfrit/sensor-events/internal/models"
)

// FutureTimeAllowance is how far into the future an event time may lie.
// An event at exactly now + allowance is still accepted.
const FutureTimeAllowance = 15 * time.Minute

// FutureTimeValidator rejects events whose time is absent or beyond the
// future allowance.
type FutureTimeValidator struct{}

func (FutureTimeValidator) Validate(event *models.Event, now time.Time) string {
	if event.EventTime.IsZero() {
		return models.ReasonFutureEventTime
	}
	if event.EventTime.After(now.Add(FutureTimeAllowance)) {
		return models.ReasonFutureEventTime
	}
	return ""
}
