package models

// Validation reason codes reported back to callers.
const (
	ReasonInvalidDuration = "INVALID_DURATION"
	ReasonFutureEventTime = "FUTURE_EVENT_TIME"
)

// Persistence outcome labels.
const (
	OutcomeAccepted = "ACCEPTED"
	OutcomeUpdated  = "UPDATED"
	OutcomeDeduped  = "DEDUPED"
)

// Machine health statuses derived from the windowed defect rate.
const (
	StatusHealthy = "Healthy"
	StatusWarning = "Warning"
)
