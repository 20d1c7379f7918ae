package validator

import (
	"time"

	"github.com/cadosfrit/sensor-events/internal/models"
)

// Validator checks one candidate event against a single rule.
// Implementations are pure functions of the event and the current time and
// must not mutate the input. A non-empty return value is the reason code
// reported to the caller.
type Validator interface {
	Validate(event *models.Event, now time.Time) string
}

// Chain applies validators in a fixed, documented order and reports the
// first violation. Order is a configuration decision; Default() fixes it
// as duration first, future-time second.
type Chain struct {
	validators []Validator
}

// NewChain constructs a validator chain.
func NewChain(validators ...Validator) *Chain {
	return &Chain{validators: validators}
}

// Default returns the statically configured production chain.
func Default() *Chain {
	return NewChain(DurationValidator{}, FutureTimeValidator{})
}

// Validate runs validators in order until one reports a violation.
// It returns the first reason code, or "" when the event passes.
func (c *Chain) Validate(event *models.Event, now time.Time) string {
	if c == nil {
		return ""
	}
	for _, v := range c.validators {
		if reason := v.Validate(event, now); reason != "" {
			return reason
		}
	}
	return ""
}
