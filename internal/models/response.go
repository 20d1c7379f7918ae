package models

// UpsertCounts aggregates per-outcome row counts from a persistence call.
type UpsertCounts struct {
	Accepted int `json:"accepted"`
	Updated  int `json:"updated"`
	Deduped  int `json:"deduped"`
}

// Add merges another set of counts into this one.
func (c *UpsertCounts) Add(other UpsertCounts) {
	c.Accepted += other.Accepted
	c.Updated += other.Updated
	c.Deduped += other.Deduped
}

// Rejection records a per-event validation failure.
type Rejection struct {
	EventID string `json:"eventId"`
	Reason  string `json:"reason"`
}

// IngestResponse is the batch-level result returned to the caller.
// Rejections is never nil so the JSON field serializes as [] when empty.
type IngestResponse struct {
	Accepted   int         `json:"accepted"`
	Updated    int         `json:"updated"`
	Deduped    int         `json:"deduped"`
	Rejected   int         `json:"rejected"`
	Rejections []Rejection `json:"rejections"`
}
