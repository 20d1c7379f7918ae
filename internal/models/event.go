package models

import "time"

// Event is a single telemetry record as submitted by a collector.
// DurationMs is a pointer so an absent field can be told apart from zero;
// the duration validator rejects absent values.
type Event struct {
	EventID     string    `json:"eventId"`
	MachineID   string    `json:"machineId"`
	EventTime   time.Time `json:"eventTime"`
	DurationMs  *int64    `json:"durationMs"`
	DefectCount int       `json:"defectCount"`
}

// SentinelDefectCount marks a row whose defect count is unknown.
// Sentinel rows count toward event totals but contribute zero defects.
const SentinelDefectCount = -1

// SameData reports whether two events carry an identical comparable tuple
// (machineId, eventTime, durationMs, defectCount). EventID and receivedTime
// are deliberately excluded: the former is the map key, the latter is
// server-assigned.
func (e *Event) SameData(other *Event) bool {
	if e.MachineID != other.MachineID || !e.EventTime.Equal(other.EventTime) {
		return false
	}
	if e.DefectCount != other.DefectCount {
		return false
	}
	if (e.DurationMs == nil) != (other.DurationMs == nil) {
		return false
	}
	return e.DurationMs == nil || *e.DurationMs == *other.DurationMs
}

// EventRow is the fully resolved row handed to the persistence layer.
// ReceivedTime is always the server's wall clock at persistence time,
// never client-controlled.
type EventRow struct {
	EventID      string    `json:"event_id"`
	MachineID    string    `json:"machine_id"`
	EventTime    time.Time `json:"event_time"`
	ReceivedTime time.Time `json:"received_time"`
	DurationMs   int64     `json:"duration_ms"`
	DefectCount  int       `json:"defect_count"`
}
