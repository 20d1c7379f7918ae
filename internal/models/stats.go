package models

import "time"

// MachineStats is the windowed aggregate for a single machine.
// The window is half-open: [Start, End).
type MachineStats struct {
	MachineID     string    `json:"machineId"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	EventsCount   int64     `json:"eventsCount"`
	DefectsCount  int64     `json:"defectsCount"`
	AvgDefectRate float64   `json:"avgDefectRate"`
	Status        string    `json:"status"`
}

// LineStats is the per-production-line aggregate used by the factory ranking.
type LineStats struct {
	LineID         string  `json:"lineId"`
	TotalDefects   int64   `json:"totalDefects"`
	EventCount     int64   `json:"eventCount"`
	DefectsPercent float64 `json:"defectsPercent"`
}
