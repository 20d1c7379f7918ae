package pipeline

import "github.com/cadosfrit/sensor-events/internal/models"

// SplitResult partitions validated events by persistence contention risk.
type SplitResult struct {
	// Bulk holds ids that occurred exactly once in the original batch;
	// they take the parallel, batched persistence path.
	Bulk []*models.Event

	// Contention holds ids that repeated within the original batch; rows
	// rewritten multiple times in one submission are the ones most likely
	// to collide under row locking, so they take the sequential path.
	Contention []*models.Event
}

// Split routes validated events into the bulk and contention partitions
// using each id's multiplicity in the original, pre-dedup batch. Relative
// order within each partition follows the input order.
func Split(events []*models.Event, multiplicity map[string]int) SplitResult {
	result := SplitResult{
		Bulk:       make([]*models.Event, 0, len(events)),
		Contention: make([]*models.Event, 0),
	}
	for _, event := range events {
		if multiplicity[event.EventID] > 1 {
			result.Contention = append(result.Contention, event)
		} else {
			result.Bulk = append(result.Bulk, event)
		}
	}
	return result
}
