// Package pipeline holds the synchronous, in-memory stages an ingest batch
// passes through before persistence: intra-batch reconciliation and
// contention-aware partitioning.
package pipeline

import (
	"strings"

	"github.com/cadosfrit/sensor-events/internal/models"
)

// PreprocessResult is the output of intra-batch reconciliation.
type PreprocessResult struct {
	// Unique holds one event per eventId, in first-occurrence order, with
	// the last submitted payload winning for each id.
	Unique []*models.Event

	// Multiplicity counts how often each id appeared in the original batch.
	// The splitter uses it to route ids that repeated.
	Multiplicity map[string]int

	// IntraUpdates counts repeats whose payload differed from the previous
	// occurrence; IntraDedups counts exact repeats. Both are folded into
	// the final response tallies after persistence.
	IntraUpdates int
	IntraDedups  int
}

// Preprocess collapses repeated eventIds within one submitted batch.
// Events with a blank or whitespace-only eventId are dropped before
// insertion and contribute to neither counter; the envelope check upstream
// already fails such batches, so this is defense in depth. The working map
// is owned by this single invocation.
func Preprocess(batch []*models.Event) PreprocessResult {
	result := PreprocessResult{
		Unique:       make([]*models.Event, 0, len(batch)),
		Multiplicity: make(map[string]int, len(batch)),
	}

	index := make(map[string]int, len(batch))
	for _, current := range batch {
		if current == nil || strings.TrimSpace(current.EventID) == "" {
			continue
		}
		result.Multiplicity[current.EventID]++

		pos, seen := index[current.EventID]
		if !seen {
			index[current.EventID] = len(result.Unique)
			result.Unique = append(result.Unique, current)
			continue
		}

		if result.Unique[pos].SameData(current) {
			result.IntraDedups++
		} else {
			result.IntraUpdates++
		}
		// Last occurrence wins for what is forwarded downstream.
		result.Unique[pos] = current
	}

	return result
}
