// Package critical reduces an individual's cumulative correlation series to
// its critical period: the elapsed time at which agreement with the current
// peaks, and the correlation at that peak.
package critical

import (
	"math"

	"github.com/dahliasan/Elephant-Weaners/internal/circstat"
)

// Record is the critical period for one individual.
type Record struct {
	ID             string
	MaxCorrelation float64
	DaysAtMax      float64
}

// Extract scans one individual's cumulative correlation points, excluding
// the first elapsed time present (always a trivial two-sample window) and
// any point flagged invalid, and returns the point of maximum correlation.
// Ties resolve to the earliest elapsed time. ok is false when no valid
// point survives the exclusions; such individuals are omitted from the
// record set, never defaulted to zero.
func Extract(points []circstat.Point) (rec Record, ok bool) {
	if len(points) == 0 {
		return Record{}, false
	}

	minElapsed := math.Inf(1)
	for _, p := range points {
		if p.ElapsedDays < minElapsed {
			minElapsed = p.ElapsedDays
		}
	}

	for _, p := range points {
		if p.ElapsedDays <= minElapsed || !p.Valid || math.IsNaN(p.Correlation) {
			continue
		}
		if !ok || p.Correlation > rec.MaxCorrelation {
			rec = Record{ID: p.ID, MaxCorrelation: p.Correlation, DaysAtMax: p.ElapsedDays}
			ok = true
		}
	}
	return rec, ok
}

// ExtractAll applies Extract per individual, preserving the input grouping
// order. Individuals with no valid points are dropped.
func ExtractAll(byID map[string][]circstat.Point, order []string) []Record {
	var out []Record
	for _, id := range order {
		if rec, ok := Extract(byID[id]); ok {
			out = append(out, rec)
		}
	}
	return out
}
