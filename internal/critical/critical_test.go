package critical

import (
	"math"
	"testing"

	"github.com/dahliasan/Elephant-Weaners/internal/circstat"
)

func pt(elapsed, corr float64, valid bool) circstat.Point {
	return circstat.Point{ID: "w1", ElapsedDays: elapsed, Correlation: corr, Valid: valid}
}

func TestExtractSingleMaximum(t *testing.T) {
	points := []circstat.Point{
		pt(1, 0.9, true), // first elapsed time present: always excluded
		pt(2, 0.3, true),
		pt(3, 0.8, true),
		pt(4, 0.5, true),
	}
	rec, ok := Extract(points)
	if !ok {
		t.Fatal("Extract returned no record")
	}
	if rec.DaysAtMax != 3 || rec.MaxCorrelation != 0.8 {
		t.Errorf("got max %v at day %v, want 0.8 at day 3", rec.MaxCorrelation, rec.DaysAtMax)
	}
}

func TestExtractTieTakesEarliest(t *testing.T) {
	points := []circstat.Point{
		pt(1, 0.1, true),
		pt(2, 0.7, true),
		pt(3, 0.2, true),
		pt(4, 0.7, true),
	}
	rec, ok := Extract(points)
	if !ok {
		t.Fatal("Extract returned no record")
	}
	if rec.DaysAtMax != 2 {
		t.Errorf("tie resolved to day %v, want earliest day 2", rec.DaysAtMax)
	}
}

func TestExtractSkipsInvalidAndNaN(t *testing.T) {
	points := []circstat.Point{
		pt(1, 0.99, true),           // excluded as first elapsed time
		pt(2, 0.95, false),          // below min window
		pt(3, math.NaN(), true),     // undefined coefficient
		pt(4, 0.4, true),
	}
	rec, ok := Extract(points)
	if !ok {
		t.Fatal("Extract returned no record")
	}
	if rec.DaysAtMax != 4 {
		t.Errorf("got day %v, want 4", rec.DaysAtMax)
	}
}

func TestExtractNoValidPoints(t *testing.T) {
	tests := []struct {
		name   string
		points []circstat.Point
	}{
		{"empty", nil},
		{"only the first point", []circstat.Point{pt(1, 0.9, true)}},
		{"all invalid", []circstat.Point{pt(1, 0.9, false), pt(2, 0.8, false)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := Extract(tt.points); ok {
				t.Error("Extract returned a record; individual should be omitted")
			}
		})
	}
}

func TestExtractAllPreservesOrderAndDrops(t *testing.T) {
	byID := map[string][]circstat.Point{
		"w2": {pt(1, 0.2, true), pt(2, 0.6, true)},
		"w1": {pt(1, 0.2, true), pt(2, 0.9, true)},
		"w3": {pt(1, 0.5, true)}, // nothing after the first point
	}
	recs := ExtractAll(byID, []string{"w1", "w2", "w3"})
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].MaxCorrelation != 0.9 || recs[1].MaxCorrelation != 0.6 {
		t.Errorf("records out of order: %+v", recs)
	}
}
