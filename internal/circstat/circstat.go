// Package circstat implements circular statistics for bearing series: the
// circular mean, the Jammalamadaka–SenGupta circular-circular correlation
// with its asymptotic significance test, and the expanding-window cumulative
// correlator that is the analytical heart of the drift-agreement pipeline.
package circstat

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Result is one circular-correlation outcome: the coefficient, its
// asymptotic test statistic and the two-sided p-value under the null of no
// circular association. A flat record, never nested.
type Result struct {
	Correlation float64
	Statistic   float64
	PValue      float64
	N           int
}

// Point is one cumulative correlation observation for one individual: the
// expanding-window result at a given elapsed time since the individual's
// first aligned sample. Window is the number of bearing pairs in the
// window. Points with Window below the configured minimum carry Valid=false
// and a NaN p-value; they are stored but excluded from the critical-period
// search and the trend model.
type Point struct {
	ID          string
	ElapsedDays float64
	Correlation float64
	PValue      float64
	Statistic   float64
	Window      int
	Valid       bool
}

// MinWindowDefault is the smallest window treated as statistically
// meaningful. Two samples make the coefficient defined but the asymptotic
// test worthless, so three is the floor.
const MinWindowDefault = 3

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// Mean returns the circular mean of angles given in degrees, in [0, 360).
// An empty input or a zero resultant (angles that cancel exactly) yields
// NaN: there is no preferred direction to report.
func Mean(degrees []float64) float64 {
	var sinSum, cosSum float64
	for _, d := range degrees {
		r := d * math.Pi / 180
		sinSum += math.Sin(r)
		cosSum += math.Cos(r)
	}
	if len(degrees) == 0 || (math.Abs(sinSum) < 1e-12 && math.Abs(cosSum) < 1e-12) {
		return math.NaN()
	}
	deg := math.Atan2(sinSum, cosSum) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

// Correlation computes the Jammalamadaka–SenGupta circular-circular
// correlation between two equal-length angle sets (degrees). The
// coefficient is invariant to a common rotation of either set and treats
// 359° and 1° as near neighbours. Treating bearings as plain reals here
// would be wrong and is deliberately impossible through this API.
//
// The accompanying statistic is z = sqrt(n·λ20·λ02/λ22)·r, asymptotically
// standard normal under independence; the p-value is two-sided. For n < 2,
// angles without circular variance on either side, or a degenerate λ22 the
// result is NaN throughout.
func Correlation(a, b []float64) (Result, error) {
	if len(a) != len(b) {
		return Result{}, fmt.Errorf("circstat: series lengths differ: %d vs %d", len(a), len(b))
	}
	n := len(a)
	res := Result{Correlation: math.NaN(), Statistic: math.NaN(), PValue: math.NaN(), N: n}
	if n < 2 {
		return res, nil
	}

	abar := Mean(a) * math.Pi / 180
	bbar := Mean(b) * math.Pi / 180
	if math.IsNaN(abar) || math.IsNaN(bbar) {
		return res, nil
	}

	var num, sa2, sb2 float64
	var l22 float64
	for i := 0; i < n; i++ {
		sinA := math.Sin(a[i]*math.Pi/180 - abar)
		sinB := math.Sin(b[i]*math.Pi/180 - bbar)
		num += sinA * sinB
		sa2 += sinA * sinA
		sb2 += sinB * sinB
		l22 += sinA * sinA * sinB * sinB
	}
	if sa2 == 0 || sb2 == 0 {
		return res, nil
	}
	res.Correlation = num / math.Sqrt(sa2*sb2)

	l20 := sa2 / float64(n)
	l02 := sb2 / float64(n)
	l22 /= float64(n)
	if l22 <= 0 {
		return res, nil
	}
	res.Statistic = math.Sqrt(float64(n)*l20*l02/l22) * res.Correlation
	res.PValue = 2 * stdNormal.Survival(math.Abs(res.Statistic))
	return res, nil
}

// Cumulative computes the expanding-window correlation series for one
// individual. The window start is pinned at the first aligned pair and the
// end advances one pair per output point, so each point measures agreement
// accumulated since departure, not local agreement.
//
// Pairs with a NaN bearing on either side are removed before windowing, so
// every window covers fully observed pairs only; this is the single missing
// -value policy for the whole pipeline. The first retained pair yields no
// point (a one-sample correlation is degenerate), so the output has one
// point per retained pair after the first, strictly ordered by elapsed
// time. Results are fully deterministic.
func Cumulative(id string, elapsed, seal, particle []float64, minWindow int) ([]Point, error) {
	if len(elapsed) != len(seal) || len(seal) != len(particle) {
		return nil, fmt.Errorf("circstat: individual %s series lengths differ: elapsed=%d seal=%d particle=%d", id, len(elapsed), len(seal), len(particle))
	}
	if minWindow < 2 {
		minWindow = MinWindowDefault
	}

	// Drop missing pairs up front.
	var el, sa, pa []float64
	for i := range elapsed {
		if math.IsNaN(seal[i]) || math.IsNaN(particle[i]) {
			continue
		}
		el = append(el, elapsed[i])
		sa = append(sa, seal[i])
		pa = append(pa, particle[i])
	}
	for i := 1; i < len(el); i++ {
		if el[i] <= el[i-1] {
			return nil, fmt.Errorf("circstat: individual %s elapsed times not strictly increasing at index %d", id, i)
		}
	}

	points := make([]Point, 0, max(len(el)-1, 0))
	for i := 1; i < len(el); i++ {
		window := i + 1
		r, err := Correlation(sa[:window], pa[:window])
		if err != nil {
			return nil, err
		}
		pt := Point{
			ID:          id,
			ElapsedDays: el[i],
			Correlation: r.Correlation,
			PValue:      r.PValue,
			Statistic:   r.Statistic,
			Window:      window,
			Valid:       window >= minWindow && !math.IsNaN(r.Correlation),
		}
		if !pt.Valid {
			pt.PValue = math.NaN()
		}
		points = append(points, pt)
	}
	return points, nil
}
