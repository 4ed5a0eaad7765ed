// Package stats holds the two summary significance tests reported at the
// end of a run: a one-sample t-test on the critical correlations and a
// Pearson correlation test between time-to-peak and peak agreement.
package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// TestResult is one summary test outcome.
type TestResult struct {
	Name      string
	Estimate  float64
	Statistic float64
	DF        float64
	PValue    float64
	N         int
}

// OneSampleTTest tests whether the mean of xs differs from mu0 (two-sided).
func OneSampleTTest(name string, xs []float64, mu0 float64) (TestResult, error) {
	n := len(xs)
	if n < 2 {
		return TestResult{}, fmt.Errorf("stats: t-test needs at least 2 observations, got %d", n)
	}
	mean, variance := stat.MeanVariance(xs, nil)
	if variance == 0 {
		return TestResult{}, fmt.Errorf("stats: t-test undefined for zero-variance sample")
	}
	se := math.Sqrt(variance / float64(n))
	tStat := (mean - mu0) / se
	df := float64(n - 1)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.Survival(math.Abs(tStat))
	return TestResult{Name: name, Estimate: mean, Statistic: tStat, DF: df, PValue: p, N: n}, nil
}

// PearsonTest tests the Pearson correlation between paired samples against
// zero via the t transform t = r·sqrt((n−2)/(1−r²)), two-sided.
func PearsonTest(name string, xs, ys []float64) (TestResult, error) {
	if len(xs) != len(ys) {
		return TestResult{}, fmt.Errorf("stats: paired samples differ in length: %d vs %d", len(xs), len(ys))
	}
	n := len(xs)
	if n < 3 {
		return TestResult{}, fmt.Errorf("stats: correlation test needs at least 3 pairs, got %d", n)
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return TestResult{}, fmt.Errorf("stats: correlation undefined (zero variance in a sample)")
	}
	df := float64(n - 2)
	var tStat, p float64
	if math.Abs(r) >= 1 {
		tStat = math.Inf(int(math.Copysign(1, r)))
		p = 0
	} else {
		tStat = r * math.Sqrt(df/(1-r*r))
		dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
		p = 2 * dist.Survival(math.Abs(tStat))
	}
	return TestResult{Name: name, Estimate: r, Statistic: tStat, DF: df, PValue: p, N: n}, nil
}
