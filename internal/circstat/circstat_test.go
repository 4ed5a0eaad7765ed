package circstat

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	tests := []struct {
		name    string
		degrees []float64
		want    float64
	}{
		{"single angle", []float64{42}, 42},
		{"wraparound pair", []float64{350, 10}, 0},
		{"around north", []float64{359, 1, 0}, 0},
		{"plain cluster", []float64{80, 90, 100}, 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Mean(tt.degrees)
			// Compare on the circle.
			diff := math.Abs(math.Mod(got-tt.want+540, 360) - 180)
			if diff > 1e-9 {
				t.Errorf("Mean(%v) = %v, want %v", tt.degrees, got, tt.want)
			}
		})
	}
}

func TestMeanDegenerate(t *testing.T) {
	if !math.IsNaN(Mean(nil)) {
		t.Error("Mean(nil) should be NaN")
	}
	// Opposite angles cancel exactly; no preferred direction exists.
	if !math.IsNaN(Mean([]float64{0, 180})) {
		t.Error("Mean of cancelling angles should be NaN")
	}
}

func TestCorrelationSelfIsOne(t *testing.T) {
	a := []float64{10, 95, 350, 200, 47, 312, 5, 180}
	for n := 2; n <= len(a); n++ {
		r, err := Correlation(a[:n], a[:n])
		require.NoError(t, err)
		assert.InDelta(t, 1.0, r.Correlation, 1e-12, "self-correlation at window %d", n)
	}
}

func TestCorrelationRotationInvariance(t *testing.T) {
	a := []float64{10, 95, 350, 200, 47, 312}
	b := []float64{30, 100, 340, 190, 60, 300}
	base, err := Correlation(a, b)
	require.NoError(t, err)

	for _, offset := range []float64{17, 90, 180, 273} {
		ar := make([]float64, len(a))
		br := make([]float64, len(b))
		for i := range a {
			ar[i] = math.Mod(a[i]+offset, 360)
			br[i] = math.Mod(b[i]+offset, 360)
		}
		rot, err := Correlation(ar, br)
		require.NoError(t, err)
		assert.InDelta(t, base.Correlation, rot.Correlation, 1e-9, "offset %v", offset)
		assert.InDelta(t, base.Statistic, rot.Statistic, 1e-9, "offset %v", offset)
	}
}

func TestCorrelationHandlesWraparound(t *testing.T) {
	// Bearings hugging north from both sides: as circular data these are
	// tightly associated; as linear data they would look anti-correlated.
	a := []float64{358, 2, 359, 1, 357, 3}
	b := []float64{357, 3, 358, 2, 356, 4}
	r, err := Correlation(a, b)
	require.NoError(t, err)
	assert.Greater(t, r.Correlation, 0.9)
}

func TestCorrelationDegenerate(t *testing.T) {
	r, err := Correlation([]float64{42}, []float64{42})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(r.Correlation), "single sample must be NaN")

	// No circular variance on one side.
	r, err = Correlation([]float64{90, 90, 90}, []float64{10, 50, 200})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(r.Correlation))

	_, err = Correlation([]float64{1, 2}, []float64{1})
	assert.Error(t, err)
}

func TestCorrelationIndependentSeriesNotSignificant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	n := 200
	a := make([]float64, n)
	b := make([]float64, n)
	for i := 0; i < n; i++ {
		a[i] = rng.Float64() * 360
		b[i] = rng.Float64() * 360
	}
	r, err := Correlation(a, b)
	require.NoError(t, err)
	assert.Less(t, math.Abs(r.Correlation), 0.2)
	assert.Greater(t, r.PValue, 0.01)
}

func TestCumulativeShapeAndOrdering(t *testing.T) {
	elapsed := []float64{0, 1, 2, 3, 4}
	seal := []float64{10, 20, 30, 40, 50}
	particle := []float64{12, 22, 28, 41, 52}

	points, err := Cumulative("w1", elapsed, seal, particle, 3)
	require.NoError(t, err)
	require.Len(t, points, 4, "one point per pair after the first")

	for i, p := range points {
		assert.Equal(t, "w1", p.ID)
		assert.Equal(t, i+2, p.Window)
		assert.Equal(t, elapsed[i+1], p.ElapsedDays)
		if i > 0 {
			assert.Greater(t, p.ElapsedDays, points[i-1].ElapsedDays)
		}
	}

	// Window 2 is below the minimum: stored but flagged.
	assert.False(t, points[0].Valid)
	assert.True(t, math.IsNaN(points[0].PValue))
	assert.True(t, points[2].Valid)
}

func TestCumulativeIdenticalSeries(t *testing.T) {
	elapsed := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	bearings := []float64{10, 75, 200, 310, 47, 128, 264, 355, 88, 170}

	points, err := Cumulative("w1", elapsed, bearings, bearings, 3)
	require.NoError(t, err)
	for _, p := range points {
		assert.InDelta(t, 1.0, p.Correlation, 1e-9, "window %d", p.Window)
	}
}

func TestCumulativeDropsMissingPairs(t *testing.T) {
	elapsed := []float64{0, 1, 2, 3, 4}
	seal := []float64{10, math.NaN(), 30, 40, 50}
	particle := []float64{12, 22, 28, math.NaN(), 52}

	points, err := Cumulative("w1", elapsed, seal, particle, 3)
	require.NoError(t, err)
	// Retained pairs are at elapsed 0, 2, 4 → two points.
	require.Len(t, points, 2)
	assert.Equal(t, 2.0, points[0].ElapsedDays)
	assert.Equal(t, 4.0, points[1].ElapsedDays)
}

func TestCumulativeDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	n := 40
	elapsed := make([]float64, n)
	seal := make([]float64, n)
	particle := make([]float64, n)
	for i := 0; i < n; i++ {
		elapsed[i] = float64(i)
		seal[i] = rng.Float64() * 360
		particle[i] = rng.Float64() * 360
	}
	first, err := Cumulative("w1", elapsed, seal, particle, 3)
	require.NoError(t, err)
	second, err := Cumulative("w1", elapsed, seal, particle, 3)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("correlator not deterministic (-first +second):\n%s", diff)
	}
}

func TestCumulativeRejectsBadInput(t *testing.T) {
	_, err := Cumulative("w1", []float64{0, 1}, []float64{1}, []float64{1, 2}, 3)
	assert.Error(t, err)

	_, err = Cumulative("w1", []float64{0, 0, 1}, []float64{1, 2, 3}, []float64{1, 2, 3}, 3)
	assert.Error(t, err, "duplicate elapsed times must be rejected")
}
