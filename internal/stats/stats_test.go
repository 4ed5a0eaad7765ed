package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOneSampleTTest(t *testing.T) {
	// Critical correlations clustered well above zero.
	xs := []float64{0.71, 0.65, 0.80, 0.74, 0.69, 0.77, 0.62, 0.83}
	res, err := OneSampleTTest("mean critical correlation", xs, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, res.N)
	assert.Equal(t, 7.0, res.DF)
	assert.InDelta(t, 0.72625, res.Estimate, 1e-6)
	assert.Greater(t, res.Statistic, 10.0)
	assert.Less(t, res.PValue, 1e-5)

	// Centered sample: no evidence against mu0.
	centered := []float64{-0.2, 0.1, 0.05, -0.08, 0.13, -0.02}
	res, err = OneSampleTTest("centered", centered, 0)
	require.NoError(t, err)
	assert.Greater(t, res.PValue, 0.4)
}

func TestOneSampleTTestDegenerate(t *testing.T) {
	_, err := OneSampleTTest("tiny", []float64{0.5}, 0)
	assert.Error(t, err)
	_, err = OneSampleTTest("flat", []float64{0.5, 0.5, 0.5}, 0)
	assert.Error(t, err)
}

func TestPearsonTest(t *testing.T) {
	// Perfectly linear: r = 1, p = 0.
	xs := []float64{1, 2, 3, 4, 5}
	ys := []float64{2, 4, 6, 8, 10}
	res, err := PearsonTest("linear", xs, ys)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Estimate, 1e-12)
	assert.True(t, math.IsInf(res.Statistic, 1))
	assert.Equal(t, 0.0, res.PValue)

	// Known r for a small fixture.
	xs = []float64{3, 7, 12, 18, 25, 31}
	ys = []float64{0.9, 0.7, 0.75, 0.5, 0.45, 0.3}
	res, err = PearsonTest("days vs max", xs, ys)
	require.NoError(t, err)
	assert.Less(t, res.Estimate, -0.9, "strongly decreasing fixture")
	assert.Equal(t, 4.0, res.DF)
	assert.Less(t, res.PValue, 0.05)
}

func TestPearsonTestDegenerate(t *testing.T) {
	_, err := PearsonTest("short", []float64{1, 2}, []float64{1, 2})
	assert.Error(t, err)
	_, err = PearsonTest("mismatched", []float64{1, 2, 3}, []float64{1, 2})
	assert.Error(t, err)
	_, err = PearsonTest("flat", []float64{1, 1, 1}, []float64{1, 2, 3})
	assert.Error(t, err)
}
