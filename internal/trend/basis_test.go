package trend

import (
	"math"
	"testing"
)

func TestBSplinePartitionOfUnity(t *testing.T) {
	for _, nbasis := range []int{4, 7, 10, 15} {
		bs, err := newBSpline(nbasis, 0, 30)
		if err != nil {
			t.Fatalf("newBSpline(%d): %v", nbasis, err)
		}
		for x := 0.0; x <= 30.0; x += 0.37 {
			vals := bs.eval(x)
			if len(vals) != nbasis {
				t.Fatalf("eval returned %d values, want %d", len(vals), nbasis)
			}
			sum := 0.0
			for _, v := range vals {
				if v < -1e-12 {
					t.Fatalf("negative basis value %v at x=%v", v, x)
				}
				sum += v
			}
			if math.Abs(sum-1) > 1e-9 {
				t.Fatalf("basis sums to %v at x=%v (nbasis=%d)", sum, x, nbasis)
			}
		}
	}
}

func TestBSplineBoundaryAndClamp(t *testing.T) {
	bs, err := newBSpline(8, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	atHi := bs.eval(10)
	if math.Abs(atHi[len(atHi)-1]-1) > 1e-12 {
		t.Errorf("last basis at hi = %v, want 1", atHi[len(atHi)-1])
	}
	atLo := bs.eval(0)
	if math.Abs(atLo[0]-1) > 1e-12 {
		t.Errorf("first basis at lo = %v, want 1", atLo[0])
	}
	// Out-of-range evaluation clamps rather than extrapolating.
	outside := bs.eval(25)
	for i, v := range outside {
		if v != atHi[i] {
			t.Errorf("eval(25)[%d] = %v, want clamped %v", i, v, atHi[i])
		}
	}
}

func TestBSplineRejectsDegenerate(t *testing.T) {
	if _, err := newBSpline(3, 0, 10); err == nil {
		t.Error("basis dimension 3 should be rejected for a cubic")
	}
	if _, err := newBSpline(8, 5, 5); err == nil {
		t.Error("empty range should be rejected")
	}
}

func TestDifferencePenaltyAnnihilatesLines(t *testing.T) {
	// The second-order difference penalty must be zero exactly on constant
	// and linear coefficient vectors (its null space).
	const k = 9
	s := differencePenalty(k)
	quad := func(beta []float64) float64 {
		q := 0.0
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				q += beta[i] * s[i][j] * beta[j]
			}
		}
		return q
	}
	constant := make([]float64, k)
	linear := make([]float64, k)
	wiggly := make([]float64, k)
	for i := 0; i < k; i++ {
		constant[i] = 2.5
		linear[i] = 0.3*float64(i) - 1
		wiggly[i] = math.Sin(float64(i))
	}
	if q := quad(constant); math.Abs(q) > 1e-12 {
		t.Errorf("penalty on constant = %v, want 0", q)
	}
	if q := quad(linear); math.Abs(q) > 1e-12 {
		t.Errorf("penalty on linear = %v, want 0", q)
	}
	if q := quad(wiggly); q <= 0 {
		t.Errorf("penalty on wiggly vector = %v, want > 0", q)
	}
}
