package trend

import (
	"fmt"
	"math"
)

// bspline is a clamped cubic B-spline basis over [lo, hi] with evenly
// spaced interior knots.
type bspline struct {
	degree int
	nbasis int
	knots  []float64
	lo, hi float64
}

func newBSpline(nbasis int, lo, hi float64) (*bspline, error) {
	const degree = 3
	if nbasis < degree+1 {
		return nil, fmt.Errorf("trend: basis dimension %d too small, need at least %d", nbasis, degree+1)
	}
	if !(hi > lo) {
		return nil, fmt.Errorf("trend: degenerate elapsed-time range [%v, %v]", lo, hi)
	}

	// Clamped knot vector: degree+1 copies of each boundary plus evenly
	// spaced interior knots.
	ninterior := nbasis - degree - 1
	knots := make([]float64, 0, nbasis+degree+1)
	for i := 0; i <= degree; i++ {
		knots = append(knots, lo)
	}
	for i := 1; i <= ninterior; i++ {
		knots = append(knots, lo+(hi-lo)*float64(i)/float64(ninterior+1))
	}
	for i := 0; i <= degree; i++ {
		knots = append(knots, hi)
	}
	return &bspline{degree: degree, nbasis: nbasis, knots: knots, lo: lo, hi: hi}, nil
}

// eval returns the nbasis basis function values at x by the Cox–de Boor
// recurrence. x outside [lo, hi] is clamped to the boundary.
func (bs *bspline) eval(x float64) []float64 {
	k := bs.knots
	if x < bs.lo {
		x = bs.lo
	}
	if x > bs.hi {
		x = bs.hi
	}

	n := make([]float64, len(k)-1)
	last := k[len(k)-1]
	for i := 0; i < len(k)-1; i++ {
		if k[i] <= x && x < k[i+1] {
			n[i] = 1
		} else if x == last && k[i] < k[i+1] && k[i+1] == last {
			// Close the final non-empty interval on the right so the
			// basis partitions unity at hi.
			n[i] = 1
		}
	}
	for p := 1; p <= bs.degree; p++ {
		for i := 0; i < len(k)-p-1; i++ {
			var v float64
			if den := k[i+p] - k[i]; den > 0 {
				v += (x - k[i]) / den * n[i]
			}
			if den := k[i+p+1] - k[i+1]; den > 0 {
				v += (k[i+p+1] - x) / den * n[i+1]
			}
			n[i] = v
		}
	}
	return n[:bs.nbasis]
}

// differencePenalty returns S = DᵀD for the second-order difference matrix
// D over nbasis coefficients (the standard P-spline wiggliness penalty),
// as a dense symmetric slice-of-rows. Rank is nbasis−2.
func differencePenalty(nbasis int) [][]float64 {
	s := make([][]float64, nbasis)
	for i := range s {
		s[i] = make([]float64, nbasis)
	}
	for r := 0; r < nbasis-2; r++ {
		row := []struct {
			j int
			v float64
		}{{r, 1}, {r + 1, -2}, {r + 2, 1}}
		for _, a := range row {
			for _, b := range row {
				s[a.j][b.j] += a.v * b.v
			}
		}
	}
	return s
}

// logDetPlus returns the log pseudo-determinant (sum of logs of eigenvalues
// above tol) and the rank of a symmetric matrix given its eigenvalues.
func logDetPlus(eigs []float64, tol float64) (ld float64, rank int) {
	for _, e := range eigs {
		if e > tol {
			ld += math.Log(e)
			rank++
		}
	}
	return ld, rank
}
