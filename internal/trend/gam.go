// Package trend fits the population-level trajectory of drift agreement: a
// penalized cubic B-spline smooth of cumulative circular correlation over
// elapsed days, with a ridge-penalized random intercept per seal. Smoothing
// parameters for both penalty blocks are chosen by a restricted-likelihood
// (REML) criterion over a log-spaced grid; the linear algebra is gonum's.
package trend

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Row is one pooled observation: one valid cumulative correlation point.
type Row struct {
	ID          string
	ElapsedDays float64
	Correlation float64
}

// Options control the model size and the smoothing-parameter search.
type Options struct {
	// BasisDim is the cubic B-spline basis dimension. Zero means 10; the
	// fit clamps it below the number of distinct elapsed-day values.
	BasisDim int
	// GridSize is the number of log-spaced candidates per smoothing
	// parameter. Zero means 13 (1e-4 .. 1e4).
	GridSize int
}

// SmoothTest is the approximate Wald test of the smooth term against a flat
// (zero-effect) line.
type SmoothTest struct {
	Statistic float64
	DF        float64
	PValue    float64
}

// Model is a fitted trend: an evaluable population curve plus per-seal
// intercepts and the usual fit diagnostics.
type Model struct {
	basis    *bspline
	colMean  []float64
	ids      []string
	beta     *mat.VecDense
	vbeta    *mat.SymDense
	sigma2   float64
	edf      float64
	edfTotal float64
	lambdaS  float64
	lambdaR  float64
	rsq      float64
	n        int
}

// Fit builds the penalized regression from the pooled rows and selects the
// two smoothing parameters by minimizing the REML score. It returns an
// error when the pooled data cannot support a smooth (too few rows or
// distinct elapsed values) or when no candidate penalty yields a
// positive-definite system (non-convergence, §7 kind 4).
func Fit(rows []Row, opts Options) (*Model, error) {
	if opts.BasisDim <= 0 {
		opts.BasisDim = 10
	}
	if opts.GridSize <= 0 {
		opts.GridSize = 13
	}

	n := len(rows)
	if n < 8 {
		return nil, fmt.Errorf("trend: %d pooled points, need at least 8", n)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	distinct := make(map[float64]bool)
	idSet := make(map[string]bool)
	for _, r := range rows {
		if math.IsNaN(r.ElapsedDays) || math.IsNaN(r.Correlation) {
			return nil, fmt.Errorf("trend: NaN row for individual %s", r.ID)
		}
		lo = math.Min(lo, r.ElapsedDays)
		hi = math.Max(hi, r.ElapsedDays)
		distinct[r.ElapsedDays] = true
		idSet[r.ID] = true
	}
	if len(distinct) < 5 {
		return nil, fmt.Errorf("trend: only %d distinct elapsed values, need at least 5", len(distinct))
	}

	ks := opts.BasisDim
	if ks > len(distinct)-1 {
		ks = len(distinct) - 1
	}
	if ks < 4 {
		ks = 4
	}

	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	idCol := make(map[string]int, len(ids))
	for i, id := range ids {
		idCol[id] = i
	}
	m := len(ids)

	basis, err := newBSpline(ks, lo, hi)
	if err != nil {
		return nil, err
	}

	// Design: [ intercept | centered smooth basis | seal indicators ].
	p := 1 + ks + m
	x := mat.NewDense(n, p, nil)
	y := mat.NewVecDense(n, nil)
	colMean := make([]float64, ks)
	raw := make([][]float64, n)
	for i, r := range rows {
		raw[i] = basis.eval(r.ElapsedDays)
		for j, v := range raw[i] {
			colMean[j] += v / float64(n)
		}
	}
	for i, r := range rows {
		x.Set(i, 0, 1)
		for j, v := range raw[i] {
			x.Set(i, 1+j, v-colMean[j])
		}
		x.Set(i, 1+ks+idCol[r.ID], 1)
		y.SetVec(i, r.Correlation)
	}

	var xtxDense mat.Dense
	xtxDense.Mul(x.T(), x)
	xtx := denseToSym(&xtxDense)

	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	// Smooth penalty and its log pseudo-determinant (computed once).
	sPen := differencePenalty(ks)
	sSym := mat.NewSymDense(ks, nil)
	for i := 0; i < ks; i++ {
		for j := i; j < ks; j++ {
			sSym.SetSym(i, j, sPen[i][j])
		}
	}
	var sEig mat.EigenSym
	if !sEig.Factorize(sSym, false) {
		return nil, fmt.Errorf("trend: penalty eigendecomposition failed")
	}
	eigs := sEig.Values(nil)
	ldS, rankS := logDetPlus(eigs, 1e-10)

	_, tss := meanAndTSS(rows)

	// REML grid search over the two smoothing parameters.
	grid := make([]float64, opts.GridSize)
	for i := range grid {
		frac := float64(i) / float64(opts.GridSize-1)
		grid[i] = math.Pow(10, -4+8*frac)
	}

	best := math.Inf(1)
	var bestLS, bestLR float64
	var bestChol mat.Cholesky
	var bestBeta mat.VecDense
	var bestRSS float64
	found := false

	for _, ls := range grid {
		for _, lr := range grid {
			pl := mat.NewSymDense(p, nil)
			pl.CopySym(xtx)
			for i := 0; i < ks; i++ {
				for j := i; j < ks; j++ {
					pl.SetSym(1+i, 1+j, pl.At(1+i, 1+j)+ls*sPen[i][j])
				}
			}
			for i := 0; i < m; i++ {
				d := 1 + ks + i
				pl.SetSym(d, d, pl.At(d, d)+lr)
			}

			var chol mat.Cholesky
			if !chol.Factorize(pl) {
				continue
			}
			var beta mat.VecDense
			if err := chol.SolveVecTo(&beta, &xty); err != nil {
				continue
			}

			rss := residualSS(x, y, &beta)
			pen := penaltyTerm(&beta, sPen, ks, m, ls, lr)

			// Profiled REML score up to an additive constant; the
			// unpenalized null space is the intercept alone (Mp = 1),
			// so sigma^2 profiles out against n-1.
			sig2 := (rss + pen) / float64(n-1)
			if sig2 <= 0 {
				continue
			}
			score := float64(n-1)*math.Log(sig2) + chol.LogDet() -
				(float64(rankS)*math.Log(ls) + ldS + float64(m)*math.Log(lr))
			if score < best {
				best = score
				bestLS, bestLR = ls, lr
				bestChol = chol
				bestBeta.CloneFromVec(&beta)
				bestRSS = rss
				found = true
			}
		}
	}
	if !found {
		return nil, fmt.Errorf("trend: smoothing search failed to converge: no positive-definite penalized system on the grid")
	}

	// Effective degrees of freedom: diagonal of (XᵀX + Sλ)⁻¹ XᵀX.
	var pinv mat.SymDense
	if err := bestChol.InverseTo(&pinv); err != nil {
		return nil, fmt.Errorf("trend: penalized inverse failed: %w", err)
	}
	var hat mat.Dense
	hat.Mul(&pinv, xtx)
	edfSmooth := 0.0
	edfTotal := 0.0
	for i := 0; i < p; i++ {
		edfTotal += hat.At(i, i)
		if i >= 1 && i < 1+ks {
			edfSmooth += hat.At(i, i)
		}
	}

	resid := float64(n) - edfTotal
	if resid < 1 {
		resid = 1
	}
	sigma2 := bestRSS / resid

	vbeta := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			vbeta.SetSym(i, j, sigma2*pinv.At(i, j))
		}
	}

	return &Model{
		basis:    basis,
		colMean:  colMean,
		ids:      ids,
		beta:     &bestBeta,
		vbeta:    vbeta,
		sigma2:   sigma2,
		edf:      edfSmooth,
		edfTotal: edfTotal,
		lambdaS:  bestLS,
		lambdaR:  bestLR,
		rsq:      1 - bestRSS/tss,
		n:        n,
	}, nil
}

// Predict evaluates the population-average curve (random intercepts at
// zero) at an elapsed day, returning the fit and its standard error.
// Elapsed values outside the fitted range are clamped to the boundary.
func (mdl *Model) Predict(elapsed float64) (fit, se float64) {
	ks := mdl.basis.nbasis
	row := make([]float64, 1+ks)
	row[0] = 1
	for j, v := range mdl.basis.eval(elapsed) {
		row[1+j] = v - mdl.colMean[j]
	}
	for j, v := range row {
		fit += v * mdl.beta.AtVec(j)
	}
	var variance float64
	for i, vi := range row {
		for j, vj := range row {
			variance += vi * vj * mdl.vbeta.At(i, j)
		}
	}
	if variance < 0 {
		variance = 0
	}
	return fit, math.Sqrt(variance)
}

// EDF returns the effective degrees of freedom of the smooth term.
func (mdl *Model) EDF() float64 { return mdl.edf }

// EDFTotal returns the effective degrees of freedom of the whole model,
// random intercepts included.
func (mdl *Model) EDFTotal() float64 { return mdl.edfTotal }

// RSquared returns the fraction of response variance explained by the fit.
func (mdl *Model) RSquared() float64 { return mdl.rsq }

// Sigma2 returns the residual variance estimate.
func (mdl *Model) Sigma2() float64 { return mdl.sigma2 }

// Lambdas returns the selected smoothing parameters (smooth, random).
func (mdl *Model) Lambdas() (smooth, random float64) { return mdl.lambdaS, mdl.lambdaR }

// RandomEffects returns the estimated per-seal intercepts keyed by id.
func (mdl *Model) RandomEffects() map[string]float64 {
	ks := mdl.basis.nbasis
	out := make(map[string]float64, len(mdl.ids))
	for i, id := range mdl.ids {
		out[id] = mdl.beta.AtVec(1 + ks + i)
	}
	return out
}

// Intercept returns the overall intercept of the fit.
func (mdl *Model) Intercept() float64 { return mdl.beta.AtVec(0) }

// TestSmooth performs an approximate Wald test of the smooth term against a
// flat line: βsᵀ V⁻¹ βs with V the smooth block of the coefficient
// covariance, inverted by eigen pseudo-inverse; the reference distribution
// is chi-squared on the retained rank.
func (mdl *Model) TestSmooth() SmoothTest {
	ks := mdl.basis.nbasis
	vss := mat.NewSymDense(ks, nil)
	bs := mat.NewVecDense(ks, nil)
	for i := 0; i < ks; i++ {
		bs.SetVec(i, mdl.beta.AtVec(1+i))
		for j := i; j < ks; j++ {
			vss.SetSym(i, j, mdl.vbeta.At(1+i, 1+j))
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(vss, true) {
		return SmoothTest{Statistic: math.NaN(), DF: math.NaN(), PValue: math.NaN()}
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	maxEig := 0.0
	for _, v := range vals {
		if v > maxEig {
			maxEig = v
		}
	}
	if maxEig <= 0 {
		return SmoothTest{Statistic: math.NaN(), DF: math.NaN(), PValue: math.NaN()}
	}

	// Retain at most ceil(EDF) well-conditioned components, largest first.
	maxRank := int(math.Ceil(mdl.edf))
	if maxRank < 1 {
		maxRank = 1
	}
	type comp struct {
		val float64
		idx int
	}
	var comps []comp
	for i, v := range vals {
		if v > 1e-10*maxEig {
			comps = append(comps, comp{v, i})
		}
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i].val > comps[j].val })
	if len(comps) > maxRank {
		comps = comps[:maxRank]
	}

	stat := 0.0
	for _, c := range comps {
		var proj float64
		for r := 0; r < ks; r++ {
			proj += vecs.At(r, c.idx) * bs.AtVec(r)
		}
		stat += proj * proj / c.val
	}
	df := float64(len(comps))
	chi := distuv.ChiSquared{K: df}
	return SmoothTest{Statistic: stat, DF: df, PValue: chi.Survival(stat)}
}

func denseToSym(d *mat.Dense) *mat.SymDense {
	r, _ := d.Dims()
	s := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			s.SetSym(i, j, (d.At(i, j)+d.At(j, i))/2)
		}
	}
	return s
}

func residualSS(x *mat.Dense, y *mat.VecDense, beta *mat.VecDense) float64 {
	var fitted mat.VecDense
	fitted.MulVec(x, beta)
	rss := 0.0
	for i := 0; i < y.Len(); i++ {
		d := y.AtVec(i) - fitted.AtVec(i)
		rss += d * d
	}
	return rss
}

func penaltyTerm(beta *mat.VecDense, sPen [][]float64, ks, m int, ls, lr float64) float64 {
	pen := 0.0
	for i := 0; i < ks; i++ {
		for j := 0; j < ks; j++ {
			pen += ls * beta.AtVec(1+i) * sPen[i][j] * beta.AtVec(1+j)
		}
	}
	for i := 0; i < m; i++ {
		v := beta.AtVec(1 + ks + i)
		pen += lr * v * v
	}
	return pen
}

func meanAndTSS(rows []Row) (mean, tss float64) {
	for _, r := range rows {
		mean += r.Correlation
	}
	mean /= float64(len(rows))
	for _, r := range rows {
		d := r.Correlation - mean
		tss += d * d
	}
	return mean, tss
}
