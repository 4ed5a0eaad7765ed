// Package pipeline orchestrates one analysis run: load tracks, align, turn
// positions into bearings, accumulate circular correlations, extract
// critical periods, fit the population trend, and emit the result bundle
// with its report artifacts.
package pipeline

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dahliasan/Elephant-Weaners/internal/align"
	"github.com/dahliasan/Elephant-Weaners/internal/circstat"
	"github.com/dahliasan/Elephant-Weaners/internal/config"
	"github.com/dahliasan/Elephant-Weaners/internal/critical"
	"github.com/dahliasan/Elephant-Weaners/internal/geo"
	"github.com/dahliasan/Elephant-Weaners/internal/report"
	"github.com/dahliasan/Elephant-Weaners/internal/runlog"
	"github.com/dahliasan/Elephant-Weaners/internal/stats"
	"github.com/dahliasan/Elephant-Weaners/internal/store"
	"github.com/dahliasan/Elephant-Weaners/internal/trend"
)

// SealData is one individual's raw input: the observed track and the
// simulated particle track released from its departure point.
type SealData struct {
	ID            string
	SealFixes     []geo.Fix
	ParticleFixes []geo.Fix
}

// Outcome is everything one analysis run derives, ready for the store and
// the report stage.
type Outcome struct {
	AlignedFixes []store.AlignedFixRow
	Bearings     []store.BearingRow
	Points       []circstat.Point
	Criticals    []critical.Record
	TrendFit     *store.TrendFitRow
	Curve        []store.CurvePoint
	Effects      []store.SealEffect
	Tests        []stats.TestResult
	ReportSeals  []report.SealSeries
	// Excluded maps a dropped seal id to the reason it was excluded.
	Excluded map[string]string
}

// Analyze runs the full analytical core over the loaded seals. Alignment
// defects abort the run; degenerate individuals are excluded and recorded
// in Outcome.Excluded; a trend fit failure is surfaced in the transcript
// and leaves Outcome.TrendFit nil rather than discarding the rest of the
// bundle.
func Analyze(seals []SealData, cadence time.Duration, minWindow, basisDim, curvePoints int) (*Outcome, error) {
	out := &Outcome{Excluded: make(map[string]string)}

	sort.Slice(seals, func(i, j int) bool { return seals[i].ID < seals[j].ID })

	pointsByID := make(map[string][]circstat.Point)
	var order []string

	for _, sd := range seals {
		sealBuckets := align.Resample(sd.SealFixes, cadence)
		particleBuckets := align.Resample(sd.ParticleFixes, cadence)

		pairing, err := align.Pair(sd.ID, sealBuckets, particleBuckets, cadence)
		if err != nil {
			return nil, err
		}
		if err := align.Verify(pairing); err != nil {
			return nil, err
		}

		// A track needs minWindow+1 aligned positions before any window
		// reaches the validity floor.
		if len(pairing.Seal) < minWindow+1 {
			out.Excluded[sd.ID] = fmt.Sprintf("only %d aligned days, need %d", len(pairing.Seal), minWindow+1)
			runlog.Logf("seal %s excluded: %s", sd.ID, out.Excluded[sd.ID])
			continue
		}

		sealTrack, particleTrack := align.Tracks(pairing)
		sealBearings := geo.Bearings(sealTrack)
		particleBearings := geo.Bearings(particleTrack)

		n := len(sealBearings)
		elapsed := pairing.Elapsed[:n]
		sealDeg := make([]float64, n)
		particleDeg := make([]float64, n)
		for i := 0; i < n; i++ {
			sealDeg[i] = sealBearings[i].Degrees
			particleDeg[i] = particleBearings[i].Degrees
		}

		points, err := circstat.Cumulative(sd.ID, elapsed, sealDeg, particleDeg, minWindow)
		if err != nil {
			return nil, err
		}
		if len(points) == 0 {
			out.Excluded[sd.ID] = "no computable correlation windows"
			runlog.Logf("seal %s excluded: %s", sd.ID, out.Excluded[sd.ID])
			continue
		}

		out.Points = append(out.Points, points...)
		pointsByID[sd.ID] = points
		order = append(order, sd.ID)

		out.AlignedFixes = append(out.AlignedFixes, alignedRows(pairing)...)
		out.Bearings = append(out.Bearings, bearingRows(pairing, sealBearings, "seal")...)
		out.Bearings = append(out.Bearings, bearingRows(pairing, particleBearings, "particle")...)
		out.ReportSeals = append(out.ReportSeals, reportSeries(pairing, elapsed, sealDeg, particleDeg))

		runlog.Logf("seal %s: %d aligned days, %d correlation points", sd.ID, len(pairing.Seal), len(points))
	}

	out.Criticals = critical.ExtractAll(pointsByID, order)
	runlog.Logf("critical periods extracted for %d of %d analyzed seals", len(out.Criticals), len(order))

	fitTrend(out, basisDim, curvePoints)
	summaryTests(out)
	return out, nil
}

func fitTrend(out *Outcome, basisDim, curvePoints int) {
	var rows []trend.Row
	for _, p := range out.Points {
		if p.Valid && !math.IsNaN(p.Correlation) {
			rows = append(rows, trend.Row{ID: p.ID, ElapsedDays: p.ElapsedDays, Correlation: p.Correlation})
		}
	}
	mdl, err := trend.Fit(rows, trend.Options{BasisDim: basisDim})
	if err != nil {
		// A fit failure is diagnostic output, not a reason to discard
		// the per-seal results already computed.
		runlog.Logf("trend model not fitted: %v", err)
		return
	}

	st := mdl.TestSmooth()
	ls, lr := mdl.Lambdas()
	out.TrendFit = &store.TrendFitRow{
		EDF:          mdl.EDF(),
		EDFTotal:     mdl.EDFTotal(),
		SmoothStat:   st.Statistic,
		SmoothDF:     st.DF,
		SmoothP:      st.PValue,
		RSquared:     mdl.RSquared(),
		Sigma2:       mdl.Sigma2(),
		LambdaSmooth: ls,
		LambdaRandom: lr,
		Intercept:    mdl.Intercept(),
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range rows {
		lo = math.Min(lo, r.ElapsedDays)
		hi = math.Max(hi, r.ElapsedDays)
	}
	if curvePoints < 2 {
		curvePoints = 2
	}
	for i := 0; i < curvePoints; i++ {
		x := lo + (hi-lo)*float64(i)/float64(curvePoints-1)
		fit, se := mdl.Predict(x)
		out.Curve = append(out.Curve, store.CurvePoint{ElapsedDays: x, Fit: fit, SE: se})
	}

	effects := mdl.RandomEffects()
	ids := make([]string, 0, len(effects))
	for id := range effects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out.Effects = append(out.Effects, store.SealEffect{SealID: id, Intercept: effects[id]})
	}

	runlog.Logf("trend fitted: edf=%.2f, smooth p=%.4g, r²=%.3f", mdl.EDF(), st.PValue, mdl.RSquared())
}

func summaryTests(out *Outcome) {
	var maxes, days []float64
	for _, c := range out.Criticals {
		maxes = append(maxes, c.MaxCorrelation)
		days = append(days, c.DaysAtMax)
	}

	if t, err := stats.OneSampleTTest("mean critical correlation vs zero", maxes, 0); err != nil {
		runlog.Logf("t-test skipped: %v", err)
	} else {
		out.Tests = append(out.Tests, t)
		runlog.Logf("%s: t=%.3f, p=%.4g", t.Name, t.Statistic, t.PValue)
	}

	if t, err := stats.PearsonTest("days to max vs max correlation", days, maxes); err != nil {
		runlog.Logf("correlation test skipped: %v", err)
	} else {
		out.Tests = append(out.Tests, t)
		runlog.Logf("%s: r=%.3f, p=%.4g", t.Name, t.Estimate, t.PValue)
	}
}

func alignedRows(p align.Pairing) []store.AlignedFixRow {
	rows := make([]store.AlignedFixRow, 0, 2*len(p.Seal))
	for i := range p.Seal {
		rows = append(rows, store.AlignedFixRow{
			SealID: p.ID, Source: "seal", BucketTime: p.Seal[i].Time,
			ElapsedDays: p.Elapsed[i], Lon: p.Seal[i].Lon, Lat: p.Seal[i].Lat, FixCount: p.Seal[i].Count,
		})
		rows = append(rows, store.AlignedFixRow{
			SealID: p.ID, Source: "particle", BucketTime: p.Particle[i].Time,
			ElapsedDays: p.Elapsed[i], Lon: p.Particle[i].Lon, Lat: p.Particle[i].Lat, FixCount: p.Particle[i].Count,
		})
	}
	return rows
}

func bearingRows(p align.Pairing, bearings []geo.Bearing, source string) []store.BearingRow {
	rows := make([]store.BearingRow, 0, len(bearings))
	for i, b := range bearings {
		rows = append(rows, store.BearingRow{
			SealID: p.ID, Source: source, BucketTime: b.Time,
			ElapsedDays: p.Elapsed[i], BearingDeg: b.Degrees,
		})
	}
	return rows
}

func reportSeries(p align.Pairing, elapsed, sealDeg, particleDeg []float64) report.SealSeries {
	s := report.SealSeries{
		ID:          p.ID,
		Elapsed:     elapsed,
		SealDeg:     sealDeg,
		ParticleDeg: particleDeg,
	}
	for i := range p.Seal {
		s.SealLon = append(s.SealLon, p.Seal[i].Lon)
		s.SealLat = append(s.SealLat, p.Seal[i].Lat)
		s.ParticleLon = append(s.ParticleLon, p.Particle[i].Lon)
		s.ParticleLat = append(s.ParticleLat, p.Particle[i].Lat)
	}
	return s
}

// logCurrentSummary reports the mean daily current speed along one
// particle's path, a quick sanity check on the simulation inputs.
func logCurrentSummary(id string, times []time.Time, us, vs []float64, cadence time.Duration) {
	uByDay := align.MeanByBucket(times, us, cadence)
	vByDay := align.MeanByBucket(times, vs, cadence)
	var speedSum float64
	var n int
	for day, u := range uByDay {
		v := vByDay[day]
		if math.IsNaN(u) || math.IsNaN(v) {
			continue
		}
		speedSum += math.Hypot(u, v)
		n++
	}
	if n > 0 {
		runlog.Logf("seal %s: mean daily current speed %.3f m/s over %d days", id, speedSum/float64(n), n)
	}
}

// Run executes the whole batch job per the given parameters: read inputs,
// analyze, persist the bundle, render the report. The transcript must
// already be installed by the caller.
func Run(params *config.Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(*params.OutputDir, 0755); err != nil {
		return fmt.Errorf("pipeline: create output dir: %w", err)
	}

	input, err := store.Open(*params.InputDB)
	if err != nil {
		return err
	}
	defer input.Close()

	var seals []SealData
	err = runlog.Run("load", func() error {
		covariates, err := input.ReadSeals()
		if err != nil {
			return err
		}
		for _, s := range covariates {
			if !s.MassKg.Valid {
				runlog.Logf("seal %s excluded: no departure mass recorded", s.ID)
				continue
			}
			sealFixes, err := input.ReadSealFixes(s.ID)
			if err != nil {
				return err
			}
			particleFixes, err := input.ReadParticleFixes(s.ID)
			if err != nil {
				return err
			}
			if len(sealFixes) == 0 || len(particleFixes) == 0 {
				runlog.Logf("seal %s excluded: missing track data (%d seal fixes, %d particle fixes)", s.ID, len(sealFixes), len(particleFixes))
				continue
			}
			fixes := make([]geo.Fix, len(particleFixes))
			times := make([]time.Time, len(particleFixes))
			us := make([]float64, len(particleFixes))
			vs := make([]float64, len(particleFixes))
			for i, p := range particleFixes {
				fixes[i] = p.Fix
				times[i] = p.Time
				us[i] = p.U
				vs[i] = p.V
			}
			logCurrentSummary(s.ID, times, us, vs, params.Cadence())
			seals = append(seals, SealData{ID: s.ID, SealFixes: sealFixes, ParticleFixes: fixes})
		}
		runlog.Logf("loaded %d seals with complete inputs", len(seals))
		return nil
	})
	if err != nil {
		return err
	}

	started := time.Now().UTC()
	var out *Outcome
	err = runlog.Run("analyze", func() error {
		var err error
		out, err = Analyze(seals, params.Cadence(), *params.MinWindow, *params.TrendBasisDim, *params.TrendCurvePoints)
		return err
	})
	if err != nil {
		return err
	}

	run := store.Run{
		RunID:        uuid.NewString(),
		StartedAt:    started,
		FinishedAt:   time.Now().UTC(),
		CadenceHours: *params.CadenceHours,
		MinWindow:    *params.MinWindow,
		SealCount:    len(seals) - len(out.Excluded),
	}

	err = runlog.Run("persist", func() error {
		results, err := store.Open(filepath.Join(*params.OutputDir, *params.ResultsDB))
		if err != nil {
			return err
		}
		defer results.Close()
		if err := results.MigrateUp(); err != nil {
			return err
		}
		return results.WriteBundle(store.Bundle{
			Run:          run,
			AlignedFixes: out.AlignedFixes,
			Bearings:     out.Bearings,
			Correlations: out.Points,
			Criticals:    out.Criticals,
			TrendFit:     out.TrendFit,
			TrendCurve:   out.Curve,
			SealEffects:  out.Effects,
			SummaryTests: out.Tests,
		})
	})
	if err != nil {
		return err
	}

	return runlog.Run("report", func() error {
		curve := make([]report.CurvePoint, len(out.Curve))
		for i, c := range out.Curve {
			curve[i] = report.CurvePoint{ElapsedDays: c.ElapsedDays, Fit: c.Fit, SE: c.SE}
		}
		written, err := report.RenderAll(*params.OutputDir, report.Input{
			Seals:     out.ReportSeals,
			Points:    out.Points,
			Criticals: out.Criticals,
			Curve:     curve,
		})
		if err != nil {
			return err
		}
		runlog.Logf("run %s: wrote %d artifacts to %s", run.RunID, len(written), *params.OutputDir)
		return nil
	})
}
