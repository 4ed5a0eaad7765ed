package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dahliasan/Elephant-Weaners/internal/circstat"
	"github.com/dahliasan/Elephant-Weaners/internal/critical"
	"github.com/dahliasan/Elephant-Weaners/internal/stats"
)

// Run identifies one analysis run in the result bundle.
type Run struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	CadenceHours float64
	MinWindow    int
	SealCount    int
}

// AlignedFixRow is one aligned bucket of either source track.
type AlignedFixRow struct {
	SealID      string
	Source      string // "seal" or "particle"
	BucketTime  time.Time
	ElapsedDays float64
	Lon         float64
	Lat         float64
	FixCount    int
}

// BearingRow is one travel bearing of either source track.
type BearingRow struct {
	SealID      string
	Source      string
	BucketTime  time.Time
	ElapsedDays float64
	BearingDeg  float64
}

// TrendFitRow summarizes the fitted trend model.
type TrendFitRow struct {
	EDF          float64
	EDFTotal     float64
	SmoothStat   float64
	SmoothDF     float64
	SmoothP      float64
	RSquared     float64
	Sigma2       float64
	LambdaSmooth float64
	LambdaRandom float64
	Intercept    float64
}

// CurvePoint is one evaluation of the fitted population curve.
type CurvePoint struct {
	ElapsedDays float64
	Fit         float64
	SE          float64
}

// SealEffect is one estimated per-seal random intercept.
type SealEffect struct {
	SealID    string
	Intercept float64
}

// Bundle is the complete structured artifact of one run.
type Bundle struct {
	Run          Run
	AlignedFixes []AlignedFixRow
	Bearings     []BearingRow
	Correlations []circstat.Point
	Criticals    []critical.Record
	TrendFit     *TrendFitRow
	TrendCurve   []CurvePoint
	SealEffects  []SealEffect
	SummaryTests []stats.TestResult
}

// WriteBundle persists the whole bundle in one transaction. The schema must
// already be migrated.
func (db *DB) WriteBundle(b Bundle) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin bundle transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec(`INSERT INTO runs (run_id, started_at, finished_at, cadence_hours, min_window, seal_count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.Run.RunID, b.Run.StartedAt.UTC().Format(timeLayout), b.Run.FinishedAt.UTC().Format(timeLayout),
		b.Run.CadenceHours, b.Run.MinWindow, b.Run.SealCount)
	if err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}

	for _, r := range b.AlignedFixes {
		_, err = tx.Exec(`INSERT INTO aligned_fixes (run_id, seal_id, source, bucket_time, elapsed_days, lon, lat, fix_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			b.Run.RunID, r.SealID, r.Source, r.BucketTime.UTC().Format(timeLayout), r.ElapsedDays,
			toNull(r.Lon), toNull(r.Lat), r.FixCount)
		if err != nil {
			return fmt.Errorf("store: insert aligned fix: %w", err)
		}
	}

	for _, r := range b.Bearings {
		_, err = tx.Exec(`INSERT INTO bearings (run_id, seal_id, source, bucket_time, elapsed_days, bearing_deg)
			VALUES (?, ?, ?, ?, ?, ?)`,
			b.Run.RunID, r.SealID, r.Source, r.BucketTime.UTC().Format(timeLayout), r.ElapsedDays, toNull(r.BearingDeg))
		if err != nil {
			return fmt.Errorf("store: insert bearing: %w", err)
		}
	}

	for _, p := range b.Correlations {
		_, err = tx.Exec(`INSERT INTO cumulative_correlations (run_id, seal_id, elapsed_days, correlation, p_value, statistic, window, valid)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			b.Run.RunID, p.ID, p.ElapsedDays, toNull(p.Correlation), toNull(p.PValue), toNull(p.Statistic), p.Window, p.Valid)
		if err != nil {
			return fmt.Errorf("store: insert correlation point: %w", err)
		}
	}

	for _, c := range b.Criticals {
		_, err = tx.Exec(`INSERT INTO critical_periods (run_id, seal_id, max_correlation, days_at_max)
			VALUES (?, ?, ?, ?)`,
			b.Run.RunID, c.ID, c.MaxCorrelation, c.DaysAtMax)
		if err != nil {
			return fmt.Errorf("store: insert critical period: %w", err)
		}
	}

	if b.TrendFit != nil {
		f := b.TrendFit
		_, err = tx.Exec(`INSERT INTO trend_fit (run_id, edf, edf_total, smooth_stat, smooth_df, smooth_p, r_squared, sigma2, lambda_smooth, lambda_random, intercept)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.Run.RunID, f.EDF, f.EDFTotal, toNull(f.SmoothStat), toNull(f.SmoothDF), toNull(f.SmoothP),
			f.RSquared, f.Sigma2, f.LambdaSmooth, f.LambdaRandom, f.Intercept)
		if err != nil {
			return fmt.Errorf("store: insert trend fit: %w", err)
		}
	}

	for _, c := range b.TrendCurve {
		_, err = tx.Exec(`INSERT INTO trend_curve (run_id, elapsed_days, fit, se) VALUES (?, ?, ?, ?)`,
			b.Run.RunID, c.ElapsedDays, c.Fit, c.SE)
		if err != nil {
			return fmt.Errorf("store: insert trend curve point: %w", err)
		}
	}

	for _, e := range b.SealEffects {
		_, err = tx.Exec(`INSERT INTO seal_effects (run_id, seal_id, intercept) VALUES (?, ?, ?)`,
			b.Run.RunID, e.SealID, e.Intercept)
		if err != nil {
			return fmt.Errorf("store: insert seal effect: %w", err)
		}
	}

	for _, s := range b.SummaryTests {
		_, err = tx.Exec(`INSERT INTO summary_tests (run_id, name, estimate, statistic, df, p_value, n)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			b.Run.RunID, s.Name, s.Estimate, s.Statistic, s.DF, s.PValue, s.N)
		if err != nil {
			return fmt.Errorf("store: insert summary test: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: commit bundle: %w", err)
	}
	return nil
}

// ReadBearings returns the stored bearing rows of one run and source,
// ordered by seal then elapsed time.
func (db *DB) ReadBearings(runID, source string) ([]BearingRow, error) {
	rows, err := db.Query(`SELECT seal_id, source, bucket_time, elapsed_days, bearing_deg
		FROM bearings WHERE run_id = ? AND source = ? ORDER BY seal_id, elapsed_days`, runID, source)
	if err != nil {
		return nil, fmt.Errorf("store: read bearings: %w", err)
	}
	defer rows.Close()

	var out []BearingRow
	for rows.Next() {
		var (
			r   BearingRow
			ts  string
			deg sql.NullFloat64
		)
		if err := rows.Scan(&r.SealID, &r.Source, &ts, &r.ElapsedDays, &deg); err != nil {
			return nil, fmt.Errorf("store: scan bearing row: %w", err)
		}
		t, err := time.Parse(timeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("store: bad bearing timestamp %q: %w", ts, err)
		}
		r.BucketTime = t.UTC()
		r.BearingDeg = fromNull(deg)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReadCorrelations returns the stored cumulative correlation points of one
// run, ordered by seal then elapsed time.
func (db *DB) ReadCorrelations(runID string) ([]circstat.Point, error) {
	rows, err := db.Query(`SELECT seal_id, elapsed_days, correlation, p_value, statistic, window, valid
		FROM cumulative_correlations WHERE run_id = ? ORDER BY seal_id, elapsed_days`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: read correlations: %w", err)
	}
	defer rows.Close()

	var out []circstat.Point
	for rows.Next() {
		var (
			p            circstat.Point
			corr, pv, st sql.NullFloat64
		)
		if err := rows.Scan(&p.ID, &p.ElapsedDays, &corr, &pv, &st, &p.Window, &p.Valid); err != nil {
			return nil, fmt.Errorf("store: scan correlation row: %w", err)
		}
		p.Correlation = fromNull(corr)
		p.PValue = fromNull(pv)
		p.Statistic = fromNull(st)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReadCriticalPeriods returns the stored critical period records of one run
// ordered by seal id.
func (db *DB) ReadCriticalPeriods(runID string) ([]critical.Record, error) {
	rows, err := db.Query(`SELECT seal_id, max_correlation, days_at_max
		FROM critical_periods WHERE run_id = ? ORDER BY seal_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: read critical periods: %w", err)
	}
	defer rows.Close()

	var out []critical.Record
	for rows.Next() {
		var c critical.Record
		if err := rows.Scan(&c.ID, &c.MaxCorrelation, &c.DaysAtMax); err != nil {
			return nil, fmt.Errorf("store: scan critical period row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
