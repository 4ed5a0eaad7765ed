// Package config holds the run parameters. All paths are explicit; nothing
// in the pipeline reads ambient filesystem locations.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Params is the runtime configuration. Fields are pointers so a partial
// JSON file overrides only what it names; unset fields keep defaults.
type Params struct {
	// InputDB is the sqlite file holding seal_fixes, particle_fixes and
	// the seals covariate table.
	InputDB *string `json:"input_db,omitempty"`
	// OutputDir receives the result bundle, plots and the transcript.
	OutputDir *string `json:"output_dir,omitempty"`
	// ResultsDB is the bundle filename inside OutputDir.
	ResultsDB *string `json:"results_db,omitempty"`
	// CadenceHours is the resample interval width. Shorter gives finer
	// but noisier correlation curves; longer gives smoother curves with
	// fewer usable points.
	CadenceHours *float64 `json:"cadence_hours,omitempty"`
	// MinWindow is the smallest expanding window treated as a valid
	// correlation point.
	MinWindow *int `json:"min_window,omitempty"`
	// TrendBasisDim is the B-spline basis dimension of the trend smooth.
	TrendBasisDim *int `json:"trend_basis_dim,omitempty"`
	// TrendCurvePoints is the evaluation grid size for the stored and
	// plotted trend curve.
	TrendCurvePoints *int `json:"trend_curve_points,omitempty"`
}

func ptrString(v string) *string    { return &v }
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// Default returns the full default parameter set.
func Default() *Params {
	return &Params{
		InputDB:          ptrString("tracks.db"),
		OutputDir:        ptrString("output"),
		ResultsDB:        ptrString("results.db"),
		CadenceHours:     ptrFloat64(24),
		MinWindow:        ptrInt(3),
		TrendBasisDim:    ptrInt(10),
		TrendCurvePoints: ptrInt(200),
	}
}

// Load reads a partial JSON parameter file and applies it over defaults.
func Load(path string) (*Params, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config: file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("config: stat: %w", err)
	}
	const maxFileSize = 1 << 20
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config: file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	var override Params
	if err := json.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	p := Default()
	p.Merge(&override)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Merge overlays non-nil fields from o.
func (p *Params) Merge(o *Params) {
	if o == nil {
		return
	}
	if o.InputDB != nil {
		p.InputDB = o.InputDB
	}
	if o.OutputDir != nil {
		p.OutputDir = o.OutputDir
	}
	if o.ResultsDB != nil {
		p.ResultsDB = o.ResultsDB
	}
	if o.CadenceHours != nil {
		p.CadenceHours = o.CadenceHours
	}
	if o.MinWindow != nil {
		p.MinWindow = o.MinWindow
	}
	if o.TrendBasisDim != nil {
		p.TrendBasisDim = o.TrendBasisDim
	}
	if o.TrendCurvePoints != nil {
		p.TrendCurvePoints = o.TrendCurvePoints
	}
}

// Validate checks every parameter that has a hard constraint.
func (p *Params) Validate() error {
	if p.InputDB == nil || *p.InputDB == "" {
		return fmt.Errorf("config: input_db is required")
	}
	if p.OutputDir == nil || *p.OutputDir == "" {
		return fmt.Errorf("config: output_dir is required")
	}
	if p.CadenceHours == nil || *p.CadenceHours <= 0 {
		return fmt.Errorf("config: cadence_hours must be positive")
	}
	if p.MinWindow == nil || *p.MinWindow < 2 {
		return fmt.Errorf("config: min_window must be at least 2")
	}
	if p.TrendBasisDim != nil && *p.TrendBasisDim < 4 {
		return fmt.Errorf("config: trend_basis_dim must be at least 4")
	}
	if p.TrendCurvePoints != nil && *p.TrendCurvePoints < 2 {
		return fmt.Errorf("config: trend_curve_points must be at least 2")
	}
	return nil
}

// Cadence returns the resample interval as a duration.
func (p *Params) Cadence() time.Duration {
	return time.Duration(*p.CadenceHours * float64(time.Hour))
}
