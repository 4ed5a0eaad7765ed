// Package report renders the fixed set of run artifacts: PNG plots of the
// bearing series, paths, correlation curves and critical-period summaries,
// a trend diagnostic image, and an interactive HTML overview.
package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/dahliasan/Elephant-Weaners/internal/circstat"
	"github.com/dahliasan/Elephant-Weaners/internal/critical"
)

// SealSeries carries one seal's aligned data as the plots consume it.
type SealSeries struct {
	ID          string
	Elapsed     []float64 // one value per bearing pair
	SealDeg     []float64
	ParticleDeg []float64
	SealLon     []float64
	SealLat     []float64
	ParticleLon []float64
	ParticleLat []float64
}

// CurvePoint is one evaluation of the fitted trend curve.
type CurvePoint struct {
	ElapsedDays float64
	Fit         float64
	SE          float64
}

// Input is everything the report stage consumes, read-only.
type Input struct {
	Seals     []SealSeries
	Points    []circstat.Point
	Criticals []critical.Record
	Curve     []CurvePoint
}

// Artifact filenames, fixed per run.
const (
	FileBearings   = "bearings_over_time.png"
	FilePaths      = "path_arrows.png"
	FileCumulative = "cumulative_correlation.png"
	FileCorrHist   = "correlation_hist.png"
	FileMaxHist    = "max_correlation_hist.png"
	FileMaxVsDays  = "max_correlation_vs_days.png"
	FileTrendTerms = "trend_terms.png"
	FileOverview   = "overview.html"
)

const (
	plotWidth  = 10 * vg.Inch
	plotHeight = 6 * vg.Inch
)

// RenderAll writes every PNG artifact plus the HTML overview into dir and
// returns the paths written.
func RenderAll(dir string, in Input) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("report: create output dir: %w", err)
	}

	steps := []struct {
		file   string
		render func(string) error
	}{
		{FileBearings, func(p string) error { return plotBearings(p, in.Seals) }},
		{FilePaths, func(p string) error { return plotPaths(p, in.Seals) }},
		{FileCumulative, func(p string) error { return plotCumulative(p, in.Points) }},
		{FileCorrHist, func(p string) error { return plotCorrelationHist(p, in.Points) }},
		{FileMaxHist, func(p string) error { return plotMaxHist(p, in.Criticals) }},
		{FileMaxVsDays, func(p string) error { return plotMaxVsDays(p, in.Criticals) }},
		{FileTrendTerms, func(p string) error { return plotTrendTerms(p, in.Points, in.Curve) }},
		{FileOverview, func(p string) error { return renderOverview(p, in) }},
	}

	var written []string
	for _, s := range steps {
		path := filepath.Join(dir, s.file)
		if err := s.render(path); err != nil {
			return written, fmt.Errorf("report: %s: %w", s.file, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func plotBearings(path string, seals []SealSeries) error {
	p := plot.New()
	p.Title.Text = "Travel bearings over time"
	p.X.Label.Text = "Days since departure"
	p.Y.Label.Text = "Bearing (deg)"
	p.Y.Min, p.Y.Max = 0, 360

	colors := generateColors(len(seals))
	for i, s := range seals {
		sealPts := make(plotter.XYs, len(s.Elapsed))
		partPts := make(plotter.XYs, len(s.Elapsed))
		for j := range s.Elapsed {
			sealPts[j] = plotter.XY{X: s.Elapsed[j], Y: s.SealDeg[j]}
			partPts[j] = plotter.XY{X: s.Elapsed[j], Y: s.ParticleDeg[j]}
		}
		sealLine, err := plotter.NewLine(sealPts)
		if err != nil {
			return err
		}
		sealLine.Color = colors[i]
		sealLine.Width = vg.Points(1)
		p.Add(sealLine)
		p.Legend.Add(s.ID+" seal", sealLine)

		partLine, err := plotter.NewLine(partPts)
		if err != nil {
			return err
		}
		partLine.Color = colors[i]
		partLine.Width = vg.Points(1)
		partLine.Dashes = []vg.Length{vg.Points(3), vg.Points(2)}
		p.Add(partLine)
		p.Legend.Add(s.ID+" particle", partLine)
	}
	p.Legend.Top = true
	return p.Save(plotWidth, plotHeight, path)
}

func plotPaths(path string, seals []SealSeries) error {
	p := plot.New()
	p.Title.Text = "Seal and particle paths"
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"

	colors := generateColors(len(seals))
	for i, s := range seals {
		for _, src := range []struct {
			name     string
			lon, lat []float64
			dashed   bool
		}{
			{"seal", s.SealLon, s.SealLat, false},
			{"particle", s.ParticleLon, s.ParticleLat, true},
		} {
			pts := make(plotter.XYs, len(src.lon))
			for j := range src.lon {
				pts[j] = plotter.XY{X: src.lon[j], Y: src.lat[j]}
			}
			line, scatter, err := plotter.NewLinePoints(pts)
			if err != nil {
				return err
			}
			line.Color = colors[i]
			scatter.Color = colors[i]
			scatter.Radius = vg.Points(1.5)
			if src.dashed {
				line.Dashes = []vg.Length{vg.Points(3), vg.Points(2)}
			}
			p.Add(line, scatter)
			p.Legend.Add(fmt.Sprintf("%s %s", s.ID, src.name), line)
		}
	}
	p.Legend.Top = true
	return p.Save(plotWidth, plotHeight, path)
}

func plotCumulative(path string, points []circstat.Point) error {
	p := plot.New()
	p.Title.Text = "Cumulative circular correlation by seal"
	p.X.Label.Text = "Days since departure"
	p.Y.Label.Text = "Correlation"

	byID, order := groupPoints(points)
	colors := generateColors(len(order))
	for i, id := range order {
		var pts plotter.XYs
		for _, pt := range byID[id] {
			if !pt.Valid {
				continue
			}
			pts = append(pts, plotter.XY{X: pt.ElapsedDays, Y: pt.Correlation})
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(id, line)
	}
	p.Legend.Top = true
	return p.Save(plotWidth, plotHeight, path)
}

func plotCorrelationHist(path string, points []circstat.Point) error {
	var vals plotter.Values
	for _, pt := range points {
		if pt.Valid {
			vals = append(vals, pt.Correlation)
		}
	}
	return histogram(path, "Cumulative correlations (all seals, all windows)", "Correlation", vals)
}

func plotMaxHist(path string, criticals []critical.Record) error {
	var vals plotter.Values
	for _, c := range criticals {
		vals = append(vals, c.MaxCorrelation)
	}
	return histogram(path, "Maximum cumulative correlation per seal", "Max correlation", vals)
}

func histogram(path, title, xlabel string, vals plotter.Values) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = "Count"

	if len(vals) > 0 {
		bins := 16
		if len(vals) < bins {
			bins = len(vals)
		}
		h, err := plotter.NewHist(vals, bins)
		if err != nil {
			return err
		}
		h.FillColor = color.RGBA{R: 100, G: 140, B: 200, A: 255}
		p.Add(h)
	}
	return p.Save(plotWidth, plotHeight, path)
}

func plotMaxVsDays(path string, criticals []critical.Record) error {
	p := plot.New()
	p.Title.Text = "Critical period: peak agreement vs time to peak"
	p.X.Label.Text = "Days to maximum"
	p.Y.Label.Text = "Max correlation"

	pts := make(plotter.XYs, len(criticals))
	for i, c := range criticals {
		pts[i] = plotter.XY{X: c.DaysAtMax, Y: c.MaxCorrelation}
	}
	if len(pts) > 0 {
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		scatter.Radius = vg.Points(2.5)
		p.Add(scatter)
	}
	return p.Save(plotWidth, plotHeight, path)
}

func plotTrendTerms(path string, points []circstat.Point, curve []CurvePoint) error {
	p := plot.New()
	p.Title.Text = "Population trend of drift agreement"
	p.X.Label.Text = "Days since departure"
	p.Y.Label.Text = "Correlation"

	var obs plotter.XYs
	for _, pt := range points {
		if pt.Valid {
			obs = append(obs, plotter.XY{X: pt.ElapsedDays, Y: pt.Correlation})
		}
	}
	if len(obs) > 0 {
		scatter, err := plotter.NewScatter(obs)
		if err != nil {
			return err
		}
		scatter.Color = color.RGBA{R: 160, G: 160, B: 160, A: 255}
		scatter.Radius = vg.Points(1.2)
		p.Add(scatter)
	}

	if len(curve) > 0 {
		fit := make(plotter.XYs, len(curve))
		upper := make(plotter.XYs, len(curve))
		lower := make(plotter.XYs, len(curve))
		for i, c := range curve {
			fit[i] = plotter.XY{X: c.ElapsedDays, Y: c.Fit}
			upper[i] = plotter.XY{X: c.ElapsedDays, Y: c.Fit + 2*c.SE}
			lower[i] = plotter.XY{X: c.ElapsedDays, Y: c.Fit - 2*c.SE}
		}
		fitLine, err := plotter.NewLine(fit)
		if err != nil {
			return err
		}
		fitLine.Color = color.RGBA{R: 200, G: 60, B: 60, A: 255}
		fitLine.Width = vg.Points(2)
		p.Add(fitLine)
		p.Legend.Add("smooth fit", fitLine)

		for _, band := range []plotter.XYs{upper, lower} {
			bandLine, err := plotter.NewLine(band)
			if err != nil {
				return err
			}
			bandLine.Color = color.RGBA{R: 200, G: 60, B: 60, A: 255}
			bandLine.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
			p.Add(bandLine)
		}
	}
	p.Legend.Top = true
	return p.Save(plotWidth, plotHeight, path)
}

// groupPoints partitions points by seal id, preserving first-seen order.
func groupPoints(points []circstat.Point) (map[string][]circstat.Point, []string) {
	byID := make(map[string][]circstat.Point)
	var order []string
	for _, pt := range points {
		if _, seen := byID[pt.ID]; !seen {
			order = append(order, pt.ID)
		}
		byID[pt.ID] = append(byID[pt.ID], pt)
	}
	return byID, order
}

// generateColors spreads n hues evenly around the wheel.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.45)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64
	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3)
	}
	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 1.0/2:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	default:
		return p
	}
}
