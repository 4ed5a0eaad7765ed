package report

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// renderOverview writes an interactive HTML page with the per-seal
// cumulative correlation curves and the fitted population trend.
func renderOverview(path string, in Input) error {
	page := components.NewPage()
	page.PageTitle = "Drift agreement overview"

	corr := charts.NewLine()
	corr.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Cumulative circular correlation by seal",
			Subtitle: "Expanding window from departure",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "days", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "correlation", Type: "value"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	byID, order := groupPoints(in.Points)
	for _, id := range order {
		var data []opts.LineData
		for _, pt := range byID[id] {
			if !pt.Valid {
				continue
			}
			data = append(data, opts.LineData{Value: []interface{}{pt.ElapsedDays, pt.Correlation}})
		}
		if len(data) == 0 {
			continue
		}
		corr.AddSeries(id, data, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}))
	}
	page.AddCharts(corr)

	if len(in.Curve) > 0 {
		trend := charts.NewLine()
		trend.SetGlobalOptions(
			charts.WithTitleOpts(opts.Title{
				Title:    "Population trend",
				Subtitle: "Penalized smooth with per-seal random intercepts, ±2 SE",
			}),
			charts.WithXAxisOpts(opts.XAxis{Name: "days", Type: "value"}),
			charts.WithYAxisOpts(opts.YAxis{Name: "correlation", Type: "value"}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		)
		var fit, upper, lower []opts.LineData
		for _, c := range in.Curve {
			fit = append(fit, opts.LineData{Value: []interface{}{c.ElapsedDays, c.Fit}})
			upper = append(upper, opts.LineData{Value: []interface{}{c.ElapsedDays, c.Fit + 2*c.SE}})
			lower = append(lower, opts.LineData{Value: []interface{}{c.ElapsedDays, c.Fit - 2*c.SE}})
		}
		trend.AddSeries("fit", fit)
		trend.AddSeries("upper", upper)
		trend.AddSeries("lower", lower)
		page.AddCharts(trend)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create overview: %w", err)
	}
	defer f.Close()
	return page.Render(f)
}
