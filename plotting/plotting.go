// Package plotting renders training curves as standalone HTML charts.
package plotting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"rlgym/reinforcement"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Pad extends every curve to the longest one by repeating its last value, so
// agents that converged early stay visible at their final level.
func Pad(results []reinforcement.Result) (rounds int, curves [][]float64) {
	for _, res := range results {
		if len(res.Rewards) > rounds {
			rounds = len(res.Rewards)
		}
	}
	for _, res := range results {
		curve := append([]float64(nil), res.Rewards...)
		for len(curve) > 0 && len(curve) < rounds {
			curve = append(curve, curve[len(curve)-1])
		}
		curves = append(curves, curve)
	}
	return
}

// RewardChart builds a line chart of mean evaluation reward per round, one series per agent.
func RewardChart(title string, results []reinforcement.Result) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: "mean evaluation reward per round",
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "round"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "reward"}),
	)

	rounds, curves := Pad(results)
	xs := make([]string, 0, rounds)
	for i := 1; i <= rounds; i++ {
		xs = append(xs, fmt.Sprintf("%d", i))
	}
	line.SetXAxis(xs)

	for i, res := range results {
		items := make([]opts.LineData, 0, len(curves[i]))
		for _, v := range curves[i] {
			items = append(items, opts.LineData{Value: v})
		}
		name := fmt.Sprintf("%s, %d iter, %d steps", res.Agent, res.Iterations, res.Steps)
		line.AddSeries(name, items)
	}
	return line
}

// Render writes the chart page to w.
func Render(w io.Writer, title string, results []reinforcement.Result) error {
	page := components.NewPage()
	page.AddCharts(RewardChart(title, results))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// WriteFile renders the chart page to path, creating parent directories.
func WriteFile(path, title string, results []reinforcement.Result) (err error) {
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("chart dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("chart file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Render(f, title, results)
}
