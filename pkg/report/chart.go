package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/hazyhaar/sentinela/pkg/metrics"
)

// RenderChart draws a line+point chart of one case-count series and writes it
// as a PNG to outPath. The series needs at least two points; a time axis with
// a single x value has no range to scale.
func RenderChart(series []metrics.Point, xLabel, yLabel, title, outPath string) error {
	if len(series) < 2 {
		return fmt.Errorf("render chart %q: need at least 2 points, got %d", title, len(series))
	}

	data := make([]metrics.Point, len(series))
	copy(data, series)
	sort.Slice(data, func(i, j int) bool { return data[i].Date.Before(data[j].Date) })

	xs := make([]time.Time, len(data))
	ys := make([]float64, len(data))
	for i, p := range data {
		xs[i] = p.Date
		ys[i] = float64(p.Cases)
	}

	graph := chart.Chart{
		Title:  title,
		Width:  1000,
		Height: 400,
		XAxis: chart.XAxis{
			Name:           xLabel,
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{Name: yLabel},
		Series: []chart.Series{
			chart.TimeSeries{
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: chart.ColorBlue,
					DotColor:    chart.ColorBlue,
					DotWidth:    3,
				},
			},
		},
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create chart dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	defer f.Close()

	if err := graph.Render(chart.PNG, f); err != nil {
		return fmt.Errorf("render chart %q: %w", title, err)
	}
	return nil
}
