package summary

import (
	"fmt"
	"io"
	"time"

	"github.com/dukerupert/wadake/internal/model"
	"github.com/wcharczuk/go-chart/v2"
)

// RenderTrend draws income, expense and net income per month as a PNG.
// Points must be oldest first, as TrendMonths produces them.
func RenderTrend(w io.Writer, points []model.TrendPoint) error {
	if len(points) < 2 {
		return fmt.Errorf("render trend: need at least 2 points, got %d", len(points))
	}

	xs := make([]time.Time, len(points))
	income := make([]float64, len(points))
	expense := make([]float64, len(points))
	net := make([]float64, len(points))
	lo, hi := 0.0, 0.0
	for i, p := range points {
		xs[i] = time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
		income[i] = float64(p.TotalIncome)
		expense[i] = float64(p.TotalExpense)
		net[i] = float64(p.NetIncome)
		for _, v := range []float64{income[i], expense[i], net[i]} {
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}
	// A flat series has no range to plot against.
	if hi <= lo {
		hi = lo + 1
	}

	graph := chart.Chart{
		Width:  1200,
		Height: 600,
		Background: chart.Style{
			Padding:   chart.Box{Top: 50, Left: 50, Right: 50, Bottom: 50},
			FillColor: chart.ColorWhite,
		},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01"),
			Style:          chart.Style{FontSize: 12, FontColor: chart.ColorBlack},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: lo, Max: hi * 1.1},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
			Style: chart.Style{FontSize: 12, FontColor: chart.ColorBlack},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Income",
				XValues: xs,
				YValues: income,
				Style:   chart.Style{StrokeColor: chart.ColorGreen, StrokeWidth: 2},
			},
			chart.TimeSeries{
				Name:    "Expense",
				XValues: xs,
				YValues: expense,
				Style:   chart.Style{StrokeColor: chart.ColorRed, StrokeWidth: 2},
			},
			chart.TimeSeries{
				Name:    "Net",
				XValues: xs,
				YValues: net,
				Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 3},
			},
		},
	}
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph, chart.Style{FontSize: 12, FontColor: chart.ColorBlack}),
	}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render trend chart: %w", err)
	}
	return nil
}
