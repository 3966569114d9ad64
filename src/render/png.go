package render

import (
	"errors"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"visits-observer/src/models"
)

// ErrNotEnoughPoints is returned while the series has fewer than two points
var ErrNotEnoughPoints = errors.New("not enough points to draw a line")

const chartTitle = "Realtime User Analytics"

var lineColor = drawing.ColorFromHex("4bc0c0")

// ChartRenderer keeps the latest chart data and paints it as a PNG on demand
type ChartRenderer struct {
	Width  int
	Height int

	mu   sync.RWMutex
	data models.MChartData
}

func NewChartRenderer(cfg *models.MConfig) *ChartRenderer {
	return &ChartRenderer{
		Width:  cfg.Render.Width,
		Height: cfg.Render.Height,
	}
}

// Redraw stores data for the next Render. Controller frames are fresh
// copies, so no further copy is taken.
func (r *ChartRenderer) Redraw(data models.MChartData) {
	r.mu.Lock()
	r.data = data
	r.mu.Unlock()
}

// Render writes the current line chart as PNG to w
func (r *ChartRenderer) Render(w io.Writer) error {
	r.mu.RLock()
	data := r.data
	r.mu.RUnlock()

	if len(data.Values) < 2 {
		return ErrNotEnoughPoints
	}

	// get min and max with 10% headroom
	min, max := minMax(data.Values)
	span := (max - min) * 0.1
	if span == 0 {
		span = 1
	}
	min -= span
	max += span

	// generate y ticks
	span = max - min
	yTicks := []chart.Tick{
		{Value: min},
		{Value: min + span/3},
		{Value: min + span/3*2},
		{Value: max},
	}
	for i := range yTicks {
		yTicks[i].Label = humanize.SIWithDigits(yTicks[i].Value, 2, "")
	}

	// markers are labels, not coordinates; plot by position
	xs := lo.Map(data.Labels, func(_ float64, i int) float64 {
		return float64(i)
	})
	xTicks := lo.Map(data.Labels, func(label float64, i int) chart.Tick {
		return chart.Tick{Value: float64(i), Label: humanize.Ftoa(label)}
	})

	ch := chart.Chart{
		Title:      chartTitle,
		Width:      r.Width,
		Height:     r.Height,
		Background: chart.Style{Padding: chart.Box{Top: 30, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Ticks: xTicks},
		YAxis:      chart.YAxis{Range: &chart.ContinuousRange{Min: min, Max: max}, Ticks: yTicks},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    chartTitle,
				XValues: xs,
				YValues: data.Values,
				Style: chart.Style{
					StrokeColor: lineColor,
					StrokeWidth: 2,
					DotColor:    drawing.ColorWhite,
					DotWidth:    3,
				},
			},
		},
	}

	return ch.Render(chart.PNG, w)
}
