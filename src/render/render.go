// Package render holds the chart collaborators the controller redraws after
// every accepted event.
package render

import (
	"math"

	"github.com/samber/lo"

	"visits-observer/src/interfaces"
	"visits-observer/src/models"
)

// Fanout redraws several renderers in order
type Fanout []interfaces.IRenderer

func NewFanout(renderers ...interfaces.IRenderer) Fanout {
	return lo.Filter(renderers, func(r interfaces.IRenderer, _ int) bool {
		return r != nil
	})
}

func (f Fanout) Redraw(data models.MChartData) {
	for _, r := range f {
		r.Redraw(data)
	}
}

func minMax(list []float64) (float64, float64) {
	// find minimum and maximum
	min, max := list[0], list[0]
	for _, value := range list {
		min = math.Min(min, value)
		max = math.Max(max, value)
	}

	return min, max
}
