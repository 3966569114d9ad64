package models

// MSeriesPoint is a single observation on the chart.
// Marker is the x-axis label (ordering token), Value the plotted measurement.
type MSeriesPoint struct {
	Marker float64 `json:"marker"`
	Value  float64 `json:"value"`
}
