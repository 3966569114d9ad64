package utils

import (
	"github.com/gammazero/deque"

	"visits-observer/src/models"
)

// -----------------------------------------------------------------------------
// BoundedSeries is a fixed-capacity window of series points, oldest first.
// Appending at capacity evicts the single oldest point before the new one is
// stored, so Len never exceeds Capacity. Not safe for concurrent use.
// -----------------------------------------------------------------------------

type BoundedSeries struct {
	points   deque.Deque[models.MSeriesPoint]
	capacity int
}

// -----------------------------------------------------------------------------

// NewBoundedSeries creates an empty series with fixed capacity
func NewBoundedSeries(capacity int) *BoundedSeries {
	if capacity <= 0 {
		capacity = DefaultSeriesCapacity
	}

	return &BoundedSeries{capacity: capacity}
}

// -----------------------------------------------------------------------------

// Append stores point, evicting the oldest entry first when full.
// Reports whether an eviction happened.
func (s *BoundedSeries) Append(point models.MSeriesPoint) bool {
	evicted := false
	if s.points.Len() >= s.capacity {
		s.points.PopFront()
		evicted = true
	}

	s.points.PushBack(point)
	return evicted
}

// -----------------------------------------------------------------------------

// Snapshot returns copies of the markers and values in insertion order
func (s *BoundedSeries) Snapshot() ([]float64, []float64) {
	n := s.points.Len()
	markers := make([]float64, n)
	values := make([]float64, n)

	for i := 0; i < n; i++ {
		p := s.points.At(i)
		markers[i] = p.Marker
		values[i] = p.Value
	}

	return markers, values
}

// -----------------------------------------------------------------------------

// Points returns a copy of the stored points, oldest first
func (s *BoundedSeries) Points() []models.MSeriesPoint {
	result := make([]models.MSeriesPoint, s.points.Len())
	for i := range result {
		result[i] = s.points.At(i)
	}
	return result
}

// -----------------------------------------------------------------------------

// Latest returns the newest point, if any
func (s *BoundedSeries) Latest() (models.MSeriesPoint, bool) {
	if s.points.Len() == 0 {
		return models.MSeriesPoint{}, false
	}
	return s.points.Back(), true
}

// -----------------------------------------------------------------------------

// Len returns current number of points
func (s *BoundedSeries) Len() int {
	return s.points.Len()
}

// -----------------------------------------------------------------------------

// Capacity returns the fixed maximum length
func (s *BoundedSeries) Capacity() int {
	return s.capacity
}

// -----------------------------------------------------------------------------

// IsFull returns whether the next Append will evict
func (s *BoundedSeries) IsFull() bool {
	return s.points.Len() == s.capacity
}
