package utils

// -----------------------------------------------------------------------------

// DefaultSeriesCapacity is the number of points a chart displays at steady state.
const DefaultSeriesCapacity = 15
