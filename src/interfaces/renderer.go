package interfaces

import (
	"context"

	"visits-observer/src/models"
)

// -----------------------------------------------------------------------------
// IRenderer paints a chart from a snapshot of the series.
// -----------------------------------------------------------------------------

type IRenderer interface {
	// -----------------------------------------------------------------------------
	// Redraw replaces the displayed data wholesale. It must not block and must
	// not retain slices it intends to mutate.
	Redraw(data models.MChartData)
}

// -----------------------------------------------------------------------------
// ISeriesSource exposes the current window to readers outside the event path.
// -----------------------------------------------------------------------------

type ISeriesSource interface {
	Snapshot() models.MChartData
	Status() models.MControllerStatus
}

// -----------------------------------------------------------------------------
// IDataExchanger is the server side that pushes chart data to browsers.
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	IRenderer

	// -----------------------------------------------------------------------------
	// Start the server, blocks until Stop
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop(ctx context.Context) error
}
