package models

// -----------------------------------------------------------------------------
// Chart payload sent to renderers and websocket clients
// -----------------------------------------------------------------------------

const (
	ChartInitial = "INITIAL"
	ChartUpdate  = "UPDATE"
)

type MChartData struct {
	Type      string    `json:"type"` // "INITIAL" or "UPDATE"
	Labels    []float64 `json:"labels"`
	Values    []float64 `json:"values"`
	Timestamp int64     `json:"timestamp"`
	Capacity  int       `json:"capacity"`
}

// -----------------------------------------------------------------------------
// ClientCommand for websocket client messages
// -----------------------------------------------------------------------------

const (
	CommandSubscribe = "subscribe"
	CommandSimulate  = "simulate"
)

type MClientCommand struct {
	Command string `json:"command"` // "subscribe" or "simulate"
}
