package models

// MControllerStatus summarises the live update controller for REST and health endpoints.
type MControllerStatus struct {
	State          string `json:"state"`
	SeriesLength   int    `json:"series_length"`
	Capacity       int    `json:"capacity"`
	EventsAccepted int64  `json:"events_accepted"`
	EventsRejected int64  `json:"events_rejected"`
	LastUpdate     int64  `json:"latest_update"`
}
