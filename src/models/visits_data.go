package models

// MVisitsData is the wire shape of an inbound visitor-count event.
// Count is used as the marker, Pages as the value.
type MVisitsData struct {
	Pages float64 `json:"Pages"`
	Count float64 `json:"Count"`
}

// Wire field names of MVisitsData
const (
	FieldCount = "Count"
	FieldPages = "Pages"
)
