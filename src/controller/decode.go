package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"visits-observer/src/helpers"
	"visits-observer/src/models"
)

// -----------------------------------------------------------------------------

// DecodeEvent turns a raw transport message into a series point.
// Count becomes the marker and Pages the value. Both must be present and
// numeric; numeric strings are coerced.
func DecodeEvent(raw []byte) (models.MSeriesPoint, error) {
	visits, err := decodeVisits(raw)
	if err != nil {
		return models.MSeriesPoint{}, err
	}
	return models.MSeriesPoint{Marker: visits.Count, Value: visits.Pages}, nil
}

// -----------------------------------------------------------------------------

func decodeVisits(raw []byte) (models.MVisitsData, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil {
		return models.MVisitsData{}, helpers.NewMalformedEventError("", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return models.MVisitsData{}, helpers.NewMalformedEventError("", fmt.Errorf("trailing data after event"))
	}
	if payload == nil {
		return models.MVisitsData{}, helpers.NewMalformedEventError("", fmt.Errorf("payload is null"))
	}

	count, err := numericField(payload, models.FieldCount)
	if err != nil {
		return models.MVisitsData{}, err
	}
	pages, err := numericField(payload, models.FieldPages)
	if err != nil {
		return models.MVisitsData{}, err
	}

	return models.MVisitsData{Count: count, Pages: pages}, nil
}

// -----------------------------------------------------------------------------

func numericField(data map[string]interface{}, key string) (float64, error) {
	val, ok := data[key]
	if !ok {
		return 0, helpers.NewMalformedEventError(key, fmt.Errorf("missing"))
	}

	var f float64
	switch v := val.(type) {
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, helpers.NewMalformedEventError(key, err)
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, helpers.NewMalformedEventError(key, fmt.Errorf("not numeric: %q", v))
		}
		f = parsed
	default:
		return 0, helpers.NewMalformedEventError(key, fmt.Errorf("not numeric: %T", val))
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, helpers.NewMalformedEventError(key, fmt.Errorf("not finite: %v", f))
	}
	return f, nil
}
