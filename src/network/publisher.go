package network

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"visits-observer/src/helpers"
	"visits-observer/src/logger"
)

// EventPoster publishes events by posting them to an observer's ingest
// route. It lets a separate process feed the in-memory transport.
type EventPoster struct {
	BaseURL string
	Client  *http.Client
	Logger  *logger.Logger
	timeout time.Duration
}

// -----------------------------------------------------------------------------

func NewEventPoster(baseURL string, timeout time.Duration, log *logger.Logger) *EventPoster {
	return &EventPoster{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{},
		Logger:  log,
		timeout: timeout,
	}
}

// -----------------------------------------------------------------------------

// Publish posts message to /api/events for channel/event
func (p *EventPoster) Publish(channel, event string, message []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("channel", channel)
	q.Set("event", event)
	target := p.BaseURL + "/api/events?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(message))
	if err != nil {
		return helpers.NewTransportError("build publish request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.Client.Do(req)
	if err != nil {
		return helpers.NewTransportError("publish request", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return helpers.NewTransportError("publish request", fmt.Errorf("bad status: %d", resp.StatusCode))
	}

	p.Logger.Debug("Published %d bytes on %s/%s", len(message), channel, event)
	return nil
}

// -----------------------------------------------------------------------------

// Close drops idle connections
func (p *EventPoster) Close() {
	p.Client.CloseIdleConnections()
}
