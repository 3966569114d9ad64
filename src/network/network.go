package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"visits-observer/src/helpers"
	"visits-observer/src/logger"
	"visits-observer/src/models"
)

const userAgent = "visits-observer/1.0"

// TriggerClient fires the one-shot simulate request at the external event
// producer. Requests are fire-and-forget: no retry, no result.
type TriggerClient struct {
	URL     string
	Client  *http.Client
	Logger  *logger.Logger
	errors  *helpers.ErrorHandler
	timeout time.Duration
	wg      sync.WaitGroup
}

// -----------------------------------------------------------------------------

func NewTriggerClient(cfg *models.MConfig, log *logger.Logger) *TriggerClient {
	timeout := time.Duration(cfg.Trigger.TimeoutSeconds) * time.Second
	return &TriggerClient{
		URL:     cfg.Trigger.URL,
		Logger:  log,
		errors:  helpers.NewErrorHandler(log),
		timeout: timeout,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

// -----------------------------------------------------------------------------

// Enabled reports whether a simulate URL is configured
func (t *TriggerClient) Enabled() bool {
	return t.URL != ""
}

// -----------------------------------------------------------------------------

// Fire sends the simulate request in the background
func (t *TriggerClient) Fire() {
	if !t.Enabled() {
		t.Logger.Debug("Simulate trigger disabled, no url configured")
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()

		if err := t.fire(ctx); err != nil {
			t.errors.Handle(err, "simulate trigger")
		}
	}()
}

// -----------------------------------------------------------------------------

// Wait blocks until in-flight requests have finished
func (t *TriggerClient) Wait() {
	t.wg.Wait()
}

// -----------------------------------------------------------------------------

func (t *TriggerClient) fire(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return helpers.NewTriggerError("build simulate request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.Client.Do(req)
	if err != nil {
		return helpers.NewTriggerError("simulate request", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return helpers.NewTriggerError("simulate request", fmt.Errorf("bad status: %d", resp.StatusCode))
	}

	t.Logger.Debug("Simulate trigger accepted (%d)", resp.StatusCode)
	return nil
}
