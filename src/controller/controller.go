package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"visits-observer/src/helpers"
	"visits-observer/src/interfaces"
	"visits-observer/src/logger"
	"visits-observer/src/metrics"
	"visits-observer/src/models"
	"visits-observer/src/utils"
)

// -----------------------------------------------------------------------------

type State int

const (
	StateIdle State = iota
	StateListening
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrAlreadyListening is returned by Start once the controller is subscribed.
var ErrAlreadyListening = errors.New("controller is already listening")

// -----------------------------------------------------------------------------
// Controller bridges a push event stream into the bounded series and asks the
// renderer to redraw after each accepted event. It exclusively owns the series.
// -----------------------------------------------------------------------------

type Controller struct {
	Logger  *logger.Logger
	channel string
	event   string

	errors   *helpers.ErrorHandler
	metrics  *metrics.ControllerMetrics
	renderer interfaces.IRenderer
	now      func() time.Time

	// mu serializes append + snapshot + redraw
	mu         sync.Mutex
	series     *utils.BoundedSeries
	lastUpdate int64
	accepted   int64
	rejected   int64

	stateMu     sync.Mutex
	state       State
	cancel      func()
	onListening []func()
}

// -----------------------------------------------------------------------------

// NewController creates an Idle controller with an empty series.
// A nil renderer disables redraws; nil metrics are created unregistered.
func NewController(cfg *models.MConfig, renderer interfaces.IRenderer, m *metrics.ControllerMetrics, log *logger.Logger) *Controller {
	if m == nil {
		m = metrics.NewControllerMetrics(nil)
	}

	return &Controller{
		Logger:   log,
		channel:  cfg.Transport.Channel,
		event:    cfg.Transport.Event,
		errors:   helpers.NewErrorHandler(log),
		metrics:  m,
		renderer: renderer,
		now:      time.Now,
		series:   utils.NewBoundedSeries(cfg.Series.Capacity),
	}
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Start subscribes OnEvent to the configured channel/event. It moves the
// controller from Idle to Listening exactly once.
func (c *Controller) Start(source interfaces.IEventSource) error {
	c.stateMu.Lock()
	if c.state == StateListening {
		c.stateMu.Unlock()
		return ErrAlreadyListening
	}

	cancel, err := source.Subscribe(c.channel, c.event, c.OnEvent)
	if err != nil {
		c.stateMu.Unlock()
		return helpers.NewTransportError(fmt.Sprintf("subscribe %s/%s", c.channel, c.event), err)
	}

	c.cancel = cancel
	c.state = StateListening
	hooks := c.onListening
	c.onListening = nil
	c.stateMu.Unlock()

	c.Logger.Info("Listening for %q on channel %q", c.event, c.channel)
	for _, fn := range hooks {
		fn()
	}
	return nil
}

// -----------------------------------------------------------------------------

// OnListening registers fn to run once the controller is Listening.
// If it already is, fn runs immediately.
func (c *Controller) OnListening(fn func()) {
	c.stateMu.Lock()
	if c.state != StateListening {
		c.onListening = append(c.onListening, fn)
		c.stateMu.Unlock()
		return
	}
	c.stateMu.Unlock()
	fn()
}

// -----------------------------------------------------------------------------

func (c *Controller) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// -----------------------------------------------------------------------------

// Close cancels the subscription at session teardown. The controller stays
// Listening; a closed controller cannot be started again.
func (c *Controller) Close() error {
	c.stateMu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// -----------------------------------------------------------------------------
// Event path
// -----------------------------------------------------------------------------

// OnEvent handles one raw transport message. Malformed messages are reported
// and dropped without touching the series.
func (c *Controller) OnEvent(ctx context.Context, raw []byte) {
	point, err := DecodeEvent(raw)
	if err != nil {
		c.mu.Lock()
		c.rejected++
		c.mu.Unlock()

		c.metrics.Malformed()
		c.errors.Handle(err, "decode event")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := c.series.Append(point)
	c.lastUpdate = c.now().Unix()
	c.accepted++
	c.metrics.Accepted(evicted, c.series.Len())

	if c.Logger.Enabled(logger.LevelDebug) {
		c.Logger.Debug("Appended marker=%v value=%v (len %d, evicted %t)", point.Marker, point.Value, c.series.Len(), evicted)
	}

	if c.renderer != nil {
		c.renderer.Redraw(c.chartDataLocked(models.ChartUpdate))
	}
}

// -----------------------------------------------------------------------------

// Snapshot returns the current chart data
func (c *Controller) Snapshot() models.MChartData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chartDataLocked(models.ChartInitial)
}

// -----------------------------------------------------------------------------

// Status summarises the controller for health endpoints
func (c *Controller) Status() models.MControllerStatus {
	state := c.State()

	c.mu.Lock()
	defer c.mu.Unlock()

	return models.MControllerStatus{
		State:          state.String(),
		SeriesLength:   c.series.Len(),
		Capacity:       c.series.Capacity(),
		EventsAccepted: c.accepted,
		EventsRejected: c.rejected,
		LastUpdate:     c.lastUpdate,
	}
}

// -----------------------------------------------------------------------------

func (c *Controller) chartDataLocked(kind string) models.MChartData {
	labels, values := c.series.Snapshot()
	return models.MChartData{
		Type:      kind,
		Labels:    labels,
		Values:    values,
		Timestamp: c.lastUpdate,
		Capacity:  c.series.Capacity(),
	}
}
