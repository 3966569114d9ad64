package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"visits-observer/src/interfaces"
	"visits-observer/src/logger"
	"visits-observer/src/metrics"
	"visits-observer/src/models"
	"visits-observer/src/render"
)

// -----------------------------------------------------------------------------
// ChartServer
// -----------------------------------------------------------------------------

const maxEventSize = 4 * 1024

var _ interfaces.IDataExchanger = (*ChartServer)(nil)

// Options carries the collaborators the server reads from. Every field is
// optional; routes whose collaborator is missing answer 404 or 503.
type Options struct {
	Trigger   interfaces.ITrigger
	Publisher interfaces.IPublisher
	Chart     *render.ChartRenderer
	Metrics   *metrics.ControllerMetrics
	Gatherer  prometheus.Gatherer
}

type ChartServer struct {
	Config     *models.MConfig
	Logger     *logger.Logger
	engine     *gin.Engine
	httpServer *http.Server

	opts   Options
	source interfaces.ISeriesSource

	// WebSocket clients
	clients     map[*Client]struct{}
	connections atomic.Int64
	broadcast   chan models.MChartData
	register    chan *Client
	unregister  chan *Client
	replay      chan *Client
	done        chan struct{}
	hubOnce     sync.Once
	stopOnce    sync.Once
	wg          sync.WaitGroup

	// Last frame handed to clients, plus the series source
	latestState models.MChartData
	stateMutex  sync.RWMutex
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewChartServer(cfg *models.MConfig, log *logger.Logger, opts Options) *ChartServer {
	// Set Gin mode
	if !log.Enabled(logger.LevelDebug) {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &ChartServer{
		Config:  cfg,
		Logger:  log,
		engine:  gin.Default(),
		opts:    opts,
		clients: make(map[*Client]struct{}),
		// Redraw runs under the controller lock, so it never waits on the hub
		broadcast:  make(chan models.MChartData, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		replay:     make(chan *Client),
		done:       make(chan struct{}),
		latestState: models.MChartData{
			Type:     models.ChartInitial,
			Labels:   []float64{},
			Values:   []float64{},
			Capacity: cfg.Series.Capacity,
		},
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// setup web routes
	s.setupRoutes()
	return s
}

// SetSource attaches the series owner. It is set after construction because
// the owner redraws through this server.
func (s *ChartServer) SetSource(src interfaces.ISeriesSource) {
	s.stateMutex.Lock()
	s.source = src
	s.stateMutex.Unlock()
}

func (s *ChartServer) seriesSource() interfaces.ISeriesSource {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	return s.source
}

// Handler returns the router, mainly for tests
func (s *ChartServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *ChartServer) setupRoutes() {
	// Page
	s.engine.StaticFile("/", filepath.Join(s.Config.PublicDir, "index.html"))
	s.engine.StaticFile("/app.js", filepath.Join(s.Config.PublicDir, "app.js"))
	s.engine.StaticFile("/style.css", filepath.Join(s.Config.PublicDir, "style.css"))

	// REST API endpoints
	s.engine.GET("/api/series", s.getSeries)
	s.engine.GET("/api/config", s.getConfig)
	s.engine.GET("/api/health", s.getHealth)
	s.engine.POST("/api/events", s.publishEvent)
	s.engine.POST("/api/simulate", s.simulate)
	s.engine.GET("/simulate", s.simulate)
	s.engine.GET("/chart.png", s.getChart)

	if s.opts.Gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	}

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start serves HTTP until Stop is called
func (s *ChartServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	s.startHub()

	s.stateMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.stateMutex.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", addr, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *ChartServer) startHub() {
	s.hubOnce.Do(func() {
		s.wg.Add(1)
		go s.handleWebsockets()
	})
}

// -----------------------------------------------------------------------------

// Stop shuts the listener down, closes every websocket client and waits for
// the hub to exit.
func (s *ChartServer) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.stateMutex.RLock()
		srv := s.httpServer
		s.stateMutex.RUnlock()

		if srv != nil {
			err = srv.Shutdown(ctx)
		}
		close(s.done)
		s.wg.Wait()
	})
	return err
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *ChartServer) getSeries(c *gin.Context) {
	if src := s.seriesSource(); src != nil {
		c.JSON(http.StatusOK, src.Snapshot())
		return
	}
	c.JSON(http.StatusOK, s.latest())
}

// -----------------------------------------------------------------------------

func (s *ChartServer) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":     s.Config.Name,
		"capacity": s.Config.Series.Capacity,
		"channel":  s.Config.Transport.Channel,
		"event":    s.Config.Transport.Event,
	})
}

// -----------------------------------------------------------------------------

func (s *ChartServer) getHealth(c *gin.Context) {
	body := gin.H{
		"status":      "ok",
		"connections": s.connections.Load(),
	}

	if src := s.seriesSource(); src != nil {
		st := src.Status()
		body["state"] = st.State
		body["series_length"] = st.SeriesLength
		body["capacity"] = st.Capacity
		body["latest_update"] = st.LastUpdate
		body["events_accepted"] = st.EventsAccepted
		body["events_rejected"] = st.EventsRejected
	} else {
		body["latest_update"] = s.latest().Timestamp
	}

	c.JSON(http.StatusOK, body)
}

// -----------------------------------------------------------------------------

func (s *ChartServer) simulate(c *gin.Context) {
	if s.opts.Trigger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "simulate trigger not configured"})
		return
	}

	s.opts.Trigger.Fire()
	c.JSON(http.StatusAccepted, gin.H{"status": "requested"})
}

// -----------------------------------------------------------------------------

// publishEvent hands a producer's payload to the transport unchanged. The
// controller decides whether it is well formed.
func (s *ChartServer) publishEvent(c *gin.Context) {
	if s.opts.Publisher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event ingest not configured"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxEventSize))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty event"})
		return
	}

	channel := c.DefaultQuery("channel", s.Config.Transport.Channel)
	event := c.DefaultQuery("event", s.Config.Transport.Event)
	if err := s.opts.Publisher.Publish(channel, event, body); err != nil {
		s.Logger.Error("Failed to publish event: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "published"})
}

// -----------------------------------------------------------------------------

func (s *ChartServer) getChart(c *gin.Context) {
	if s.opts.Chart == nil {
		c.Status(http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := s.opts.Chart.Render(&buf); err != nil {
		if errors.Is(err, render.ErrNotEnoughPoints) {
			c.Status(http.StatusNoContent)
			return
		}
		s.Logger.Error("Failed to render chart: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}
