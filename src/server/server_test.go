package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"visits-observer/src/config"
	"visits-observer/src/controller"
	"visits-observer/src/logger"
	"visits-observer/src/metrics"
	"visits-observer/src/models"
	"visits-observer/src/pubsub"
	"visits-observer/src/render"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// -----------------------------------------------------------------------------

type countingTrigger struct{ fired atomic.Int32 }

func (c *countingTrigger) Fire() { c.fired.Add(1) }

type fixedSource struct{ data models.MChartData }

func (f fixedSource) Snapshot() models.MChartData { return f.data }

func (f fixedSource) Status() models.MControllerStatus {
	return models.MControllerStatus{
		State:        "listening",
		SeriesLength: len(f.data.Values),
		Capacity:     f.data.Capacity,
	}
}

type harness struct {
	srv     *ChartServer
	http    *httptest.Server
	trigger *countingTrigger
	chart   *render.ChartRenderer
	reg     *prometheus.Registry
	pubsub  *pubsub.MemoryPubsub
	metrics *metrics.ControllerMetrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Realtime User Analytics</h1>"), 0o644))

	cfg := config.Default()
	cfg.PublicDir = dir

	reg := prometheus.NewRegistry()
	h := &harness{
		trigger: &countingTrigger{},
		chart:   render.NewChartRenderer(cfg.MConfig),
		reg:     reg,
		pubsub:  pubsub.NewInMemory(),
		metrics: metrics.NewControllerMetrics(reg),
	}
	h.srv = NewChartServer(cfg.MConfig, logger.NewLoggerWithWriter(io.Discard, "ERROR", "server"), Options{
		Trigger:   h.trigger,
		Publisher: h.pubsub,
		Chart:     h.chart,
		Metrics:   h.metrics,
		Gatherer:  reg,
	})
	h.srv.startHub()
	h.http = httptest.NewServer(h.srv.Handler())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, h.srv.Stop(ctx))
		h.http.Close()
		h.pubsub.Close()
	})
	return h
}

func (h *harness) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(h.http.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) models.MChartData {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var data models.MChartData
	require.NoError(t, conn.ReadJSON(&data))
	return data
}

func frame(labels, values []float64) models.MChartData {
	return models.MChartData{Type: models.ChartUpdate, Labels: labels, Values: values, Capacity: 15}
}

// -----------------------------------------------------------------------------

func TestWebsocketReceivesInitialThenUpdates(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	initial := readFrame(t, conn)
	assert.Equal(t, models.ChartInitial, initial.Type)
	assert.Empty(t, initial.Values)
	assert.Equal(t, 15, initial.Capacity)

	h.srv.Redraw(frame([]float64{1, 2}, []float64{10, 20}))

	update := readFrame(t, conn)
	assert.Equal(t, models.ChartUpdate, update.Type)
	assert.Equal(t, []float64{1, 2}, update.Labels)
	assert.Equal(t, []float64{10, 20}, update.Values)
}

func TestWebsocketSubscribeReplaysLatest(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	readFrame(t, conn)

	h.srv.Redraw(frame([]float64{7}, []float64{70}))
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(models.MClientCommand{Command: models.CommandSubscribe}))
	replay := readFrame(t, conn)
	assert.Equal(t, models.ChartInitial, replay.Type)
	assert.Equal(t, []float64{70}, replay.Values)
}

func TestWebsocketSimulateCommandFiresTrigger(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(models.MClientCommand{Command: models.CommandSimulate}))
	assert.Eventually(t, func() bool { return h.trigger.fired.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestLateClientGetsLastBroadcast(t *testing.T) {
	h := newHarness(t)
	first := h.dial(t)
	readFrame(t, first)

	h.srv.Redraw(frame([]float64{3, 4}, []float64{30, 40}))
	readFrame(t, first)

	second := h.dial(t)
	initial := readFrame(t, second)
	assert.Equal(t, models.ChartInitial, initial.Type)
	assert.Equal(t, []float64{30, 40}, initial.Values)
}

func TestStopClosesClients(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	readFrame(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.srv.Stop(ctx))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	// Redraw after stop must not block
	h.srv.Redraw(frame([]float64{1}, []float64{1}))
}

func TestSimulateRoutes(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Post(h.http.URL+"/api/simulate", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	assert.Equal(t, http.StatusAccepted, h.get(t, "/simulate").StatusCode)
	assert.Equal(t, int32(2), h.trigger.fired.Load())
}

func TestSeriesAndHealthUseSource(t *testing.T) {
	h := newHarness(t)
	h.srv.SetSource(fixedSource{data: models.MChartData{
		Type: models.ChartInitial, Labels: []float64{5}, Values: []float64{50}, Capacity: 15,
	}})

	var series models.MChartData
	require.NoError(t, json.NewDecoder(h.get(t, "/api/series").Body).Decode(&series))
	assert.Equal(t, []float64{50}, series.Values)

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(h.get(t, "/api/health").Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "listening", health["state"])
	assert.EqualValues(t, 1, health["series_length"])
}

func TestConfigRoute(t *testing.T) {
	h := newHarness(t)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(h.get(t, "/api/config").Body).Decode(&body))
	assert.Equal(t, "visitorsCount", body["channel"])
	assert.Equal(t, "addNumber", body["event"])
	assert.EqualValues(t, 15, body["capacity"])
}

func TestChartRoute(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusNoContent, h.get(t, "/chart.png").StatusCode)

	h.chart.Redraw(frame([]float64{1, 2, 3}, []float64{4, 9, 2}))
	resp := h.get(t, "/chart.png")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(body))
	assert.NoError(t, err)
}

func TestPageAndMetricsRoutes(t *testing.T) {
	h := newHarness(t)

	page := h.get(t, "/")
	require.Equal(t, http.StatusOK, page.StatusCode)
	body, err := io.ReadAll(page.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Realtime User Analytics")

	conn := h.dial(t)
	readFrame(t, conn)

	resp := h.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	text, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(text), "visits_observer_websocket_clients 1")
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t)

	req, err := http.NewRequest(http.MethodOptions, h.http.URL+"/api/simulate", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://127.0.0.1:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://127.0.0.1:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestPublishEventRoute(t *testing.T) {
	h := newHarness(t)

	got := make(chan string, 1)
	cancel, err := h.pubsub.Subscribe("visitorsCount", "addNumber", func(_ context.Context, message []byte) {
		got <- string(message)
	})
	require.NoError(t, err)
	defer cancel()

	resp, err := http.Post(h.http.URL+"/api/events", "application/json", strings.NewReader(`{"Count":3,"Pages":9}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, `{"Count":3,"Pages":9}`, <-got)

	resp, err = http.Post(h.http.URL+"/api/events", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIngestToWebsocketEndToEnd(t *testing.T) {
	h := newHarness(t)

	cfg := config.Default()
	cfg.Series.Capacity = 3
	ctrl := controller.NewController(cfg.MConfig, render.NewFanout(h.srv, h.chart), h.metrics, logger.NewLoggerWithWriter(io.Discard, "ERROR", "controller"))
	require.NoError(t, ctrl.Start(h.pubsub))
	t.Cleanup(func() { ctrl.Close() })
	h.srv.SetSource(ctrl)

	conn := h.dial(t)
	readFrame(t, conn)

	post := func(body string) {
		resp, err := http.Post(h.http.URL+"/api/events", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	}

	// Publish waits for the listener, so frames arrive in order
	post(`{"Count":1,"Pages":10}`)
	post(`{"Count":2}`)
	post(`{"Count":2,"Pages":20}`)
	post(`{"Count":3,"Pages":30}`)
	post(`{"Count":4,"Pages":40}`)

	var last models.MChartData
	for i := 0; i < 4; i++ {
		last = readFrame(t, conn)
	}
	assert.Equal(t, models.ChartUpdate, last.Type)
	assert.Equal(t, []float64{2, 3, 4}, last.Labels)
	assert.Equal(t, []float64{20, 30, 40}, last.Values)

	var series models.MChartData
	require.NoError(t, json.NewDecoder(h.get(t, "/api/series").Body).Decode(&series))
	assert.Equal(t, []float64{20, 30, 40}, series.Values)

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(h.get(t, "/api/health").Body).Decode(&health))
	assert.EqualValues(t, 4, health["events_accepted"])
	assert.EqualValues(t, 1, health["events_rejected"])
}

func TestJoiningClientReadsSourceWindow(t *testing.T) {
	h := newHarness(t)

	// nothing was broadcast, the window only exists at the source
	h.srv.SetSource(fixedSource{data: models.MChartData{
		Type: models.ChartInitial, Labels: []float64{8, 9}, Values: []float64{80, 90}, Capacity: 15,
	}})

	conn := h.dial(t)
	initial := readFrame(t, conn)
	assert.Equal(t, models.ChartInitial, initial.Type)
	assert.Equal(t, []float64{8, 9}, initial.Labels)
	assert.Equal(t, []float64{80, 90}, initial.Values)

	require.NoError(t, conn.WriteJSON(models.MClientCommand{Command: models.CommandSubscribe}))
	replay := readFrame(t, conn)
	assert.Equal(t, []float64{80, 90}, replay.Values)
}
