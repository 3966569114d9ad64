package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"visits-observer/src/models"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *ChartServer) handleWebsockets() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			for _, client := range lo.Keys(s.clients) {
				s.dropClient(client)
			}
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.setConnections()
			// Send initial state on connect
			client.send <- s.initialFrame()

		case client := <-s.replay:
			if _, ok := s.clients[client]; ok {
				select {
				case client.send <- s.initialFrame():
				default:
				}
			}

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				s.dropClient(client)
			}

		case message := <-s.broadcast:
			s.stateMutex.Lock()
			s.latestState = message
			s.stateMutex.Unlock()

			// Broadcast to all clients
			for client := range s.clients {
				select {
				case client.send <- message:
				default:
					// Client too slow, disconnect to prevent Hub blocking
					s.dropClient(client)
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------

func (s *ChartServer) dropClient(client *Client) {
	delete(s.clients, client)
	close(client.send)
	s.setConnections()
}

// -----------------------------------------------------------------------------

func (s *ChartServer) setConnections() {
	n := int64(len(s.clients))
	s.connections.Store(n)
	if s.opts.Metrics != nil {
		s.opts.Metrics.WebsocketClients.Set(float64(n))
	}
}

// -----------------------------------------------------------------------------
// Renderer Implementation
// -----------------------------------------------------------------------------

// Redraw queues data for every connected client. A full queue drops the
// frame; the next accepted event carries the whole window again.
func (s *ChartServer) Redraw(data models.MChartData) {
	select {
	case s.broadcast <- data:
	default:
		s.Logger.Warning("Broadcast queue full, dropping frame")
	}
}

// -----------------------------------------------------------------------------

// latest returns the last broadcast frame marked as initial state
func (s *ChartServer) latest() models.MChartData {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	state := s.latestState
	state.Type = models.ChartInitial
	return state
}

// -----------------------------------------------------------------------------

// initialFrame reads the window from the series owner when one is attached,
// so a frame dropped by Redraw never reaches a joining client.
func (s *ChartServer) initialFrame() models.MChartData {
	if src := s.seriesSource(); src != nil {
		return src.Snapshot()
	}
	return s.latest()
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *ChartServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan models.MChartData, 64),
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *ChartServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MClientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	switch cmd.Command {
	case models.CommandSubscribe:
		// the hub owns client.send
		select {
		case s.replay <- client:
		case <-s.done:
		}

	case models.CommandSimulate:
		if s.opts.Trigger != nil {
			s.opts.Trigger.Fire()
		}
	}
}
