package server

import (
	"time"

	"github.com/gorilla/websocket"

	"visits-observer/src/models"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	// a chart frame is at most a few hundred bytes
	frameWriteWait = 2 * time.Second
	// browsers answer pings automatically; a silent tab is dropped
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// only subscribe/simulate commands come in
	maxCommandSize = 4 * 1024
)

// -----------------------------------------------------------------------------
// Client is one browser chart connected on /ws
// -----------------------------------------------------------------------------

type Client struct {
	hub  *ChartServer
	conn *websocket.Conn
	send chan models.MChartData
}

// -----------------------------------------------------------------------------
// readPump reads chart commands and unregisters the chart when the page
// goes away or stops answering pings
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
		c.hub.Logger.Debug("Chart client %s left", c.conn.RemoteAddr())
	}()

	c.conn.SetReadLimit(maxCommandSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.Logger.Info("Chart client %s dropped: %v", c.conn.RemoteAddr(), err)
			}
			break
		}
		c.hub.HandleClientMessage(c, message)
	}
}

// -----------------------------------------------------------------------------
// writePump writes INITIAL/UPDATE frames in hub order and keeps the
// connection alive with pings
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(frameWriteWait))
			if !ok {
				// dropped by the hub: too slow, or the server is stopping
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "chart closed"))
				return
			}

			if err := c.conn.WriteJSON(frame); err != nil {
				c.hub.Logger.Info("Chart frame %s (%d points) not sent: %v", frame.Type, len(frame.Values), err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(frameWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
