package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/devtree/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Per-client outbound event buffer
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// The server binds to loopback by default; remote deployments
		// sit behind a reverse proxy that enforces origin policy.
		return true
	},
}

// Client is one connected WebSocket event consumer.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
}

// handleEvents upgrades the connection, replays the backlog, and
// streams live events until the client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	client := &Client{
		hub:        s.hub,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		remoteAddr: r.RemoteAddr,
	}

	replay := s.hub.Register(client)
	logging.LogClient(client.remoteAddr, "client_connected")

	// Queue the backlog before the pumps start; the send buffer is
	// sized to hold a full backlog.
	for _, ev := range replay {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		client.trySend(data)
	}

	go client.writePump()
	go client.readPump()
}

// readPump discards client messages; it exists to notice disconnects
// and to keep the read deadline fed by pong responses.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
		logging.LogClient(c.remoteAddr, "client_disconnected")
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn("WebSocket read error",
					zap.String("remote_addr", c.remoteAddr),
					zap.Error(err),
				)
			}
			return
		}
	}
}

// writePump drains the send channel onto the wire and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend queues data for the client without blocking. A full buffer
// drops the event; a channel closed by a racing disconnect is absorbed.
func (c *Client) trySend(data []byte) {
	defer func() {
		_ = recover()
	}()

	select {
	case c.send <- data:
	default:
		logging.Debug("Dropping event for slow client",
			zap.String("remote_addr", c.remoteAddr),
		)
	}
}
