package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"devotion-go/internal/config"
	"devotion-go/internal/logger"
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	// Authenticated user id for this client.
	UserID string

	// onMessage handles text frames sent by the browser.
	onMessage func(ctx context.Context, userID string, payload []byte)

	// onClose runs once after the connection is gone.
	onClose func()
}

// NewClient creates a client not bound to any connection; ServeWs attaches one.
func NewClient(hub *Hub, userID string, sendBuffer int) *Client {
	return &Client{hub: hub, UserID: userID, send: make(chan []byte, sendBuffer)}
}

// readPump pumps messages from the websocket connection to the onMessage callback.
func (c *Client) readPump(wsCfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		if c.onClose != nil {
			c.onClose()
		}
	}()
	pongWait := time.Duration(wsCfg.PongWaitSeconds) * time.Second
	c.conn.SetReadLimit(int64(wsCfg.MaxMessageSizeBytes))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Str("user_id", c.UserID).Msg("websocket closed unexpectedly")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if c.onMessage != nil {
			c.onMessage(context.Background(), c.UserID, payload)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump(wsCfg config.WebSocketConfig) {
	writeWait := time.Duration(wsCfg.WriteWaitSeconds) * time.Second
	ticker := time.NewTicker(time.Duration(wsCfg.PingPeriodSeconds) * time.Second)
	newline := []byte("\n")
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Batch queued updates into the same frame, one JSON document per line.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(newline)
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request and registers the connection for userID.
// onMessage receives text frames; onClose runs after disconnect.
func ServeWs(hub *Hub, userID string, w http.ResponseWriter, r *http.Request, wsCfg config.WebSocketConfig,
	onMessage func(ctx context.Context, userID string, payload []byte), onClose func()) error {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// Origins are enforced by the CORS layer and the token check.
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	client := NewClient(hub, userID, 256)
	client.conn = conn
	client.onMessage = onMessage
	client.onClose = onClose
	if !hub.Register(client) {
		conn.Close()
		if onClose != nil {
			onClose()
		}
		return nil
	}

	go client.writePump(wsCfg)
	go client.readPump(wsCfg)

	logger.Debug().Str("user_id", userID).Msg("websocket client connected")
	return nil
}
