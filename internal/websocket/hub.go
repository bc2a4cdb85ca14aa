package websocket

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"devotion-go/internal/logger"
	"devotion-go/internal/services"
)

type userUpdate struct {
	userID string
	update services.Update
}

// Hub maintains the set of active clients and pushes view updates to every
// connection of the addressed user. A user may have several tabs open.
type Hub struct {
	// Registered clients by user id. Only the Run loop touches this map.
	clients map[string]map[*Client]bool

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Updates aimed at a specific user.
	direct chan userUpdate

	// Closed when Run returns.
	done chan struct{}

	log zerolog.Logger
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		direct:     make(chan userUpdate, 256),
		done:       make(chan struct{}),
		log:        logger.With("ws-hub"),
	}
}

// PushUpdate queues u for every connection of userID. It never blocks; when
// the queue is full the update is dropped.
func (h *Hub) PushUpdate(userID string, u services.Update) {
	select {
	case h.direct <- userUpdate{userID: userID, update: u}:
	default:
		h.log.Warn().Str("user_id", userID).Str("kind", string(u.Kind)).Msg("hub direct channel is full, dropping update")
	}
}

// Run starts the hub and listens for messages on its channels.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info().Msg("websocket hub run loop started")
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for userID, conns := range h.clients {
				for client := range conns {
					close(client.send)
				}
				delete(h.clients, userID)
			}
			return

		case client := <-h.register:
			conns, ok := h.clients[client.UserID]
			if !ok {
				conns = make(map[*Client]bool)
				h.clients[client.UserID] = conns
			}
			conns[client] = true
			h.log.Debug().Str("user_id", client.UserID).Int("connections", len(conns)).Msg("client registered")

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.direct:
			conns := h.clients[msg.userID]
			if len(conns) == 0 {
				continue
			}
			payload, err := json.Marshal(msg.update)
			if err != nil {
				h.log.Error().Err(err).Str("user_id", msg.userID).Msg("failed to encode update")
				continue
			}
			for client := range conns {
				select {
				case client.send <- payload:
				default:
					// Slow or dead connection.
					h.log.Warn().Str("user_id", msg.userID).Msg("client send buffer full, removing client")
					h.remove(client)
				}
			}
		}
	}
}

// Register adds client to the hub. It returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes client and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) remove(client *Client) {
	conns, ok := h.clients[client.UserID]
	if !ok || !conns[client] {
		return
	}
	delete(conns, client)
	close(client.send)
	if len(conns) == 0 {
		delete(h.clients, client.UserID)
	}
	h.log.Debug().Str("user_id", client.UserID).Msg("client unregistered")
}
