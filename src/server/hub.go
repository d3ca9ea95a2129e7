package server

import (
	"encoding/json"
	"net/http"

	"runtime-observer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Message types pushed to websocket clients besides runtime views
const msgSubscribed = "SUBSCRIBED"

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *APIServer) handleWebsockets() {
	for {
		select {
		case <-s.done:
			for client := range s.clients {
				client.close()
			}
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.connections.Add(1)
			for _, view := range s.cachedViews(client) {
				client.enqueue(view)
			}

		case client := <-s.unregister:
			s.drop(client)

		case view := <-s.broadcast:
			for client := range s.clients {
				if !client.wants(view.StrategyID) {
					continue
				}
				if !client.enqueue(view) {
					// Client too slow, disconnect to prevent Hub blocking
					s.drop(client)
				}
			}
		}
	}
}

func (s *APIServer) drop(client *Client) {
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		s.connections.Add(-1)
		client.close()
	}
}

// cachedViews returns the cached views the client follows, marked INITIAL
func (s *APIServer) cachedViews(client *Client) []models.MRuntimeView {
	var out []models.MRuntimeView
	for _, view := range s.allViews() {
		if client.wants(view.StrategyID) {
			view.Type = "INITIAL"
			out = append(out, view)
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// UpdateView caches the view without notifying clients
func (s *APIServer) UpdateView(view models.MRuntimeView) {
	s.views.SetDefault(view.StrategyID, view)
	if view.UpdatedAt > s.lastUpdate.Load() {
		s.lastUpdate.Store(view.UpdatedAt)
	}
}

// -----------------------------------------------------------------------------

// Broadcast caches the view and queues it for subscribed clients
func (s *APIServer) Broadcast(view models.MRuntimeView) {
	s.UpdateView(view)
	select {
	case s.broadcast <- view:
	case <-s.done:
	}
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

func (s *APIServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := newClient(s, conn)
	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}
	s.Logger.Debug("Client %s connected from %s", client.ID, c.ClientIP())

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *APIServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	if cmd.Command != "subscribe" {
		return
	}

	client.subscribe(cmd.Strategies)
	for _, view := range s.cachedViews(client) {
		client.enqueue(view)
	}

	strategies := cmd.Strategies
	if strategies == nil {
		strategies = []string{}
	}
	client.enqueue(gin.H{"type": msgSubscribed, "strategies": strategies})
}
