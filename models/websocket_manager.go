package models

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketManager handles WebSocket connections and broadcasts
type WebSocketManager struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.Mutex
	logger     *zap.Logger
}

// NewWebSocketManager creates a new WebSocket manager
func NewWebSocketManager(logger *zap.Logger) *WebSocketManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketManager{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Start runs the manager loop until ctx is cancelled
func (wsm *WebSocketManager) Start(ctx context.Context) {
	go func() {
		defer close(wsm.done)
		for {
			select {
			case <-ctx.Done():
				wsm.mu.Lock()
				for client := range wsm.clients {
					client.Close()
					delete(wsm.clients, client)
				}
				wsm.mu.Unlock()
				return
			case client := <-wsm.register:
				wsm.mu.Lock()
				wsm.clients[client] = true
				total := len(wsm.clients)
				wsm.mu.Unlock()
				wsm.logger.Info("websocket client connected", zap.Int("clients", total))
			case client := <-wsm.unregister:
				wsm.mu.Lock()
				if _, ok := wsm.clients[client]; ok {
					delete(wsm.clients, client)
					client.Close()
				}
				remaining := len(wsm.clients)
				wsm.mu.Unlock()
				wsm.logger.Info("websocket client disconnected", zap.Int("clients", remaining))
			case message := <-wsm.broadcast:
				wsm.mu.Lock()
				for client := range wsm.clients {
					if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
						wsm.logger.Warn("dropping websocket client", zap.Error(err))
						client.Close()
						delete(wsm.clients, client)
					}
				}
				wsm.mu.Unlock()
			}
		}
	}()
}

// BroadcastCommandUpdate sends a command status change to all connected clients
func (wsm *WebSocketManager) BroadcastCommandUpdate(rec CommandRecord) {
	update := map[string]interface{}{
		"type":       "command_update",
		"command_id": rec.ID,
		"device_id":  rec.DeviceID,
		"status":     rec.Status,
		"timestamp":  rec.Timestamp,
	}
	if rec.Status == StatusFailed && rec.Message != "" {
		update["error"] = rec.Message
	}

	data, err := json.Marshal(update)
	if err != nil {
		wsm.logger.Error("failed to marshal command update", zap.Error(err))
		return
	}

	select {
	case wsm.broadcast <- data:
	case <-wsm.done:
	}
}

// RegisterClient registers a new WebSocket client
func (wsm *WebSocketManager) RegisterClient(conn *websocket.Conn) {
	select {
	case wsm.register <- conn:
	case <-wsm.done:
		conn.Close()
	}
}

// UnregisterClient unregisters a WebSocket client
func (wsm *WebSocketManager) UnregisterClient(conn *websocket.Conn) {
	select {
	case wsm.unregister <- conn:
	case <-wsm.done:
	}
}

// ClientCount returns the number of connected clients
func (wsm *WebSocketManager) ClientCount() int {
	wsm.mu.Lock()
	defer wsm.mu.Unlock()
	return len(wsm.clients)
}
