package notify

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Event types sent over the live feed.
const (
	EventNewCharacters = "new_characters"
	EventProgress      = "progress"
	EventCompleted     = "completed"
)

// Event is one message on the live feed.
type Event struct {
	Type        string   `json:"type"`
	Characters  []string `json:"characters,omitempty"`
	Comparisons int      `json:"comparisons,omitempty"`
	Completion  float64  `json:"completion,omitempty"`
}

// Broadcaster manages websocket connections per user and fans events out to
// them. Connections that fail a write are left for the read loop to reap.
type Broadcaster struct {
	logger *slog.Logger

	mu          sync.RWMutex
	connections map[string]map[*websocket.Conn]bool // userID -> connections
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		logger:      logger,
		connections: make(map[string]map[*websocket.Conn]bool),
	}
}

// Subscribe registers a websocket connection for a user.
func (b *Broadcaster) Subscribe(userID string, conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.connections[userID] == nil {
		b.connections[userID] = make(map[*websocket.Conn]bool)
	}
	b.connections[userID][conn] = true
}

// Unsubscribe removes a websocket connection wherever it is registered.
func (b *Broadcaster) Unsubscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for userID, conns := range b.connections {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(b.connections, userID)
		}
	}
}

// Send delivers an event to one user's connections.
func (b *Broadcaster) Send(userID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to marshal event", "error", err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for conn := range b.connections[userID] {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			b.logger.Warn("failed to send websocket message",
				"error", err,
				"user_id", userID)
		}
	}
}

// Broadcast delivers an event to every connected user.
func (b *Broadcaster) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to marshal event", "error", err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for userID, conns := range b.connections {
		for conn := range conns {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				b.logger.Warn("failed to send websocket message",
					"error", err,
					"user_id", userID)
			}
		}
	}
}

// ConnectionCount returns the number of connections for a user.
func (b *Broadcaster) ConnectionCount(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.connections[userID])
}
