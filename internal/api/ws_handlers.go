package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/onnwee/charrank/internal/middleware"
	"github.com/onnwee/charrank/internal/notify"
)

// WSHandlers upgrades clients onto the live feed: new-character
// announcements, session progress, and completion events.
type WSHandlers struct {
	broadcaster  *notify.Broadcaster
	upgrader     websocket.Upgrader
	allowOrigins map[string]bool
}

// NewWSHandlers creates a new WSHandlers instance. allowedOrigins mirrors the
// CORS allowlist; an empty list permits same-origin connections only.
func NewWSHandlers(broadcaster *notify.Broadcaster, allowedOrigins []string) *WSHandlers {
	allow := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allow[o] = true
	}

	h := &WSHandlers{
		broadcaster:  broadcaster,
		allowOrigins: allow,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return h.allowOrigins[origin]
		},
	}
	return h
}

// Live handles GET /ws. The connection stays subscribed until the client
// disconnects; incoming messages are discarded.
func (h *WSHandlers) Live(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		slog.WarnContext(r.Context(), "websocket upgrade failed", "error", err, "user_id", userID)
		return
	}

	h.broadcaster.Subscribe(userID, conn)
	slog.InfoContext(r.Context(), "websocket connected", "user_id", userID)

	go h.readLoop(userID, conn)
}

// readLoop drains the connection until it errors, then unsubscribes it.
func (h *WSHandlers) readLoop(userID string, conn *websocket.Conn) {
	defer func() {
		h.broadcaster.Unsubscribe(conn)
		conn.Close()
		slog.Info("websocket disconnected", "user_id", userID)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
