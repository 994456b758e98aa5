package stream

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	readLimit  = 512
)

// Connected is the first message sent on every live connection.
type Connected struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// NewConnected returns the greeting for a connection opened at now.
func NewConnected(now time.Time) Connected {
	return Connected{Type: "connected", Timestamp: now.UnixMilli()}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// WebSocketHandler streams live events over WebSocket connections.
type WebSocketHandler struct {
	hub    *Hub
	logger *zap.Logger
}

// NewWebSocketHandler creates a handler subscribing each connection to hub.
func NewWebSocketHandler(hub *Hub, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, logger: logger}
}

// ServeHTTP upgrades the request and pumps hub messages to the client until
// either side goes away.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))

		return
	}

	// Subscribe before greeting so no event falls between the two.
	sub := h.hub.Subscribe()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(NewConnected(time.Now())); err != nil {
		sub.Close()
		_ = conn.Close()

		return
	}

	go h.writePump(conn, sub)
	go h.readPump(conn, sub)
}

// readPump discards client messages; its only job is noticing disconnects
// and pongs.
func (h *WebSocketHandler) readPump(conn *websocket.Conn, sub *Subscriber) {
	defer func() {
		sub.Close()
		_ = conn.Close()
	}()

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WebSocketHandler) writePump(conn *websocket.Conn, sub *Subscriber) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		sub.Close()
		_ = conn.Close()
	}()

	for {
		select {
		case message, ok := <-sub.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})

				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
