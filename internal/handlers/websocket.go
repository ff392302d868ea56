package handlers

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/finsignal/finsignal/internal/interfaces"
	"github.com/finsignal/finsignal/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// clientMessage is the only control message clients send.
type clientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// ackMessage confirms or rejects a control message.
type ackMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// WebSocketHandler fans session status events out to subscribed clients.
// A connection receives events only for the sessions it subscribed to, and
// only those broadcast after the subscription landed.
type WebSocketHandler struct {
	logger arbor.ILogger

	mu        sync.RWMutex
	subs      map[string]map[*websocket.Conn]bool // session id -> connections
	sessions  map[*websocket.Conn]map[string]bool // connection -> session ids
	connMutex map[*websocket.Conn]*sync.Mutex     // serializes writes per connection
}

var _ interfaces.Broadcaster = (*WebSocketHandler)(nil)

// NewWebSocketHandler creates the session event hub.
func NewWebSocketHandler(logger arbor.ILogger) *WebSocketHandler {
	return &WebSocketHandler{
		logger:    logger,
		subs:      make(map[string]map[*websocket.Conn]bool),
		sessions:  make(map[*websocket.Conn]map[string]bool),
		connMutex: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// HandleWebSocket upgrades the connection and serves its control loop.
// Clients subscribe with {"type": "subscribe_session", "session_id": "..."}.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.connMutex[conn] = &sync.Mutex{}
	total := len(h.connMutex)
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", total)

	defer func() {
		h.purge(conn)
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "subscribe_session" || msg.SessionID == "" {
			h.send(conn, ackMessage{
				Type:    "error",
				Message: "expected {\"type\": \"subscribe_session\", \"session_id\": \"...\"}",
			})
			continue
		}

		h.subscribe(conn, msg.SessionID)
		h.send(conn, ackMessage{Type: "subscription_ack", SessionID: msg.SessionID})
	}
}

// Broadcast delivers one event to every connection subscribed to the
// session. Dead connections are dropped on write failure; delivery never
// blocks the caller beyond the writes themselves.
func (h *WebSocketHandler) Broadcast(sessionID string, event models.StatusEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal status event")
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.subs[sessionID]))
	mutexes := make([]*sync.Mutex, 0, len(h.subs[sessionID]))
	for conn := range h.subs[sessionID] {
		conns = append(conns, conn)
		mutexes = append(mutexes, h.connMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range conns {
		mutex := mutexes[i]
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Debug().Err(err).Str("session_id", sessionID).Msg("Dropping unwritable WebSocket client")
			h.purge(conn)
			conn.Close()
		}
	}
}

// SubscriberCount reports live subscriptions for one session.
func (h *WebSocketHandler) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

// subscribe adds the connection to a session's subscriber set. Subscribing
// is additive and idempotent: one connection can watch several concurrent
// sessions.
func (h *WebSocketHandler) subscribe(conn *websocket.Conn, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*websocket.Conn]bool)
	}
	h.subs[sessionID][conn] = true

	if h.sessions[conn] == nil {
		h.sessions[conn] = make(map[string]bool)
	}
	h.sessions[conn][sessionID] = true
}

// purge removes the connection from every session's subscriber set and
// drops all hub state for it, pruning sessions left without subscribers.
func (h *WebSocketHandler) purge(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sessionID := range h.sessions[conn] {
		delete(h.subs[sessionID], conn)
		if len(h.subs[sessionID]) == 0 {
			delete(h.subs, sessionID)
		}
	}
	delete(h.sessions, conn)
	delete(h.connMutex, conn)
}

func (h *WebSocketHandler) send(conn *websocket.Conn, msg ackMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	mutex := h.connMutex[conn]
	h.mu.RUnlock()
	if mutex == nil {
		return
	}

	mutex.Lock()
	defer mutex.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Debug().Err(err).Msg("Failed to write WebSocket ack")
	}
}
