package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local tooling connects cross-origin
	},
}

// wsMessage is the wire envelope for the progress feed.
type wsMessage struct {
	Type             string      `json:"type"`
	ServerInstanceID string      `json:"server_instance_id"`
	Payload          interface{} `json:"payload"`
}

// WebSocketHandler broadcasts job progress to connected clients. The server
// instance id lets clients detect a restart and resubscribe; a fresh client
// is primed with the newest snapshot of every tracked job.
type WebSocketHandler struct {
	config   common.WebSocketConfig
	progress interfaces.ProgressPublisher
	logger   arbor.ILogger

	instanceID string

	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
}

// NewWebSocketHandler creates the handler and subscribes it to the progress
// event types on the bus.
func NewWebSocketHandler(bus interfaces.EventService, progress interfaces.ProgressPublisher, config common.WebSocketConfig, logger arbor.ILogger) (*WebSocketHandler, error) {
	h := &WebSocketHandler{
		config:     config,
		progress:   progress,
		logger:     logger,
		instanceID: uuid.New().String(),
		clients:    make(map[*websocket.Conn]*sync.Mutex),
	}

	for _, eventType := range []interfaces.EventType{
		interfaces.EventJobProgress,
		interfaces.EventJobCompleted,
		interfaces.EventJobFailed,
		interfaces.EventJobCancelled,
	} {
		if err := bus.Subscribe(eventType, h.onEvent); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Str("server_instance_id", h.instanceID).
		Msg("WebSocket progress feed initialized")
	return h, nil
}

// HandleWebSocket upgrades the connection and serves the feed until the
// client goes away.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	writeMu := &sync.Mutex{}
	h.mu.Lock()
	h.clients[conn] = writeMu
	h.mu.Unlock()

	h.logger.Debug().
		Str("remote", r.RemoteAddr).
		Int("clients", h.clientCount()).
		Msg("WebSocket client connected")

	// Late subscribers get the newest snapshot per job, not the backlog.
	for _, snapshot := range h.progress.Snapshot() {
		h.send(conn, writeMu, wsMessage{
			Type:             string(eventTypeForStatus(snapshot.Status)),
			ServerInstanceID: h.instanceID,
			Payload:          snapshot,
		})
	}

	go h.pingLoop(conn, writeMu)
	h.readLoop(conn)
}

// onEvent fans one bus event out to every client.
func (h *WebSocketHandler) onEvent(ctx context.Context, event interfaces.Event) error {
	message := wsMessage{
		Type:             string(event.Type),
		ServerInstanceID: h.instanceID,
		Payload:          event.Payload,
	}

	h.mu.RLock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for conn, mu := range h.clients {
		conns[conn] = mu
	}
	h.mu.RUnlock()

	for conn, mu := range conns {
		h.send(conn, mu, message)
	}
	return nil
}

// send writes one message; a failed write drops the client.
func (h *WebSocketHandler) send(conn *websocket.Conn, writeMu *sync.Mutex, message wsMessage) {
	writeMu.Lock()
	defer writeMu.Unlock()

	if h.config.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
	}
	if err := conn.WriteJSON(message); err != nil {
		h.drop(conn)
	}
}

// pingLoop keeps the connection alive through idle stretches.
func (h *WebSocketHandler) pingLoop(conn *websocket.Conn, writeMu *sync.Mutex) {
	interval := h.config.PingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if !h.isConnected(conn) {
			return
		}
		writeMu.Lock()
		err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		writeMu.Unlock()
		if err != nil {
			h.drop(conn)
			return
		}
	}
}

// readLoop drains client frames so control messages are processed; any read
// error ends the connection.
func (h *WebSocketHandler) readLoop(conn *websocket.Conn) {
	defer h.drop(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WebSocketHandler) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, present := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()

	if present {
		_ = conn.Close()
		h.logger.Debug().
			Int("clients", h.clientCount()).
			Msg("WebSocket client disconnected")
	}
}

func (h *WebSocketHandler) isConnected(conn *websocket.Conn) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[conn]
	return ok
}

func (h *WebSocketHandler) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func eventTypeForStatus(status models.JobStatus) interfaces.EventType {
	switch status {
	case models.JobStatusSucceeded:
		return interfaces.EventJobCompleted
	case models.JobStatusFailed:
		return interfaces.EventJobFailed
	case models.JobStatusCancelled:
		return interfaces.EventJobCancelled
	default:
		return interfaces.EventJobProgress
	}
}
