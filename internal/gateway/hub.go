package gateway

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains the set of connected UI surfaces and broadcasts events to
// all of them. One daemon serves one user, so there are no rooms; every
// event goes to every connection. It also owns the single recording flag,
// since the microphone is a process-wide resource.
type Hub struct {
	clients   map[string]*Client
	recording bool
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewHub creates a WebSocket hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds a client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID))
}

// Unregister removes a client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to every connected client. A client whose send
// buffer is full is skipped rather than blocking the rest.
func (h *Hub) Broadcast(event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := Message{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// StartRecording flips the recording flag on, reporting false when a
// recording is already in progress.
func (h *Hub) StartRecording() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.recording {
		return false
	}
	h.recording = true
	return true
}

// StopRecording flips the recording flag off, reporting false when nothing
// was recording.
func (h *Hub) StopRecording() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.recording {
		return false
	}
	h.recording = false
	return true
}

// Recording reports whether a recording is in progress.
func (h *Hub) Recording() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.recording
}
