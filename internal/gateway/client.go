package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/internal/transcribe"
	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/internal/upload"
)

// maxMessageSize must fit a whole recording: the UI ships the finished
// audio buffer as a single binary frame.
const maxMessageSize = 64 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local daemon; the listener binds loopback
	},
}

// Message is the WebSocket message envelope for commands and events.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// keyPayload is the data shape of the delete and transcribe commands.
type keyPayload struct {
	Key string `json:"key"`
}

// Client represents a single connected UI surface.
type Client struct {
	ID     string
	hub    *Hub
	core   *Core
	conn   *websocket.Conn
	send   chan Message
	logger *zap.Logger
}

// ServeWs handles the WebSocket upgrade and runs the client loop. Each new
// connection receives a history snapshot once registered.
func ServeWs(hub *Hub, core *Core, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:     uuid.New().String(),
			hub:    hub,
			core:   core,
			conn:   conn,
			send:   make(chan Message, 256),
			logger: logger,
		}
		hub.Register(client)
		go client.writePump()
		go client.sendInitialHistory()
		client.readPump()
	}
}

// enqueue delivers an event to this client only, dropping it when the
// buffer is full.
func (c *Client) enqueue(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	select {
	case c.send <- Message{Event: event, Data: data}:
	default:
	}
}

// sendInitialHistory pushes the current recordings to a fresh connection,
// rebuilding from the store when memory is still cold.
func (c *Client) sendInitialHistory() {
	recs := c.core.History.Snapshot()
	if len(recs) == 0 {
		loaded, err := c.core.Reconciler.Load(context.Background())
		if err != nil {
			c.logger.Warn("initial history load failed", zap.Error(err))
			return
		}
		recs = c.core.Reconciler.AttachTranscripts(context.Background(), loaded)
	}
	c.enqueue("history", HistoryEvent{Recordings: recs})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msgType {
		case websocket.BinaryMessage:
			// a binary frame is the finished recording
			go c.handleAudio(data)
		case websocket.TextMessage:
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				c.logger.Warn("malformed command", zap.Error(err))
				continue
			}
			c.dispatch(msg)
		}
	}
}

func (c *Client) dispatch(msg Message) {
	switch msg.Event {
	case "start-recording":
		if !c.hub.StartRecording() {
			c.hub.Broadcast("status", StatusEvent{Message: "Recording already in progress", IsError: true})
			return
		}
		c.hub.Broadcast("status", StatusEvent{Message: "Recording started"})
	case "stop-recording":
		if !c.hub.StopRecording() {
			c.hub.Broadcast("status", StatusEvent{Message: "No recording in progress", IsError: true})
			return
		}
		c.hub.Broadcast("status", StatusEvent{Message: "Recording stopped, saving audio"})
	case "request-history":
		go c.handleHistory()
	case "delete":
		var payload keyPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.Key == "" {
			c.hub.Broadcast("status", StatusEvent{Message: "Delete needs a recording key", IsError: true})
			return
		}
		// synchronous: a history request arriving after this command must
		// observe the delete
		c.handleDelete(payload.Key)
	case "transcribe":
		var payload keyPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.Key == "" {
			c.hub.Broadcast("status", StatusEvent{Message: "Transcribe needs a recording key", IsError: true})
			return
		}
		if c.core.Requestor == nil {
			c.hub.Broadcast("status", StatusEvent{Message: "Transcription is not configured", IsError: true})
			return
		}
		go c.handleTranscribe(payload.Key)
	default:
		// ignore
	}
}

// handleAudio drives one finished buffer through the upload pipeline and
// publishes the refreshed history on success.
func (c *Client) handleAudio(audio []byte) {
	_, err := c.core.Orchestrator.Upload(context.Background(), audio, func(ev upload.Event) {
		c.hub.Broadcast("upload-progress", ev)
	})
	if err != nil {
		c.hub.Broadcast("status", StatusEvent{Message: err.Error(), IsError: true})
		return
	}
	c.hub.Broadcast("history", HistoryEvent{Recordings: c.core.History.Snapshot()})
}

func (c *Client) handleHistory() {
	recs, err := c.core.Reconciler.Load(context.Background())
	if err != nil {
		c.hub.Broadcast("status", StatusEvent{Message: "Failed to load history: " + err.Error(), IsError: true})
		return
	}
	recs = c.core.Reconciler.AttachTranscripts(context.Background(), recs)
	c.hub.Broadcast("history", HistoryEvent{Recordings: recs})
}

func (c *Client) handleDelete(key string) {
	if err := c.core.Orchestrator.Delete(context.Background(), key); err != nil {
		c.hub.Broadcast("status", StatusEvent{Message: err.Error(), IsError: true})
		return
	}
	c.hub.Broadcast("status", StatusEvent{Message: "Recording deleted"})
	c.hub.Broadcast("history", HistoryEvent{Recordings: c.core.History.Snapshot()})
}

func (c *Client) handleTranscribe(key string) {
	res, err := c.core.Requestor.Request(context.Background(), key, func(p transcribe.Progress) {
		c.hub.Broadcast("transcription-progress", p)
	})
	if err != nil {
		c.hub.Broadcast("transcription-result", TranscriptionResult{Key: key, Success: false, Error: err.Error()})
		return
	}
	// a transcript for a key deleted mid-flight attaches to nothing
	c.core.History.AttachTranscript(key, res.Transcript)
	c.hub.Broadcast("transcription-result", TranscriptionResult{Key: key, Success: true, Transcript: res.Transcript})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
