package endpoint

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/internal/models"
	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/pkg/response"
	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/pkg/storage"
)

// Handler serves the transcription endpoint: transcribe-by-key plus the
// acknowledgement-only upload notification.
type Handler struct {
	store    storage.ObjectStore
	provider Provider
	bucket   string
	maxBytes int64
	logger   *zap.Logger
}

// NewHandler creates the endpoint handler. maxUploadMB caps the audio size
// forwarded to the provider; 0 disables the cap.
func NewHandler(store storage.ObjectStore, provider Provider, bucket string, maxUploadMB int, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:    store,
		provider: provider,
		bucket:   bucket,
		maxBytes: int64(maxUploadMB) * 1024 * 1024,
		logger:   logger,
	}
}

type transcribeRequest struct {
	Key string `json:"key"`
}

// Transcribe handles POST /transcribe: fetch the audio by key, forward it
// to the provider, persist the transcript document, return the text.
func (h *Handler) Transcribe(c *gin.Context) {
	var req transcribeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Key) == "" {
		response.BadRequest(c, "key is required")
		return
	}
	if h.provider == nil {
		response.ServiceUnavailable(c, "transcription provider not configured")
		return
	}

	audio, err := h.store.Get(c.Request.Context(), h.bucket, req.Key)
	if err != nil {
		if storage.IsNotFound(err) {
			response.NotFound(c, "audio object not found")
			return
		}
		h.logger.Error("fetch audio failed", zap.String("key", req.Key), zap.Error(err))
		response.Internal(c, "failed to fetch audio from storage")
		return
	}
	if len(audio) == 0 {
		response.BadRequest(c, "audio object is empty")
		return
	}
	if h.maxBytes > 0 && int64(len(audio)) > h.maxBytes {
		response.BadRequest(c, "audio object exceeds the provider size limit")
		return
	}

	text, err := h.provider.Transcribe(c.Request.Context(), audio, path.Base(req.Key))
	if err != nil {
		h.logger.Error("transcription failed", zap.String("key", req.Key), zap.Error(err))
		response.Internal(c, err.Error())
		return
	}

	h.persistTranscript(c.Request.Context(), req.Key, text)

	c.JSON(http.StatusOK, gin.H{"success": true, "transcription": text})
}

// persistTranscript writes the transcript document beside the recording.
// Failure is logged but never fails the response: the client already has
// the text, and a re-invoked transcribe rewrites the document.
func (h *Handler) persistTranscript(ctx context.Context, rawKey, text string) {
	doc := models.TranscriptDocument{
		Transcription: text,
		ProcessedAt:   time.Now().UTC(),
		AudioFile:     path.Base(rawKey),
		Model:         h.provider.Model(),
		WordCount:     len(strings.Fields(text)),
		CharCount:     len(text),
	}
	body, err := json.Marshal(doc)
	if err != nil {
		h.logger.Warn("encode transcript document", zap.String("key", rawKey), zap.Error(err))
		return
	}
	key := storage.TranscriptKeyFor(rawKey)
	if err := h.store.Put(ctx, h.bucket, key, body, storage.TranscriptContentType); err != nil {
		h.logger.Warn("persist transcript document", zap.String("key", key), zap.Error(err))
		return
	}
	h.logger.Info("transcript persisted", zap.String("key", key), zap.Int("words", doc.WordCount))
}

type notifyRequest struct {
	Key      string `json:"key"`
	AudioURL string `json:"audioUrl"`
}

// NotifyUpload handles POST /: verify the object landed and acknowledge.
// Nothing is transcribed here.
func (h *Handler) NotifyUpload(c *gin.Context) {
	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Key) == "" {
		response.BadRequest(c, "key is required")
		return
	}

	obj, err := h.store.Head(c.Request.Context(), h.bucket, req.Key)
	if err != nil {
		if storage.IsNotFound(err) {
			response.NotFound(c, "audio object not found")
			return
		}
		h.logger.Error("head audio failed", zap.String("key", req.Key), zap.Error(err))
		response.Internal(c, "failed to verify audio object")
		return
	}

	h.logger.Info("upload notification", zap.String("key", req.Key), zap.Int64("size", obj.Size))
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Audio received",
		"size":     obj.Size,
		"uploaded": true,
	})
}
