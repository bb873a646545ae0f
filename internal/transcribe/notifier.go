package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// UploadAck is the endpoint's acknowledgement of an upload notification.
type UploadAck struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Size     int64  `json:"size"`
	Uploaded bool   `json:"uploaded"`
}

// Notifier announces finished uploads to the endpoint server. The endpoint
// only acknowledges receipt; transcription itself is requested separately.
type Notifier struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewNotifier returns a notifier bound to the endpoint base URL.
func NewNotifier(baseURL string, timeout time.Duration, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// NotifyUploaded tells the endpoint that key landed in the store, passing
// the signed playback URL along for endpoints that verify it.
func (n *Notifier) NotifyUploaded(ctx context.Context, key, audioURL string) (*UploadAck, error) {
	payload, err := json.Marshal(map[string]string{
		"key":      key,
		"audioUrl": audioURL,
	})
	if err != nil {
		return nil, fmt.Errorf("encode upload notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build upload notification: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload notification: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read notification response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.New(remoteErrorMessage(resp.StatusCode, body))
	}

	var ack UploadAck
	if err := json.Unmarshal(body, &ack); err != nil {
		return nil, fmt.Errorf("decode notification response: %w", err)
	}
	n.logger.Debug("upload acknowledged",
		zap.String("key", key),
		zap.Int64("size", ack.Size),
		zap.Bool("uploaded", ack.Uploaded))
	return &ack, nil
}
