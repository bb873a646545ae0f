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
	"sync"
	"time"

	"go.uber.org/zap"
)

// Result is the outcome of a completed transcription. Counts are derived
// from the transcript for reporting only.
type Result struct {
	Transcript string
	WordCount  int
	CharCount  int
}

// Progress is one progress emission for an in-flight transcription.
// Progress < 0 is the terminal-failure sentinel: the call is no longer in
// flight and no further events follow. 100 means done.
type Progress struct {
	Key      string `json:"key"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

const (
	// Synthetic feed while awaiting the remote result. The endpoint gives
	// no incremental signal, so the caller sees interpolated motion capped
	// below completion until the real terminal event.
	transcribeTickEvery = 500 * time.Millisecond
	transcribeTickStep  = 5
	transcribeTickCap   = 95
)

// configMessage is the canonical message for upstream credential failures.
// The provider's exact phrasing is not a stable contract, so every auth
// flavored error collapses to this.
const configMessage = "Transcription service is missing a valid API key. Check the server configuration."

// Requestor issues transcription calls against the endpoint server. Each
// call runs its own lifecycle; concurrent calls for the same key are the
// caller's concern.
type Requestor struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewRequestor returns a requestor bound to the endpoint base URL.
func NewRequestor(baseURL string, timeout time.Duration, logger *zap.Logger) *Requestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Requestor{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Request transcribes the recording stored under key. onProgress (optional)
// receives the synthetic feed and exactly one terminal event: 100 on
// success, negative on failure. The returned error carries the remote
// error message when one was provided.
func (r *Requestor) Request(ctx context.Context, key string, onProgress func(Progress)) (*Result, error) {
	emit := func(p Progress) {
		if onProgress != nil {
			onProgress(p)
		}
	}

	emit(Progress{Key: key, Progress: 0, Message: "Connecting to transcription service"})

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(transcribeTickEvery)
		defer ticker.Stop()
		progress := 0
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if progress+transcribeTickStep <= transcribeTickCap {
					progress += transcribeTickStep
					emit(Progress{Key: key, Progress: progress, Message: "Transcribing audio"})
				}
			}
		}
	}()

	text, err := r.post(ctx, key)

	// stop the feed before the terminal event so a stale tick can never
	// land after it
	close(done)
	wg.Wait()

	if err != nil {
		r.logger.Warn("transcription failed", zap.String("key", key), zap.Error(err))
		emit(Progress{Key: key, Progress: -1, Message: err.Error()})
		return nil, err
	}

	emit(Progress{Key: key, Progress: 100, Message: "Transcription complete"})
	r.logger.Info("transcription complete", zap.String("key", key), zap.Int("chars", len(text)))
	return &Result{
		Transcript: text,
		WordCount:  len(strings.Fields(text)),
		CharCount:  len(text),
	}, nil
}

// transcribeResponse is the endpoint envelope for both outcomes.
type transcribeResponse struct {
	Success       bool   `json:"success"`
	Transcription string `json:"transcription"`
	Error         string `json:"error"`
}

func (r *Requestor) post(ctx context.Context, key string) (string, error) {
	payload, err := json.Marshal(map[string]string{"key": key})
	if err != nil {
		return "", fmt.Errorf("encode transcription request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/transcribe", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read transcription response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.New(remoteErrorMessage(resp.StatusCode, body))
	}

	var tr transcribeResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	if !tr.Success {
		return "", errors.New(remoteErrorMessage(resp.StatusCode, body))
	}
	return tr.Transcription, nil
}

// remoteErrorMessage extracts an actionable message from a failed endpoint
// response: the structured error body when present, a status-code fallback
// otherwise. Credential flavored messages collapse to configMessage.
func remoteErrorMessage(status int, body []byte) string {
	var envelope struct {
		Error string `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(body, &envelope); err == nil {
		msg = envelope.Error
	}
	if msg == "" {
		return fmt.Sprintf("transcription failed with status %d", status)
	}
	if strings.Contains(msg, "API key") || strings.Contains(msg, "Authentication") {
		return configMessage
	}
	return msg
}
