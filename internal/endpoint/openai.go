package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const (
	defaultOpenAIModel   = "whisper-1"
	defaultOpenAIBaseURL = "https://api.openai.com/v1"

	providerTimeout = 5 * time.Minute
)

// OpenAIProvider transcribes audio via the audio/transcriptions API. Any
// whisper-compatible server works through baseURL.
type OpenAIProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAIProvider returns a provider for the OpenAI speech-to-text API.
// An empty model selects whisper-1.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultOpenAIBaseURL,
		client:  &http.Client{Timeout: providerTimeout},
	}
}

// Model returns the model name requests are issued with.
func (p *OpenAIProvider) Model() string { return p.model }

type openAIResponse struct {
	Text string `json:"text"`
}

type openAIError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Transcribe posts the audio as a multipart upload and returns the
// transcript text.
func (p *OpenAIProvider) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("model", p.model); err != nil {
		return "", fmt.Errorf("build transcription payload: %w", err)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("build transcription payload: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return "", fmt.Errorf("build transcription payload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build transcription payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read openai response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr openAIError
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("openai: %s", apiErr.Error.Message)
		}
		return "", fmt.Errorf("openai transcription failed with status %d", resp.StatusCode)
	}

	var out openAIResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	return out.Text, nil
}
