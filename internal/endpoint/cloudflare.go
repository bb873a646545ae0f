package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

const (
	defaultCloudflareModel = "@cf/openai/whisper"
	cloudflareAPIBase      = "https://api.cloudflare.com/client/v4"
)

// CloudflareProvider transcribes audio via Workers AI:
// POST {base}/accounts/{account_id}/ai/run/{model} with a bearer token.
type CloudflareProvider struct {
	accountID string
	apiToken  string
	model     string
	baseURL   string
	client    *http.Client
}

// NewCloudflareProvider returns a Workers AI provider. An empty model
// selects the whisper model.
func NewCloudflareProvider(accountID, apiToken, model string) *CloudflareProvider {
	if model == "" {
		model = defaultCloudflareModel
	}
	return &CloudflareProvider{
		accountID: accountID,
		apiToken:  apiToken,
		model:     model,
		baseURL:   cloudflareAPIBase,
		client:    &http.Client{Timeout: providerTimeout},
	}
}

// Model returns the model name requests are issued with.
func (p *CloudflareProvider) Model() string { return p.model }

type cloudflareResponse struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Result json.RawMessage `json:"result"`
}

type cloudflareWhisperResult struct {
	Text string `json:"text"`
}

// Transcribe posts the audio as a multipart upload and unwraps the Workers
// AI response envelope.
func (p *CloudflareProvider) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
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

	url := fmt.Sprintf("%s/accounts/%s/ai/run/%s", p.baseURL, p.accountID, p.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiToken)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("cloudflare request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read cloudflare response: %w", err)
	}

	var out cloudflareResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode >= 300 {
			return "", fmt.Errorf("cloudflare transcription failed with status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("decode cloudflare response: %w", err)
	}
	if !out.Success {
		if len(out.Errors) > 0 {
			return "", fmt.Errorf("cloudflare: %s", out.Errors[0].Message)
		}
		return "", fmt.Errorf("cloudflare transcription failed with status %d", resp.StatusCode)
	}

	var result cloudflareWhisperResult
	if err := json.Unmarshal(out.Result, &result); err != nil {
		return "", fmt.Errorf("decode cloudflare result: %w", err)
	}
	return result.Text, nil
}
