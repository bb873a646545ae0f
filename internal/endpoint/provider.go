package endpoint

import (
	"context"
	"errors"
	"fmt"
)

// Provider turns raw audio into transcript text. Implementations wrap one
// remote speech-to-text API.
type Provider interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
	Model() string
}

// NewProvider selects a transcription backend by name. An empty name means
// openai. Credentials are validated here so a misconfigured server is caught
// at startup, not on the first request.
func NewProvider(name, apiKey, accountID, model string) (Provider, error) {
	switch name {
	case "", "openai":
		if apiKey == "" {
			return nil, errors.New("openai provider requires an API key")
		}
		return NewOpenAIProvider(apiKey, model), nil
	case "cloudflare":
		if accountID == "" {
			return nil, errors.New("cloudflare provider requires an account id")
		}
		if apiKey == "" {
			return nil, errors.New("cloudflare provider requires an API token")
		}
		return NewCloudflareProvider(accountID, apiKey, model), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", name)
	}
}
