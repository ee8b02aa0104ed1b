package gemini

import (
	"context"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// ModelInfo contains metadata about a Gemini model from the SDK
type ModelInfo struct {
	Name             string
	InputTokenLimit  int
	OutputTokenLimit int
}

// Client is the subset of the Gemini SDK the provider uses.
type Client interface {
	// GenerateContent sends a request to the Gemini API and returns the response
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

	// ListModels returns a list of available model information
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// RealClient wraps the official SDK client to satisfy Client.
type RealClient struct {
	client *genai.Client
}

// NewRealClient creates a new RealClient from an SDK client.
func NewRealClient(client *genai.Client) *RealClient {
	return &RealClient{client: client}
}

// Dial creates an SDK client for the Gemini API backend.
func Dial(ctx context.Context, apiKey string, timeout time.Duration) (*RealClient, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewRealClient(client), nil
}

// GenerateContent calls the SDK's GenerateContent method.
func (c *RealClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return c.client.Models.GenerateContent(ctx, model, contents, config)
}

// ListModels returns a list of available model information, filtered to only include gemini-* models
// (excluding embedding, image, audio, live, and robotic models)
func (c *RealClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var models []ModelInfo
	for model, err := range c.client.Models.All(ctx) {
		if err != nil {
			return nil, err
		}
		if isChatModel(model.Name) {
			models = append(models, ModelInfo{
				Name:             model.Name,
				InputTokenLimit:  int(model.InputTokenLimit),
				OutputTokenLimit: int(model.OutputTokenLimit),
			})
		}
	}
	return models, nil
}

func isChatModel(name string) bool {
	if !strings.HasPrefix(name, "models/gemini-") {
		return false
	}
	for _, excluded := range []string{"embedding", "image", "audio", "live", "robotic"} {
		if strings.Contains(name, excluded) {
			return false
		}
	}
	return true
}
