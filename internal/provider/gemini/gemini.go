// Package gemini adapts Google Gemini through the genai SDK.
package gemini

import (
	"context"
	"sort"
	"strings"

	"github.com/Cyclone1070/sidecar/internal/provider"
	"github.com/rs/zerolog"
)

// Name is the provider registry key.
const Name = "google"

// Provider implements provider.Provider for Google Gemini.
type Provider struct {
	client Client
	model  string
	log    zerolog.Logger
}

// New creates a Provider with the specified client and default model. A
// nil client means no API key is configured.
func New(client Client, defaultModel string, log zerolog.Logger) *Provider {
	return &Provider{client: client, model: defaultModel, log: log}
}

func (p *Provider) Name() string { return Name }
func (p *Provider) Capability() provider.Capability { return provider.FunctionResponseParts }
func (p *Provider) DefaultModel() string { return p.model }

// Chat sends the history to GenerateContent.
func (p *Provider) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	if p.client == nil {
		return nil, &provider.ProviderError{
			Provider:   Name,
			Code:       provider.ErrorCodeAuth,
			Message:    "GOOGLE_API_KEY not set",
			Underlying: provider.ErrMissingAPIKey,
		}
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	system, rest := provider.SystemPrompt(req.Messages)
	contents := toGeminiContents(rest, p.log)
	config := toGeminiConfig(system, req)

	resp, err := p.client.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, mapGeminiError(err)
	}
	return fromGeminiResponse(resp, model)
}

// Health reports whether the model list can be fetched.
func (p *Provider) Health(ctx context.Context) bool {
	if p.client == nil {
		return false
	}
	_, err := p.client.ListModels(ctx)
	return err == nil
}

// ListModels returns chat-capable Gemini models without the "models/"
// prefix, sorted.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	if p.client == nil {
		return nil, provider.ErrMissingAPIKey
	}
	infos, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, mapGeminiError(err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, strings.TrimPrefix(info.Name, "models/"))
	}
	sort.Strings(names)
	return names, nil
}
