// Package openai adapts OpenAI's /v1/chat/completions API, Azure OpenAI
// deployments, and any local server that speaks the same protocol.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/Cyclone1070/sidecar/internal/provider"
	"github.com/Cyclone1070/sidecar/internal/provider/httpjson"
	"github.com/Cyclone1070/sidecar/internal/tool"
)

// Registry keys for the flavours of this adapter.
const (
	Name      = "openai"
	LocalName = "local_openai"
	AzureName = "azure_openai"
)

// Provider talks to an OpenAI-compatible endpoint.
type Provider struct {
	name       string
	client     *httpjson.Client
	model      string
	requireKey bool
	hasKey     bool

	chatPath     func(model string) string
	modelsPath   string
	staticModels []string
}

// Options configures a Provider.
type Options struct {
	// Name defaults to "openai".
	Name   string
	Client *httpjson.Client
	Model  string
	// RequireKey makes Chat and Health fail fast without an API key.
	RequireKey bool
	HasKey     bool
}

// New creates an OpenAI-compatible provider.
func New(opts Options) *Provider {
	name := opts.Name
	if name == "" {
		name = Name
	}
	return &Provider{
		name:       name,
		client:     opts.Client,
		model:      opts.Model,
		requireKey: opts.RequireKey,
		hasKey:     opts.HasKey,
		chatPath:   func(string) string { return "/v1/chat/completions" },
		modelsPath: "/v1/models",
	}
}

func (p *Provider) Name() string { return p.name }
func (p *Provider) Capability() provider.Capability { return provider.GenericText }
func (p *Provider) DefaultModel() string { return p.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string            `json:"model"`
	Messages    []chatMessage     `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float64           `json:"temperature"`
	Tools       []tool.OpenAITool `json:"tools,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   *string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Chat sends the history to the chat completions endpoint.
func (p *Provider) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	if p.requireKey && !p.hasKey {
		return nil, fmt.Errorf("%s: %w", p.name, provider.ErrMissingAPIKey)
	}

	model := req.Model
	if model == "" {
		model = p.model
	}
	body := chatRequest{
		Model:       model,
		Messages:    toMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if len(req.Tools) > 0 {
		body.Tools = tool.ToOpenAI(req.Tools)
	}

	var out chatResponse
	if err := p.client.Post(ctx, p.chatPath(model), body, &out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, &provider.ProviderError{
			Provider:   p.name,
			Code:       provider.ErrorCodeServer,
			Message:    "no choices in response",
			Underlying: provider.ErrEmptyResponse,
		}
	}

	choice := out.Choices[0]
	resp := &provider.ChatResponse{
		Model:      model,
		Provider:   p.name,
		StopReason: choice.FinishReason,
	}
	if choice.Message.Content != nil {
		resp.Text = *choice.Message.Content
	}
	if out.Usage != nil {
		resp.Usage = &provider.Usage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
		}
	}
	for _, tc := range choice.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, provider.ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: decodeArguments(tc.Function.Arguments),
		})
	}
	if len(resp.ToolCalls) > 0 {
		resp.StopReason = "tool_use"
	}
	return resp, nil
}

// decodeArguments parses the string-encoded JSON arguments. Malformed
// arguments decode to an empty object so schema validation reports them.
func decodeArguments(raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{}
	}
	return args
}

func toMessages(messages []provider.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role == provider.RoleTool {
			role = provider.RoleUser
		}
		images := m.Images()
		if len(images) == 0 {
			out = append(out, chatMessage{Role: role, Content: m.Text()})
			continue
		}
		parts := make([]contentPart, 0, len(images)+1)
		if text := m.Text(); text != "" {
			parts = append(parts, contentPart{Type: "text", Text: text})
		}
		for _, url := range images {
			parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: url}})
		}
		out = append(out, chatMessage{Role: role, Content: parts})
	}
	return out
}

// Health checks the key when one is required and that the models endpoint answers.
func (p *Provider) Health(ctx context.Context) bool {
	if p.requireKey && !p.hasKey {
		return false
	}
	return p.client.Ping(ctx, p.modelsPath)
}

// ListModels returns model ids from the models endpoint, sorted. Azure
// deployments are user-defined, so that flavour returns a fixed list.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	if p.staticModels != nil {
		return slices.Clone(p.staticModels), nil
	}
	var out struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := p.client.Get(ctx, p.modelsPath, &out); err != nil {
		return nil, fmt.Errorf("list %s models: %w", p.name, err)
	}
	ids := make([]string, 0, len(out.Data))
	for _, m := range out.Data {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids, nil
}
