// Package anthropic adapts the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Cyclone1070/sidecar/internal/provider"
	"github.com/Cyclone1070/sidecar/internal/provider/httpjson"
	"github.com/Cyclone1070/sidecar/internal/tool"
)

const (
	// Name is the provider registry key.
	Name = "anthropic"
	// APIVersion is sent as the anthropic-version header.
	APIVersion = "2023-06-01"
)

var staticModels = []string{
	"claude-sonnet-4-20250514",
	"claude-opus-4-20250514",
	"claude-3-5-haiku-20241022",
}

// Headers returns the request headers for apiKey.
func Headers(apiKey string) map[string]string {
	return map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": APIVersion,
	}
}

// Provider talks to Anthropic.
type Provider struct {
	client *httpjson.Client
	model  string
	hasKey bool
}

// New creates an Anthropic provider. client must carry Headers(apiKey).
func New(client *httpjson.Client, defaultModel string, hasKey bool) *Provider {
	return &Provider{client: client, model: defaultModel, hasKey: hasKey}
}

func (p *Provider) Name() string { return Name }
func (p *Provider) Capability() provider.Capability { return provider.NativeToolBlocks }
func (p *Provider) DefaultModel() string { return p.model }

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type textBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type imageBlock struct {
	Type   string      `json:"type"`
	Source imageSource `json:"source"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type toolResultBlock struct {
	Type      string `json:"type"`
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
}

type messagesRequest struct {
	Model       string               `json:"model"`
	Messages    []message            `json:"messages"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature float64              `json:"temperature"`
	System      string               `json:"system,omitempty"`
	Tools       []tool.AnthropicTool `json:"tools,omitempty"`
}

type responseBlock struct {
	Type  string         `json:"type"`
	Text  string         `json:"text"`
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

type messagesResponse struct {
	Model      string            `json:"model"`
	Content    []json.RawMessage `json:"content"`
	StopReason string            `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Chat sends the history to /v1/messages.
func (p *Provider) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	if !p.hasKey {
		return nil, fmt.Errorf("%s: %w", Name, provider.ErrMissingAPIKey)
	}

	model := req.Model
	if model == "" {
		model = p.model
	}
	system, rest := provider.SystemPrompt(req.Messages)
	body := messagesRequest{
		Model:       model,
		Messages:    toMessages(rest),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		System:      system,
	}
	if len(req.Tools) > 0 {
		body.Tools = tool.ToAnthropic(req.Tools)
	}

	var out messagesResponse
	if err := p.client.Post(ctx, "/v1/messages", body, &out); err != nil {
		return nil, err
	}

	resp := &provider.ChatResponse{
		Model:      model,
		Provider:   Name,
		StopReason: out.StopReason,
		RawContent: out.Content,
		Usage: &provider.Usage{
			PromptTokens:     out.Usage.InputTokens,
			CompletionTokens: out.Usage.OutputTokens,
		},
	}
	var text []string
	for _, raw := range out.Content {
		var block responseBlock
		if err := json.Unmarshal(raw, &block); err != nil {
			continue
		}
		switch block.Type {
		case "text":
			text = append(text, block.Text)
		case "tool_use":
			input := block.Input
			if input == nil {
				input = map[string]any{}
			}
			resp.ToolCalls = append(resp.ToolCalls, provider.ToolCall{ID: block.ID, Name: block.Name, Input: input})
		}
	}
	resp.Text = strings.Join(text, "")
	return resp, nil
}

func toMessages(messages []provider.Message) []message {
	out := make([]message, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role == provider.RoleTool {
			role = provider.RoleUser
		}
		if content := toContent(m); content != nil {
			out = append(out, message{Role: role, Content: content})
		}
	}
	return out
}

// toContent picks the richest encoding the message supports: this
// adapter's raw blocks, then tool results, then text with images, then
// plain text. Empty messages yield nil.
func toContent(m provider.Message) any {
	if raw := m.RawBlocks(Name); len(raw) > 0 {
		return raw
	}

	var results []toolResultBlock
	for _, b := range m.Blocks {
		if b.Type == provider.BlockToolResult {
			results = append(results, toolResultBlock{Type: "tool_result", ToolUseID: b.ToolCallID, Content: b.Output})
		}
	}
	if len(results) > 0 {
		return results
	}

	text := m.Text()
	images := m.Images()
	if len(images) == 0 {
		if text == "" {
			return nil
		}
		return text
	}

	blocks := make([]any, 0, len(images)+1)
	for _, url := range images {
		if mediaType, data, ok := provider.SplitDataURL(url); ok {
			blocks = append(blocks, imageBlock{Type: "image", Source: imageSource{Type: "base64", MediaType: mediaType, Data: data}})
		} else {
			blocks = append(blocks, imageBlock{Type: "image", Source: imageSource{Type: "url", URL: url}})
		}
	}
	if text != "" {
		blocks = append(blocks, textBlock{Type: "text", Text: text})
	}
	return blocks
}

// Health requires a key and a reachable /v1/models.
func (p *Provider) Health(ctx context.Context) bool {
	if !p.hasKey {
		return false
	}
	return p.client.Ping(ctx, "/v1/models")
}

// ListModels returns the supported Claude models.
func (p *Provider) ListModels(_ context.Context) ([]string, error) {
	return append([]string(nil), staticModels...), nil
}
