// Package ollama adapts a local Ollama server's /api/chat endpoint.
package ollama

import (
	"context"
	"fmt"
	"sort"

	"github.com/Cyclone1070/sidecar/internal/provider"
	"github.com/Cyclone1070/sidecar/internal/provider/httpjson"
	"github.com/Cyclone1070/sidecar/internal/tool"
	"github.com/google/uuid"
)

// Name is the provider registry key.
const Name = "ollama"

// Provider talks to Ollama.
type Provider struct {
	client *httpjson.Client
	model  string
}

// New creates an Ollama provider over client.
func New(client *httpjson.Client, defaultModel string) *Provider {
	return &Provider{client: client, model: defaultModel}
}

func (p *Provider) Name() string { return Name }
func (p *Provider) Capability() provider.Capability { return provider.GenericText }
func (p *Provider) DefaultModel() string { return p.model }

type chatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Images    []string   `json:"images,omitempty"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

type toolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type chatRequest struct {
	Model    string            `json:"model"`
	Messages []chatMessage     `json:"messages"`
	Stream   bool              `json:"stream"`
	Options  map[string]any    `json:"options"`
	Tools    []tool.OpenAITool `json:"tools,omitempty"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	DoneReason      string      `json:"done_reason"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// Chat sends the history to /api/chat without streaming.
func (p *Provider) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	body := chatRequest{
		Model:    model,
		Messages: toMessages(req.Messages),
		Stream:   false,
		Options: map[string]any{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}
	if len(req.Tools) > 0 {
		body.Tools = tool.ToOpenAI(req.Tools)
	}

	var out chatResponse
	if err := p.client.Post(ctx, "/api/chat", body, &out); err != nil {
		return nil, err
	}

	resp := &provider.ChatResponse{
		Text:       out.Message.Content,
		Model:      model,
		Provider:   Name,
		StopReason: out.DoneReason,
		Usage: &provider.Usage{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
		},
	}
	for _, tc := range out.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, provider.ToolCall{
			// Ollama does not assign call ids.
			ID:    "call_" + uuid.NewString()[:8],
			Name:  tc.Function.Name,
			Input: tc.Function.Arguments,
		})
	}
	if len(resp.ToolCalls) > 0 {
		resp.StopReason = "tool_use"
	}
	return resp, nil
}

// toMessages flattens history; images become base64 payloads in the
// images field.
func toMessages(messages []provider.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		msg := chatMessage{Role: m.Role, Content: m.Text()}
		if msg.Role == provider.RoleTool {
			msg.Role = provider.RoleUser
		}
		for _, url := range m.Images() {
			if _, data, ok := provider.SplitDataURL(url); ok {
				msg.Images = append(msg.Images, data)
			}
		}
		out = append(out, msg)
	}
	return out
}

// Health reports whether /api/tags answers.
func (p *Provider) Health(ctx context.Context) bool {
	return p.client.Ping(ctx, "/api/tags")
}

// ListModels returns the locally pulled models, sorted.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	var out struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := p.client.Get(ctx, "/api/tags", &out); err != nil {
		return nil, fmt.Errorf("list ollama models: %w", err)
	}
	names := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names, nil
}
