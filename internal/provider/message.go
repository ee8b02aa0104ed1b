package provider

import (
	"encoding/json"
	"strings"

	"github.com/Cyclone1070/sidecar/internal/tool"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// BlockType identifies a content block.
type BlockType string

const (
	BlockText             BlockType = "text"
	BlockImage            BlockType = "image"
	BlockToolResult       BlockType = "tool_result"
	BlockFunctionResponse BlockType = "function_response"
	// BlockRaw carries a vendor block verbatim. Only the adapter named by
	// Origin interprets it.
	BlockRaw BlockType = "raw"
)

// ContentBlock is one typed piece of message content.
type ContentBlock struct {
	Type BlockType `json:"type"`

	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"` // data: URL or remote URL

	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
	Output     string `json:"output,omitempty"`

	Raw    json.RawMessage `json:"raw,omitempty"`
	Origin string          `json:"origin,omitempty"`
}

// Message is one history entry. Content is the flattened text; Blocks, when
// present, is the structured form and takes precedence for adapters that
// understand it.
type Message struct {
	Role    string         `json:"role"`
	Content string         `json:"content"`
	Blocks  []ContentBlock `json:"blocks,omitempty"`
}

// Text returns Content, or the joined text blocks when Content is empty.
func (m Message) Text() string {
	if m.Content != "" || len(m.Blocks) == 0 {
		return m.Content
	}
	var parts []string
	for _, b := range m.Blocks {
		if b.Type == BlockText && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Images returns the image URLs attached to the message.
func (m Message) Images() []string {
	var urls []string
	for _, b := range m.Blocks {
		if b.Type == BlockImage && b.ImageURL != "" {
			urls = append(urls, b.ImageURL)
		}
	}
	return urls
}

// RawBlocks returns the raw blocks produced by the named adapter.
func (m Message) RawBlocks(origin string) []json.RawMessage {
	var raw []json.RawMessage
	for _, b := range m.Blocks {
		if b.Type == BlockRaw && b.Origin == origin && len(b.Raw) > 0 {
			raw = append(raw, b.Raw)
		}
	}
	return raw
}

// SplitDataURL splits "data:<mime>;base64,<data>" into mime type and data.
// ok is false for anything that is not a base64 data URL.
func SplitDataURL(url string) (mimeType, data string, ok bool) {
	rest, found := strings.CutPrefix(url, "data:")
	if !found {
		return "", "", false
	}
	header, data, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mimeType, found = strings.CutSuffix(header, ";base64")
	if !found {
		return "", "", false
	}
	return mimeType, data, true
}

// ChatRequest is one backend round trip.
type ChatRequest struct {
	Messages    []Message
	Model       string
	Temperature float64
	MaxTokens   int
	Tools       []tool.Declaration
}

// Usage holds token accounting for one round trip.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ChatResponse is the normalized backend reply.
type ChatResponse struct {
	Text       string            `json:"content"`
	Model      string            `json:"model"`
	Provider   string            `json:"provider"`
	Usage      *Usage            `json:"usage,omitempty"`
	ToolCalls  []ToolCall        `json:"tool_calls,omitempty"`
	StopReason string            `json:"stop_reason,omitempty"`
	RawContent []json.RawMessage `json:"-"`
}

// Tokens returns prompt and completion counts, zero when usage is absent.
func (r *ChatResponse) Tokens() (prompt, completion int) {
	if r == nil || r.Usage == nil {
		return 0, 0
	}
	return r.Usage.PromptTokens, r.Usage.CompletionTokens
}

// SystemPrompt returns the last system message text and the remaining
// messages in order.
func SystemPrompt(messages []Message) (string, []Message) {
	system := ""
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = m.Text()
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
