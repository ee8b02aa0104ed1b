package mcp

import (
	"encoding/json"
	"strings"
)

const (
	jsonRPCVersion = "2.0"

	// ProtocolVersion is the MCP revision announced in initialize.
	ProtocolVersion = "2024-11-05"
	// ClientName is the client identity announced in initialize.
	ClientName = "sidecar"

	methodInitialize  = "initialize"
	methodInitialized = "notifications/initialized"
	methodToolsList   = "tools/list"
	methodToolsCall   = "tools/call"
)

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type response struct {
	ID     *int64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Tool is one entry in a tools/list result.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type listToolsResult struct {
	Tools []Tool `json:"tools"`
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type callToolResult struct {
	Content []json.RawMessage `json:"content"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const imagePlaceholder = "[image data]"

// reduceContent flattens a tools/call result into text. Text items are
// kept, images become a placeholder and anything else is rendered as its
// JSON form.
func reduceContent(raw json.RawMessage) string {
	var result callToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "(no output)"
	}

	parts := make([]string, 0, len(result.Content))
	for _, item := range result.Content {
		var c contentItem
		if err := json.Unmarshal(item, &c); err != nil {
			parts = append(parts, string(item))
			continue
		}
		switch c.Type {
		case "text":
			parts = append(parts, c.Text)
		case "image":
			parts = append(parts, imagePlaceholder)
		default:
			parts = append(parts, compactJSON(item))
		}
	}

	out := strings.Join(parts, "\n")
	if out == "" {
		return "(no output)"
	}
	return out
}

func compactJSON(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(data)
}

// defaultInputSchema is used for tools that advertise no schema.
func defaultInputSchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
