package chat

import (
	"github.com/Cyclone1070/sidecar/internal/provider"
)

// assistantTurn encodes a response that requested tools. Backends with a
// native tool protocol get their raw blocks back verbatim so later turns
// can pair call ids; the rest see flattened text.
func assistantTurn(capability provider.Capability, origin string, resp *provider.ChatResponse) provider.Message {
	msg := provider.Message{Role: provider.RoleAssistant, Content: resp.Text}

	switch capability {
	case provider.NativeToolBlocks, provider.FunctionResponseParts:
		for _, raw := range resp.RawContent {
			msg.Blocks = append(msg.Blocks, provider.ContentBlock{
				Type:   provider.BlockRaw,
				Raw:    raw,
				Origin: origin,
			})
		}
	}
	return msg
}

// toolResults encodes the outputs of one iteration in the shape the
// backend expects on its next request.
func toolResults(capability provider.Capability, records []ToolCallRecord) []provider.Message {
	if len(records) == 0 {
		return nil
	}

	switch capability {
	case provider.NativeToolBlocks:
		msg := provider.Message{Role: provider.RoleUser}
		for _, r := range records {
			msg.Blocks = append(msg.Blocks, provider.ContentBlock{
				Type:       provider.BlockToolResult,
				ToolCallID: r.ToolCallID,
				Output:     r.Output,
			})
		}
		return []provider.Message{msg}

	case provider.FunctionResponseParts:
		msg := provider.Message{Role: provider.RoleTool}
		for _, r := range records {
			msg.Blocks = append(msg.Blocks, provider.ContentBlock{
				Type:       provider.BlockFunctionResponse,
				ToolCallID: r.ToolCallID,
				ToolName:   r.ToolName,
				Output:     r.Output,
			})
		}
		return []provider.Message{msg}

	default:
		msgs := make([]provider.Message, 0, len(records))
		for _, r := range records {
			msgs = append(msgs, provider.Message{
				Role:    provider.RoleUser,
				Content: "Tool result for " + r.ToolName + ":\n" + r.Output,
			})
		}
		return msgs
	}
}
