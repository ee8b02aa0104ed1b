// Package provider defines the common contract implemented by every LLM
// backend adapter.
package provider

import "context"

// Capability tells the orchestrator how a backend wants assistant turns and
// tool results encoded in history.
type Capability int

const (
	// GenericText backends take flattened text history and see tool results
	// as synthetic user messages.
	GenericText Capability = iota
	// NativeToolBlocks backends need their raw content blocks preserved and
	// tool results as id-paired result blocks.
	NativeToolBlocks
	// FunctionResponseParts backends need raw parts preserved and tool
	// results as a tool-role message of function responses.
	FunctionResponseParts
)

func (c Capability) String() string {
	switch c {
	case GenericText:
		return "generic_text"
	case NativeToolBlocks:
		return "native_tool_blocks"
	case FunctionResponseParts:
		return "function_response_parts"
	default:
		return "unknown"
	}
}

// Provider is an LLM backend.
type Provider interface {
	// Name is the registry key, e.g. "anthropic".
	Name() string

	// Capability selects the history encoding the backend expects.
	Capability() Capability

	// DefaultModel is used when a request names no model.
	DefaultModel() string

	// Chat sends the full history and returns one completion.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Health reports whether the backend is reachable and configured.
	Health(ctx context.Context) bool

	// ListModels returns model identifiers the backend offers.
	ListModels(ctx context.Context) ([]string, error)
}
