// Package chat holds the conversation store and drives the multi-turn
// tool loop against a provider.
package chat

import (
	"context"

	"github.com/Cyclone1070/sidecar/internal/event"
	"github.com/Cyclone1070/sidecar/internal/tool"
)

// ToolResolver resolves and validates tools by qualified name.
type ToolResolver interface {
	Resolve(qualified string) (tool.Definition, bool)
	Validate(qualified string, input map[string]any) error
	Declarations() []tool.Declaration
}

// ExternalTools dispatches calls to connected tool servers.
type ExternalTools interface {
	IsConnected(server string) bool
	Invoke(ctx context.Context, server, name string, args map[string]any) (string, error)
}

// EventSink receives lifecycle events.
type EventSink interface {
	Emit(eventType, sessionID, source string, payload map[string]any, cost *float64) event.Event
}
