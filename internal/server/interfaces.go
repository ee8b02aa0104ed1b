// Package server exposes the sidecar over HTTP and streams bus events to
// websocket clients.
package server

import (
	"context"

	"github.com/Cyclone1070/sidecar/internal/mcp"
	"github.com/Cyclone1070/sidecar/internal/tool"
)

// MCPManager connects and disconnects external tool servers.
type MCPManager interface {
	Connect(ctx context.Context, cfg mcp.ServerConfig) mcp.ConnectResult
	Disconnect(name string) bool
	Servers() []string
}

// ToolCatalog lists the registered tools.
type ToolCatalog interface {
	Summary() []tool.Summary
	Len() int
}
