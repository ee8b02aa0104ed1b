package mcp

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedTransport is matched by connect attempts using any
	// transport other than stdio.
	ErrUnsupportedTransport = errors.New("unsupported transport")
	// ErrMissingCommand is returned when a stdio server has no command.
	ErrMissingCommand = errors.New("no command specified for stdio transport")
	// ErrReservedName is returned when a server tries to claim the builtin namespace.
	ErrReservedName = errors.New("server name is reserved")
	// ErrNotConnected is returned for calls to a server with no live connection.
	ErrNotConnected = errors.New("MCP server not connected")
	// ErrConnectionClosed is returned when the server closes stdout before
	// answering an outstanding request.
	ErrConnectionClosed = errors.New("MCP server closed the connection")
	// ErrTimeout is returned when no line arrives within the read timeout.
	ErrTimeout = errors.New("timed out waiting for MCP response")
)

// TransportError reports an unsupported transport kind.
type TransportError struct {
	Transport string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("Transport '%s' not yet supported", e.Transport)
}

// Is matches ErrUnsupportedTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrUnsupportedTransport
}

// RPCError is a JSON-RPC error returned by the server.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return "MCP error: " + e.Message
}
