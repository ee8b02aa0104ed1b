// Package mcp manages external tool servers speaking newline-delimited
// JSON-RPC over a child process's stdin and stdout.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Cyclone1070/sidecar/internal/tool"
	"github.com/rs/zerolog"
)

// TransportStdio is the only supported transport.
const TransportStdio = "stdio"

// DefaultTimeout bounds each response read.
const DefaultTimeout = 30 * time.Second

// Connect statuses.
const (
	StatusConnected = "connected"
	StatusError     = "error"
)

// ServerConfig describes how to launch one server.
type ServerConfig struct {
	Name      string            `json:"name" binding:"required"`
	Transport string            `json:"transport"`
	Command   string            `json:"command"`
	Args      []string          `json:"args"`
	Env       map[string]string `json:"env"`
}

// ConnectResult is the outcome of Connect. Failures are reported here
// rather than as a returned error.
type ConnectResult struct {
	Server string   `json:"server"`
	Status string   `json:"status"`
	Tools  []string `json:"tools,omitempty"`
	Error  string   `json:"error,omitempty"`
	Err    error    `json:"-"`
}

// OK reports whether the server connected.
func (r ConnectResult) OK() bool {
	return r.Status == StatusConnected
}

// ToolRegistry is the subset of tool.Registry the manager writes to.
type ToolRegistry interface {
	Register(def tool.Definition)
	UnregisterServer(server string) int
}

// Options configures a Manager.
type Options struct {
	Registry      ToolRegistry
	Logger        zerolog.Logger
	Timeout       time.Duration // per read; DefaultTimeout when zero
	ClientVersion string

	// OnChange is called with the number of connected servers after every
	// connect or disconnect.
	OnChange func(connected int)
}

// Manager owns the external server connections.
type Manager struct {
	registry ToolRegistry
	log      zerolog.Logger
	timeout  time.Duration
	version  string
	onChange func(int)

	lifecycleMu sync.Mutex // serializes Connect and Disconnect

	mu    sync.RWMutex
	conns map[string]*conn
}

// NewManager creates a manager with no connections.
func NewManager(opts Options) *Manager {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	version := opts.ClientVersion
	if version == "" {
		version = "dev"
	}
	return &Manager{
		registry: opts.Registry,
		log:      opts.Logger,
		timeout:  timeout,
		version:  version,
		onChange: opts.OnChange,
		conns:    make(map[string]*conn),
	}
}

// Connect launches the server, performs the handshake and registers its
// tools under the server name. An existing connection with the same name
// is disconnected first.
func (m *Manager) Connect(ctx context.Context, cfg ServerConfig) ConnectResult {
	transport := cfg.Transport
	if transport == "" {
		transport = TransportStdio
	}
	log := m.log.With().Str("server", cfg.Name).Logger()

	fail := func(err error) ConnectResult {
		log.Warn().Err(err).Msg("MCP server connect failed")
		return ConnectResult{Server: cfg.Name, Status: StatusError, Error: err.Error(), Err: err}
	}

	switch {
	case cfg.Name == tool.BuiltinServer:
		return fail(fmt.Errorf("%w: %s", ErrReservedName, cfg.Name))
	case transport != TransportStdio:
		return fail(&TransportError{Transport: transport})
	case cfg.Command == "":
		res := fail(ErrMissingCommand)
		res.Error = "No command specified for stdio transport"
		return res
	}

	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if m.IsConnected(cfg.Name) {
		m.disconnectLocked(cfg.Name)
	}

	c, err := spawn(cfg, m.timeout, log)
	if err != nil {
		return fail(err)
	}
	tools, err := c.handshake(ctx, m.version)
	if err != nil {
		c.close()
		return fail(err)
	}

	names := make([]string, 0, len(tools))
	for _, t := range tools {
		if t.Name == "" {
			continue
		}
		schema := t.InputSchema
		if schema == nil {
			schema = defaultInputSchema()
		}
		if m.registry != nil {
			m.registry.Register(tool.Definition{
				Server:      cfg.Name,
				Name:        t.Name,
				Description: t.Description,
				InputSchema: schema,
			})
		}
		names = append(names, t.Name)
	}

	m.mu.Lock()
	m.conns[cfg.Name] = c
	count := len(m.conns)
	m.mu.Unlock()
	m.changed(count)

	log.Info().Int("tools", len(names)).Msg("MCP server connected")
	return ConnectResult{Server: cfg.Name, Status: StatusConnected, Tools: names}
}

// Disconnect stops the server and removes its tools from the registry.
// It reports whether a live connection was closed.
func (m *Manager) Disconnect(name string) bool {
	if name == tool.BuiltinServer {
		return false
	}
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	return m.disconnectLocked(name)
}

func (m *Manager) disconnectLocked(name string) bool {
	m.mu.Lock()
	c, ok := m.conns[name]
	delete(m.conns, name)
	count := len(m.conns)
	m.mu.Unlock()

	if ok {
		c.close()
	}
	removed := 0
	if m.registry != nil {
		removed = m.registry.UnregisterServer(name)
	}
	if ok {
		m.changed(count)
	}

	m.log.Info().
		Str("server", name).
		Bool("was_connected", ok).
		Int("tools_removed", removed).
		Msg("MCP server disconnected")
	return ok
}

// Shutdown disconnects every server.
func (m *Manager) Shutdown() {
	for _, name := range m.Servers() {
		m.Disconnect(name)
	}
}

// IsConnected reports whether a live connection exists for name.
func (m *Manager) IsConnected(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.conns[name]
	return ok
}

// Servers returns the connected server names, sorted.
func (m *Manager) Servers() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.conns))
	for name := range m.conns {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Strings(names)
	return names
}

// CallTool invokes a tool on a connected server. The result is always
// text; failures are rendered as error strings.
func (m *Manager) CallTool(ctx context.Context, server, name string, args map[string]any) string {
	out, err := m.Invoke(ctx, server, name, args)
	switch {
	case errors.Is(err, ErrNotConnected):
		return fmt.Sprintf("Error: MCP server '%s' not connected", server)
	case err != nil:
		return "Error executing tool: " + err.Error()
	}
	return out
}

// Invoke is CallTool with failures returned as errors.
func (m *Manager) Invoke(ctx context.Context, server, name string, args map[string]any) (string, error) {
	m.mu.RLock()
	c, ok := m.conns[server]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotConnected, server)
	}

	if args == nil {
		args = map[string]any{}
	}
	raw, err := c.call(ctx, methodToolsCall, callToolParams{Name: name, Arguments: args})
	if err != nil {
		m.log.Warn().Err(err).Str("server", server).Str("tool", name).Msg("MCP tool call failed")
		return "", err
	}
	return reduceContent(raw), nil
}

func (m *Manager) changed(count int) {
	if m.onChange != nil {
		m.onChange(count)
	}
}
