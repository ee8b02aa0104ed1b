// Package builtin provides the in-process tools registered under the
// "builtin" namespace.
package builtin

import (
	"time"

	"github.com/Cyclone1070/sidecar/internal/tool"
	"github.com/mitchellh/mapstructure"
)

// Options configures the built-in tools.
type Options struct {
	Workspace        string
	Mode             Mode
	ShellTimeout     time.Duration
	MaxFileSize      int64
	MaxOutputSize    int64
	GracefulShutdown time.Duration
}

// Tools holds the state shared by the built-in handlers.
type Tools struct {
	policy       *Policy
	runner       *runner
	shellTimeout time.Duration
	maxFileSize  int64
}

// New creates the built-in tool set. Zero option values take defaults.
func New(opts Options) (*Tools, error) {
	if opts.Mode == "" {
		opts.Mode = ModeRestricted
	}
	if opts.ShellTimeout <= 0 {
		opts.ShellTimeout = 30 * time.Second
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = 10 * 1024 * 1024
	}
	if opts.MaxOutputSize <= 0 {
		opts.MaxOutputSize = 1024 * 1024
	}
	if opts.GracefulShutdown <= 0 {
		opts.GracefulShutdown = 2 * time.Second
	}

	policy, err := NewPolicy(opts.Workspace, opts.Mode)
	if err != nil {
		return nil, err
	}
	return &Tools{
		policy:       policy,
		runner:       &runner{maxOutput: int(opts.MaxOutputSize), grace: opts.GracefulShutdown},
		shellTimeout: opts.ShellTimeout,
		maxFileSize:  opts.MaxFileSize,
	}, nil
}

// Register adds every built-in tool to the registry.
func (t *Tools) Register(r *tool.Registry) {
	r.RegisterMany(t.Definitions()...)
}

// Definitions returns the built-in tool definitions.
func (t *Tools) Definitions() []tool.Definition {
	return []tool.Definition{
		{
			Server:      tool.BuiltinServer,
			Name:        "shell",
			Description: "Execute a shell command and return stdout/stderr. Use for running programs, checking system state, git operations, etc.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"command": map[string]any{
						"type":        "string",
						"description": "The shell command to execute",
					},
					"timeout": map[string]any{
						"type":        "number",
						"description": "Timeout in seconds (default: 30)",
						"default":     30.0,
					},
					"cwd": map[string]any{
						"type":        "string",
						"description": "Working directory for the command (optional)",
					},
				},
				"required": []any{"command"},
			},
			Handler: t.handleShell,
		},
		{
			Server:      tool.BuiltinServer,
			Name:        "read_file",
			Description: "Read the contents of a file at the given path.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Absolute or relative file path to read",
					},
				},
				"required": []any{"path"},
			},
			Handler: t.handleReadFile,
		},
		{
			Server:      tool.BuiltinServer,
			Name:        "write_file",
			Description: "Write content to a file, creating it if it doesn't exist.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "File path to write to",
					},
					"content": map[string]any{
						"type":        "string",
						"description": "Content to write",
					},
				},
				"required": []any{"path", "content"},
			},
			Handler: t.handleWriteFile,
		},
		{
			Server:      tool.BuiltinServer,
			Name:        "list_directory",
			Description: "List files and directories at the given path.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Directory path to list",
					},
				},
				"required": []any{"path"},
			},
			Handler: t.handleListDirectory,
		},
	}
}

// decodeInput maps loosely typed model arguments onto a request struct.
func decodeInput(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
