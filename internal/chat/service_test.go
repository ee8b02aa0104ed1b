package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/Cyclone1070/sidecar/internal/provider"
	"github.com/Cyclone1070/sidecar/internal/tool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_FirstProviderBecomesDefault(t *testing.T) {
	a := newMockProvider("alpha", provider.GenericText)
	b := newMockProvider("beta", provider.NativeToolBlocks)
	svc := NewService(Dependencies{Logger: zerolog.Nop()}, b, a)

	assert.Equal(t, "beta", svc.DefaultProvider())
	assert.Equal(t, []string{"alpha", "beta"}, svc.Providers())

	p, err := svc.Provider("")
	require.NoError(t, err)
	assert.Equal(t, "beta", p.Name())
}

func TestService_ConfiguredDefaultWins(t *testing.T) {
	svc := NewService(Dependencies{DefaultProvider: "beta"},
		newMockProvider("alpha", provider.GenericText),
		newMockProvider("beta", provider.GenericText),
	)

	assert.Equal(t, "beta", svc.DefaultProvider())
}

func TestService_UnknownProvider(t *testing.T) {
	svc := NewService(Dependencies{}, newMockProvider("alpha", provider.GenericText))

	_, err := svc.Provider("gamma")

	assert.ErrorIs(t, err, ErrUnknownProvider)
	assert.Contains(t, err.Error(), "'gamma'")
}

func TestService_Direct(t *testing.T) {
	p := newMockProvider("alpha", provider.GenericText)
	p.ChatFunc = script(textResponse("direct", 1, 2))
	svc := NewService(Dependencies{Temperature: 0.4}, p)

	msgs := []provider.Message{{Role: provider.RoleUser, Content: "hi"}}
	resp, err := svc.Direct(context.Background(), DirectRequest{Messages: msgs})
	require.NoError(t, err)

	assert.Equal(t, "direct", resp.Text)
	assert.Equal(t, "alpha", resp.Provider)
	assert.Equal(t, "alpha-model", resp.Model)
	assert.Zero(t, svc.Store().Len(), "direct calls leave no conversation")

	req := p.Requests()[0]
	assert.Equal(t, msgs, req.Messages)
	assert.Equal(t, 0.4, req.Temperature)
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
}

func TestService_Health(t *testing.T) {
	up := newMockProvider("up", provider.GenericText)
	down := newMockProvider("down", provider.GenericText)
	down.HealthFunc = func(context.Context) bool { return false }
	svc := NewService(Dependencies{}, up, down)

	assert.Equal(t, map[string]bool{"up": true, "down": false}, svc.Health(context.Background()))
}

func TestService_ListProvidersFallsBackToDefaultModel(t *testing.T) {
	ok := newMockProvider("alpha", provider.GenericText)
	ok.ListModelsFunc = func(context.Context) ([]string, error) { return []string{"a1", "a2"}, nil }
	broken := newMockProvider("beta", provider.NativeToolBlocks)
	broken.ListModelsFunc = func(context.Context) ([]string, error) { return nil, errors.New("offline") }
	empty := newMockProvider("gamma", provider.FunctionResponseParts)
	empty.ListModelsFunc = func(context.Context) ([]string, error) { return nil, nil }
	svc := NewService(Dependencies{Logger: zerolog.Nop()}, ok, broken, empty)

	infos := svc.ListProviders(context.Background())

	require.Len(t, infos, 3)
	assert.Equal(t, ProviderInfo{Name: "alpha", Capability: provider.GenericText.String(), DefaultModel: "alpha-model", Models: []string{"a1", "a2"}, Default: true}, infos[0])
	assert.Equal(t, []string{"beta-model"}, infos[1].Models)
	assert.False(t, infos[1].Default)
	assert.Equal(t, []string{"gamma-model"}, infos[2].Models)
}

func TestExecuteTool(t *testing.T) {
	reg := newTestRegistry(
		tool.Definition{Server: "builtin", Name: "boom", Handler: func(context.Context, map[string]any) (string, error) {
			return "", errors.New("disk full")
		}},
		tool.Definition{Server: "builtin", Name: "panic", Handler: func(context.Context, map[string]any) (string, error) {
			panic("bad state")
		}},
		tool.Definition{Server: "files", Name: "read"},
		tool.Definition{Server: "files", Name: "stat"},
	)
	ext := &mockExternal{
		IsConnectedFunc: func(server string) bool { return server == "files" },
		InvokeFunc: func(_ context.Context, _, name string, _ map[string]any) (string, error) {
			if name == "stat" {
				return "", errors.New("MCP error: no such file")
			}
			return "contents", nil
		},
	}
	svc := NewService(Dependencies{Tools: reg, External: ext, Logger: zerolog.Nop()})

	tests := []struct {
		name       string
		tool       string
		input      map[string]any
		wantOutput string
		wantErr    string
	}{
		{
			name:       "local success",
			tool:       "builtin__echo",
			input:      map[string]any{"text": "hi"},
			wantOutput: "hi",
		},
		{
			name:       "handler error",
			tool:       "builtin__boom",
			wantOutput: "Error executing tool: disk full",
			wantErr:    "disk full",
		},
		{
			name:       "handler panic",
			tool:       "builtin__panic",
			wantOutput: "Error executing tool: panic: bad state",
			wantErr:    "panic: bad state",
		},
		{
			name:       "external success",
			tool:       "files__read",
			wantOutput: "contents",
		},
		{
			name:       "external error",
			tool:       "files__stat",
			wantOutput: "Error executing tool: MCP error: no such file",
			wantErr:    "MCP error: no such file",
		},
		{
			name:       "unknown server",
			tool:       "ghost__noop",
			wantOutput: "Error: Tool 'ghost__noop' not found or not connected",
			wantErr:    "Error: Tool 'ghost__noop' not found or not connected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, errText := svc.ExecuteTool(context.Background(), tt.tool, tt.input)
			assert.Equal(t, tt.wantOutput, out)
			assert.Equal(t, tt.wantErr, errText)
		})
	}
}

func TestExecuteTool_InvalidArguments(t *testing.T) {
	called := false
	reg := newTestRegistry(tool.Definition{
		Server:      "builtin",
		Name:        "strict",
		InputSchema: echoSchema(),
		Handler: func(context.Context, map[string]any) (string, error) {
			called = true
			return "", nil
		},
	})
	svc := NewService(Dependencies{Tools: reg})

	out, errText := svc.ExecuteTool(context.Background(), "builtin__strict", map[string]any{"text": 42})

	assert.False(t, called)
	assert.Contains(t, out, "Error: invalid arguments for tool 'builtin__strict'")
	assert.NotEmpty(t, errText)
}

func TestExecuteTool_NoRegistry(t *testing.T) {
	svc := NewService(Dependencies{})

	out, errText := svc.ExecuteTool(context.Background(), "builtin__echo", nil)

	assert.Equal(t, "Error: No tool registry available", out)
	assert.Equal(t, out, errText)
}

func TestExecuteTool_LocalHandlerWinsOverExternal(t *testing.T) {
	ext := &mockExternal{
		IsConnectedFunc: func(string) bool { return true },
		InvokeFunc: func(context.Context, string, string, map[string]any) (string, error) {
			t.Fatal("external server must not be called for a local tool")
			return "", nil
		},
	}
	svc := NewService(Dependencies{Tools: newTestRegistry(), External: ext})

	out, errText := svc.ExecuteTool(context.Background(), "builtin__echo", map[string]any{"text": "local"})

	assert.Equal(t, "local", out)
	assert.Empty(t, errText)
}
