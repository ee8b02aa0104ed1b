package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Cyclone1070/sidecar/internal/event"
	"github.com/Cyclone1070/sidecar/internal/provider"
	"github.com/Cyclone1070/sidecar/internal/tool"
	"github.com/rs/zerolog"
)

// mockProvider implements provider.Provider for testing
type mockProvider struct {
	name       string
	capability provider.Capability
	model      string

	ChatFunc       func(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error)
	HealthFunc     func(ctx context.Context) bool
	ListModelsFunc func(ctx context.Context) ([]string, error)

	mu       sync.Mutex
	requests []*provider.ChatRequest
}

func newMockProvider(name string, capability provider.Capability) *mockProvider {
	return &mockProvider{name: name, capability: capability, model: name + "-model"}
}

func (m *mockProvider) Name() string                    { return m.name }
func (m *mockProvider) Capability() provider.Capability { return m.capability }
func (m *mockProvider) DefaultModel() string            { return m.model }

func (m *mockProvider) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockProvider) Health(ctx context.Context) bool {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return true
}

func (m *mockProvider) ListModels(ctx context.Context) ([]string, error) {
	if m.ListModelsFunc != nil {
		return m.ListModelsFunc(ctx)
	}
	return []string{m.model}, nil
}

func (m *mockProvider) Requests() []*provider.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*provider.ChatRequest(nil), m.requests...)
}

// mockExternal implements ExternalTools for testing
type mockExternal struct {
	IsConnectedFunc func(server string) bool
	InvokeFunc      func(ctx context.Context, server, name string, args map[string]any) (string, error)
}

func (m *mockExternal) IsConnected(server string) bool {
	if m.IsConnectedFunc != nil {
		return m.IsConnectedFunc(server)
	}
	return false
}

func (m *mockExternal) Invoke(ctx context.Context, server, name string, args map[string]any) (string, error) {
	if m.InvokeFunc != nil {
		return m.InvokeFunc(ctx, server, name, args)
	}
	return "", errors.New("not implemented")
}

// script returns a ChatFunc that replays responses in order and repeats
// the last one once exhausted.
func script(responses ...*provider.ChatResponse) func(context.Context, *provider.ChatRequest) (*provider.ChatResponse, error) {
	var mu sync.Mutex
	i := 0
	return func(context.Context, *provider.ChatRequest) (*provider.ChatResponse, error) {
		mu.Lock()
		defer mu.Unlock()
		resp := responses[min(i, len(responses)-1)]
		i++
		copied := *resp
		return &copied, nil
	}
}

func textResponse(text string, prompt, completion int) *provider.ChatResponse {
	return &provider.ChatResponse{
		Text:  text,
		Usage: &provider.Usage{PromptTokens: prompt, CompletionTokens: completion},
	}
}

func toolResponse(calls ...provider.ToolCall) *provider.ChatResponse {
	return &provider.ChatResponse{
		Usage:     &provider.Usage{PromptTokens: 1, CompletionTokens: 1},
		ToolCalls: calls,
	}
}

func echoSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"text": map[string]any{"type": "string"}},
		"required":   []any{"text"},
	}
}

// newTestRegistry registers builtin__echo plus any extra definitions.
func newTestRegistry(extra ...tool.Definition) *tool.Registry {
	reg := tool.NewRegistry()
	reg.Register(tool.Definition{
		Server:      tool.BuiltinServer,
		Name:        "echo",
		Description: "Echo text",
		InputSchema: echoSchema(),
		Handler: func(_ context.Context, input map[string]any) (string, error) {
			text, _ := input["text"].(string)
			return text, nil
		},
	})
	reg.RegisterMany(extra...)
	return reg
}

type testEnv struct {
	svc  *Service
	prov *mockProvider
	bus  *event.Bus
	sub  *event.Subscription
}

func newTestEnv(t *testing.T, capability provider.Capability, deps Dependencies) *testEnv {
	t.Helper()
	bus := event.NewBus()
	sub := bus.Subscribe()
	t.Cleanup(func() { bus.Unsubscribe(sub) })

	if deps.Events == nil {
		deps.Events = bus
	}
	deps.Logger = zerolog.Nop()
	prov := newMockProvider("mock", capability)
	return &testEnv{svc: NewService(deps, prov), prov: prov, bus: bus, sub: sub}
}

// drain returns every event queued for the subscription.
func (e *testEnv) drain() []event.Event {
	var out []event.Event
	for {
		select {
		case ev, ok := <-e.sub.C:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventTypes(events []event.Event) []string {
	types := make([]string, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}
