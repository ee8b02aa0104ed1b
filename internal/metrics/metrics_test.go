package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Cyclone1070/sidecar/internal/event"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve_LLMEvents(t *testing.T) {
	m := New()

	m.Observe(event.Event{Type: event.LLMRequestStarted, Payload: map[string]any{"provider": "ollama", "model": "llama3.2", "turn": 0}})
	m.Observe(event.Event{Type: event.LLMRequestStarted, Payload: map[string]any{"provider": "ollama", "model": "llama3.2", "turn": 1}})
	m.Observe(event.Event{Type: event.LLMResponseCompleted, Payload: map[string]any{
		"provider": "ollama", "input_tokens": 12, "output_tokens": 5, "duration_ms": int64(250),
	}})
	m.Observe(event.Event{Type: event.LLMResponseError, Payload: map[string]any{
		"provider": "ollama", "error_code": "rate_limit", "duration_ms": int64(10),
	}})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("ollama", "llama3.2")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.LLMTokensTotal.WithLabelValues("ollama", "input")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.LLMTokensTotal.WithLabelValues("ollama", "output")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMErrorsTotal.WithLabelValues("ollama", "rate_limit")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.LLMDuration))
}

func TestObserve_ToolEvents(t *testing.T) {
	m := New()

	m.Observe(event.Event{Type: event.ToolRequested, Payload: map[string]any{"tool_name": "builtin:shell"}})
	m.Observe(event.Event{Type: event.ToolCompleted, Payload: map[string]any{"tool_name": "builtin:shell", "duration_ms": int64(3)}})
	m.Observe(event.Event{Type: event.ToolError, Payload: map[string]any{"tool_name": "files:read", "duration_ms": int64(1)}})
	m.Observe(event.Event{Type: event.ToolError, Payload: map[string]any{"tool_name": "bogus"}})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("builtin", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("files", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("unknown", "error")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.ToolCallsTotal))
}

func TestDropHookAndGauge(t *testing.T) {
	m := New()
	bus := event.NewBus(event.WithBuffer(1), event.WithDropHook(m.DropHook))
	bus.Subscribe()

	bus.Emit(event.ToolRequested, "s", event.SourceTools, nil, nil)
	bus.Emit(event.ToolRequested, "s", event.SourceTools, nil, nil)
	m.SetMCPServers(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubscribersDropped))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MCPServersConnected))
}

func TestRun_StopsWhenSubscriptionCloses(t *testing.T) {
	m := New()
	bus := event.NewBus()
	sub := bus.Subscribe()

	done := make(chan struct{})
	go func() {
		m.Run(context.Background(), sub)
		close(done)
	}()

	bus.Emit(event.LLMRequestStarted, "s", event.SourceChat, map[string]any{"provider": "openai", "model": "gpt-4o"}, nil)
	bus.Unsubscribe(sub)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after unsubscribe")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("openai", "gpt-4o")))
}

func TestRegistryExposition(t *testing.T) {
	m := New()
	m.SetMCPServers(1)

	err := testutil.GatherAndCompare(m.Registry, strings.NewReader(`
# HELP sidecar_mcp_servers_connected Number of connected external tool servers
# TYPE sidecar_mcp_servers_connected gauge
sidecar_mcp_servers_connected 1
`), "sidecar_mcp_servers_connected")
	require.NoError(t, err)
}
