// Package metrics provides Prometheus metrics derived from bus events.
package metrics

import (
	"context"
	"strings"

	"github.com/Cyclone1070/sidecar/internal/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every sidecar collector on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	LLMRequestsTotal    *prometheus.CounterVec
	LLMErrorsTotal      *prometheus.CounterVec
	LLMDuration         *prometheus.HistogramVec
	LLMTokensTotal      *prometheus.CounterVec
	ToolCallsTotal      *prometheus.CounterVec
	ToolDuration        *prometheus.HistogramVec
	SubscribersDropped  prometheus.Counter
	MCPServersConnected prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		LLMRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidecar_llm_requests_total",
				Help: "Total number of backend requests",
			},
			[]string{"provider", "model"},
		),
		LLMErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidecar_llm_errors_total",
				Help: "Total number of failed backend requests",
			},
			[]string{"provider", "code"},
		),
		LLMDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sidecar_llm_duration_seconds",
				Help:    "Duration of backend requests in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"provider"},
		),
		LLMTokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidecar_llm_tokens_total",
				Help: "Total number of tokens reported by backends",
			},
			[]string{"provider", "direction"},
		),
		ToolCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidecar_tool_calls_total",
				Help: "Total number of tool calls",
			},
			[]string{"server", "status"},
		),
		ToolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sidecar_tool_duration_seconds",
				Help:    "Duration of tool calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"server"},
		),
		SubscribersDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sidecar_event_subscribers_dropped_total",
				Help: "Total number of event subscribers dropped for falling behind",
			},
		),
		MCPServersConnected: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sidecar_mcp_servers_connected",
				Help: "Number of connected external tool servers",
			},
		),
	}
}

// Observe records one event.
func (m *Metrics) Observe(ev event.Event) {
	p := ev.Payload
	switch ev.Type {
	case event.LLMRequestStarted:
		m.LLMRequestsTotal.WithLabelValues(str(p, "provider"), str(p, "model")).Inc()

	case event.LLMResponseCompleted:
		provider := str(p, "provider")
		m.LLMDuration.WithLabelValues(provider).Observe(num(p, "duration_ms") / 1000)
		m.LLMTokensTotal.WithLabelValues(provider, "input").Add(num(p, "input_tokens"))
		m.LLMTokensTotal.WithLabelValues(provider, "output").Add(num(p, "output_tokens"))

	case event.LLMResponseError:
		provider := str(p, "provider")
		m.LLMErrorsTotal.WithLabelValues(provider, str(p, "error_code")).Inc()
		m.LLMDuration.WithLabelValues(provider).Observe(num(p, "duration_ms") / 1000)

	case event.ToolCompleted, event.ToolError:
		status := "ok"
		if ev.Type == event.ToolError {
			status = "error"
		}
		server := toolServer(str(p, "tool_name"))
		m.ToolCallsTotal.WithLabelValues(server, status).Inc()
		m.ToolDuration.WithLabelValues(server).Observe(num(p, "duration_ms") / 1000)
	}
}

// Run consumes the subscription until it is closed or ctx is done.
func (m *Metrics) Run(ctx context.Context, sub *event.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			m.Observe(ev)
		}
	}
}

// DropHook is passed to event.WithDropHook.
func (m *Metrics) DropHook() {
	m.SubscribersDropped.Inc()
}

// SetMCPServers records the number of connected external servers.
func (m *Metrics) SetMCPServers(n int) {
	m.MCPServersConnected.Set(float64(n))
}

// toolServer extracts the server from a "server:name" display name.
func toolServer(display string) string {
	server, _, ok := strings.Cut(display, ":")
	if !ok || server == "" {
		return "unknown"
	}
	return server
}

func str(p map[string]any, key string) string {
	s, _ := p[key].(string)
	return s
}

func num(p map[string]any, key string) float64 {
	switch v := p[key].(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	default:
		return 0
	}
}
