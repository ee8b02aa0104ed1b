// Package app builds and owns every long-lived sidecar component.
package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/Cyclone1070/sidecar/internal/chat"
	"github.com/Cyclone1070/sidecar/internal/config"
	"github.com/Cyclone1070/sidecar/internal/event"
	"github.com/Cyclone1070/sidecar/internal/logger"
	"github.com/Cyclone1070/sidecar/internal/mcp"
	"github.com/Cyclone1070/sidecar/internal/metrics"
	"github.com/Cyclone1070/sidecar/internal/provider"
	"github.com/Cyclone1070/sidecar/internal/provider/anthropic"
	"github.com/Cyclone1070/sidecar/internal/provider/gemini"
	"github.com/Cyclone1070/sidecar/internal/provider/httpjson"
	"github.com/Cyclone1070/sidecar/internal/provider/ollama"
	"github.com/Cyclone1070/sidecar/internal/provider/openai"
	"github.com/Cyclone1070/sidecar/internal/server"
	"github.com/Cyclone1070/sidecar/internal/tool"
	"github.com/Cyclone1070/sidecar/internal/tool/builtin"
	"github.com/rs/zerolog"
)

// GeminiDialer creates a Gemini SDK client.
type GeminiDialer func(ctx context.Context, apiKey string, timeout time.Duration) (gemini.Client, error)

// Options holds the process-level inputs that are not configuration.
type Options struct {
	Version   string
	LogOutput io.Writer // defaults to stderr
	// DialGemini defaults to gemini.Dial.
	DialGemini GeminiDialer
}

// App is the process-lifetime context object.
type App struct {
	Config  *config.Config
	Log     zerolog.Logger
	Events  *event.Bus
	Metrics *metrics.Metrics
	Tools   *tool.Registry
	MCP     *mcp.Manager
	Chat    *chat.Service
	Server  *server.Server

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New wires every component. It starts no network listener and connects no
// external tool servers.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if opts.DialGemini == nil {
		opts.DialGemini = func(ctx context.Context, apiKey string, timeout time.Duration) (gemini.Client, error) {
			return gemini.Dial(ctx, apiKey, timeout)
		}
	}
	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: opts.LogOutput,
	})

	a := &App{Config: cfg, Log: log}

	a.Metrics = metrics.New()
	eventsLog := logger.Component(log, "events")
	a.Events = event.NewBus(
		event.WithBuffer(cfg.Events.SubscriberBuffer),
		event.WithDropHook(func() {
			a.Metrics.DropHook()
			eventsLog.Warn().Msg("event subscriber dropped")
		}),
	)

	a.Tools = tool.NewRegistry()
	if cfg.Builtin.Enabled {
		if err := registerBuiltin(a.Tools, cfg.Builtin); err != nil {
			return nil, fmt.Errorf("builtin tools: %w", err)
		}
	}

	timeout := time.Duration(cfg.MCP.RequestTimeoutSeconds) * time.Second
	a.MCP = mcp.NewManager(mcp.Options{
		Registry:      a.Tools,
		Logger:        logger.Component(log, "mcp"),
		Timeout:       timeout,
		ClientVersion: opts.Version,
		OnChange:      a.Metrics.SetMCPServers,
	})

	providers, err := buildProviders(ctx, cfg.Providers, logger.Component(log, "provider"), opts.DialGemini)
	if err != nil {
		return nil, err
	}
	defaultProvider := cfg.Providers.Default
	if !slices.ContainsFunc(providers, func(p provider.Provider) bool { return p.Name() == defaultProvider }) {
		log.Warn().Str("provider", defaultProvider).Msg("default provider not available, using first registered")
		defaultProvider = ""
	}

	a.Chat = chat.NewService(chat.Dependencies{
		Tools:           a.Tools,
		External:        a.MCP,
		Events:          a.Events,
		Logger:          logger.Component(log, "chat"),
		DefaultProvider: defaultProvider,
		Temperature:     cfg.Providers.Temperature,
		MaxTokens:       cfg.Providers.MaxTokens,
	}, providers...)

	a.Server = server.New(server.Options{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeoutSeconds) * time.Second,
		Version:           opts.Version,
		Logger:            logger.Component(log, "http"),
	}, server.Dependencies{
		Chat:    a.Chat,
		MCP:     a.MCP,
		Tools:   a.Tools,
		Events:  a.Events,
		Metrics: a.Metrics.Registry,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	sub := a.Events.Subscribe()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.Events.Unsubscribe(sub)
		a.Metrics.Run(runCtx, sub)
	}()

	log.Info().
		Strs("providers", a.Chat.Providers()).
		Str("default_provider", a.Chat.DefaultProvider()).
		Int("tools", a.Tools.Len()).
		Msg("sidecar initialized")
	return a, nil
}

// ConnectServers connects every configured external tool server. Failures
// are logged by the manager and never abort startup.
func (a *App) ConnectServers(ctx context.Context) []mcp.ConnectResult {
	results := make([]mcp.ConnectResult, 0, len(a.Config.MCP.Servers))
	for _, sc := range a.Config.MCP.Servers {
		results = append(results, a.MCP.Connect(ctx, mcp.ServerConfig{
			Name:      sc.Name,
			Transport: sc.Transport,
			Command:   sc.Command,
			Args:      sc.Args,
			Env:       sc.Env,
		}))
	}
	return results
}

// Close stops every external tool server and the metrics subscriber.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.MCP.Shutdown()
		a.cancel()
		a.wg.Wait()
	})
}

func registerBuiltin(reg *tool.Registry, cfg config.BuiltinConfig) error {
	workspace := cfg.Workspace
	if workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve workspace: %w", err)
		}
		workspace = wd
	}
	tools, err := builtin.New(builtin.Options{
		Workspace:        workspace,
		Mode:             builtin.Mode(cfg.Mode),
		ShellTimeout:     time.Duration(cfg.ShellTimeoutSeconds) * time.Second,
		MaxFileSize:      cfg.MaxFileSize,
		MaxOutputSize:    cfg.MaxCommandOutputSize,
		GracefulShutdown: time.Duration(cfg.GracefulShutdownMs) * time.Millisecond,
	})
	if err != nil {
		return err
	}
	tools.Register(reg)
	return nil
}

// buildProviders returns the providers whose credentials are present.
// Ollama is always available.
func buildProviders(ctx context.Context, cfg config.ProvidersConfig, log zerolog.Logger, dial GeminiDialer) ([]provider.Provider, error) {
	client := func(name string, ep config.EndpointConfig, headers map[string]string) *httpjson.Client {
		return httpjson.New(httpjson.Options{
			Provider:  name,
			BaseURL:   ep.BaseURL,
			Headers:   headers,
			Timeout:   ep.Timeout(),
			Attempts:  cfg.RetryAttempts,
			BaseDelay: time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond,
			Logger:    log.With().Str("provider", name).Logger(),
		})
	}

	providers := []provider.Provider{
		ollama.New(client(ollama.Name, cfg.Ollama, nil), cfg.Ollama.Model),
	}

	if cfg.OpenAI.Enabled && cfg.OpenAI.APIKey != "" {
		providers = append(providers, openai.New(openai.Options{
			Client:     client(openai.Name, cfg.OpenAI, bearer(cfg.OpenAI.APIKey)),
			Model:      cfg.OpenAI.Model,
			RequireKey: true,
			HasKey:     true,
		}))
	}

	if cfg.LocalOpenAI.Enabled {
		providers = append(providers, openai.New(openai.Options{
			Name:   openai.LocalName,
			Client: client(openai.LocalName, cfg.LocalOpenAI, bearer(cfg.LocalOpenAI.APIKey)),
			Model:  cfg.LocalOpenAI.Model,
			HasKey: cfg.LocalOpenAI.APIKey != "",
		}))
	}

	if cfg.Anthropic.Enabled && cfg.Anthropic.APIKey != "" {
		providers = append(providers, anthropic.New(
			client(anthropic.Name, cfg.Anthropic, anthropic.Headers(cfg.Anthropic.APIKey)),
			cfg.Anthropic.Model,
			true,
		))
	}

	if azure := cfg.AzureOpenAI; azure.Enabled && azure.BaseURL != "" && azure.APIKey != "" {
		providers = append(providers, openai.NewAzure(openai.AzureOptions{
			Client:     client(openai.AzureName, azure.EndpointConfig, openai.AzureHeaders(azure.APIKey)),
			Deployment: azure.Model,
			APIVersion: azure.APIVersion,
			HasKey:     true,
		}))
	}

	if cfg.Google.Enabled && cfg.Google.APIKey != "" {
		gc, err := dial(ctx, cfg.Google.APIKey, cfg.Google.Timeout())
		if err != nil {
			return nil, fmt.Errorf("create Gemini client: %w", err)
		}
		providers = append(providers, gemini.New(gc, cfg.Google.Model, log.With().Str("provider", gemini.Name).Logger()))
	}

	return providers, nil
}

func bearer(key string) map[string]string {
	if key == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + key}
}
