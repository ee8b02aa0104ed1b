package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Cyclone1070/sidecar/internal/provider"
	"github.com/rs/zerolog"
)

// ErrUnknownProvider is returned for provider names that were never registered.
var ErrUnknownProvider = errors.New("unknown provider")

// DefaultMaxTokens is used when Dependencies leaves MaxTokens unset.
const DefaultMaxTokens = 4096

// Dependencies are the collaborators of a Service. Every field is
// optional; tools are never executed without Tools.
type Dependencies struct {
	Tools    ToolResolver
	External ExternalTools
	Events   EventSink
	Logger   zerolog.Logger

	DefaultProvider string
	Temperature     float64 // used when a request carries none
	MaxTokens       int
}

// Service owns the providers and conversations and runs turns.
type Service struct {
	tools    ToolResolver
	external ExternalTools
	events   EventSink
	log      zerolog.Logger
	store    *Store

	temperature float64
	maxTokens   int

	mu              sync.RWMutex
	providers       map[string]provider.Provider
	defaultProvider string
}

// NewService creates a service with no providers registered.
func NewService(deps Dependencies, providers ...provider.Provider) *Service {
	s := &Service{
		tools:           deps.Tools,
		external:        deps.External,
		events:          deps.Events,
		log:             deps.Logger,
		store:           NewStore(),
		temperature:     deps.Temperature,
		maxTokens:       deps.MaxTokens,
		providers:       make(map[string]provider.Provider),
		defaultProvider: deps.DefaultProvider,
	}
	if s.maxTokens <= 0 {
		s.maxTokens = DefaultMaxTokens
	}
	for _, p := range providers {
		s.RegisterProvider(p)
	}
	return s
}

// RegisterProvider adds or replaces a provider by name. The first provider
// registered becomes the default when none was configured.
func (s *Service) RegisterProvider(p provider.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[p.Name()] = p
	if s.defaultProvider == "" {
		s.defaultProvider = p.Name()
	}
	s.log.Debug().Str("provider", p.Name()).Str("capability", p.Capability().String()).Msg("provider registered")
}

// Provider returns a registered provider.
func (s *Service) Provider(name string) (provider.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name == "" {
		name = s.defaultProvider
	}
	p, ok := s.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s' not registered", ErrUnknownProvider, name)
	}
	return p, nil
}

// Providers returns the registered provider names, sorted.
func (s *Service) Providers() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

// DefaultProvider returns the provider used when none is named.
func (s *Service) DefaultProvider() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultProvider
}

// Store exposes the conversation store.
func (s *Service) Store() *Store {
	return s.store
}

// DirectRequest is a stateless chat over caller-supplied messages.
type DirectRequest struct {
	Provider    string
	Model       string
	Temperature *float64
	Messages    []provider.Message
}

// Direct sends messages without touching any conversation.
func (s *Service) Direct(ctx context.Context, req DirectRequest) (*provider.ChatResponse, error) {
	p, err := s.Provider(req.Provider)
	if err != nil {
		return nil, err
	}
	return s.send(ctx, p, &provider.ChatRequest{
		Messages:    req.Messages,
		Model:       firstNonEmpty(req.Model, p.DefaultModel()),
		Temperature: s.temperatureOr(req.Temperature),
		MaxTokens:   s.maxTokens,
	})
}

// Health checks every provider concurrently.
func (s *Service) Health(ctx context.Context) map[string]bool {
	s.mu.RLock()
	providers := make([]provider.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		providers = append(providers, p)
	}
	s.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]bool, len(providers))
	)
	for _, p := range providers {
		wg.Add(1)
		go func(p provider.Provider) {
			defer wg.Done()
			ok := p.Health(ctx)
			mu.Lock()
			results[p.Name()] = ok
			mu.Unlock()
		}(p)
	}
	wg.Wait()
	return results
}

// ProviderInfo describes one registered provider.
type ProviderInfo struct {
	Name         string   `json:"name"`
	Capability   string   `json:"capability"`
	DefaultModel string   `json:"default_model"`
	Models       []string `json:"models"`
	Default      bool     `json:"default"`
}

// ListProviders describes every provider. A provider whose model listing
// fails reports only its default model.
func (s *Service) ListProviders(ctx context.Context) []ProviderInfo {
	def := s.DefaultProvider()
	names := s.Providers()
	out := make([]ProviderInfo, 0, len(names))
	for _, name := range names {
		p, err := s.Provider(name)
		if err != nil {
			continue
		}
		models, err := p.ListModels(ctx)
		if err != nil || len(models) == 0 {
			if err != nil {
				s.log.Debug().Err(err).Str("provider", name).Msg("list models failed")
			}
			models = []string{p.DefaultModel()}
		}
		out = append(out, ProviderInfo{
			Name:         name,
			Capability:   p.Capability().String(),
			DefaultModel: p.DefaultModel(),
			Models:       models,
			Default:      name == def,
		})
	}
	return out
}

func (s *Service) send(ctx context.Context, p provider.Provider, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	resp, err := p.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, &provider.ProviderError{
			Provider:   p.Name(),
			Code:       provider.ErrorCodeServer,
			Message:    "empty response",
			Underlying: provider.ErrEmptyResponse,
		}
	}
	if resp.Provider == "" {
		resp.Provider = p.Name()
	}
	if resp.Model == "" {
		resp.Model = req.Model
	}
	return resp, nil
}

func (s *Service) temperatureOr(t *float64) float64 {
	if t != nil {
		return *t
	}
	return s.temperature
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
