package config

import (
	"fmt"
	"slices"
)

// KnownProviders lists the provider names the sidecar can construct.
var KnownProviders = []string{"ollama", "openai", "local_openai", "anthropic", "google", "azure_openai"}

// ToolModes lists the accepted builtin.mode values.
var ToolModes = []string{"sandboxed", "restricted", "full"}

// Validate checks config values for correctness.
// Returns an error if any values are invalid.
func (c *Config) Validate() error {
	var errs []string

	// Server
	if c.Server.Host == "" {
		errs = append(errs, "server.host must not be empty")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Server.ReadHeaderTimeoutSeconds < 1 {
		errs = append(errs, "server.read_header_timeout_seconds must be >= 1")
	}

	// Providers
	if !slices.Contains(KnownProviders, c.Providers.Default) {
		errs = append(errs, fmt.Sprintf("providers.default %q is not one of %v", c.Providers.Default, KnownProviders))
	}
	if c.Providers.MaxTokens < 1 {
		errs = append(errs, "providers.max_tokens must be >= 1")
	}
	if c.Providers.Temperature < 0 || c.Providers.Temperature > 2 {
		errs = append(errs, "providers.temperature must be between 0 and 2")
	}
	if c.Providers.RetryAttempts < 1 {
		errs = append(errs, "providers.retry_attempts must be >= 1")
	}
	if c.Providers.RetryBaseDelayMs < 0 {
		errs = append(errs, "providers.retry_base_delay_ms must be >= 0")
	}
	endpoints := map[string]EndpointConfig{
		"ollama":       c.Providers.Ollama,
		"openai":       c.Providers.OpenAI,
		"local_openai": c.Providers.LocalOpenAI,
		"anthropic":    c.Providers.Anthropic,
		"google":       c.Providers.Google,
		"azure_openai": c.Providers.AzureOpenAI.EndpointConfig,
	}
	for _, name := range KnownProviders {
		ep := endpoints[name]
		if ep.TimeoutSeconds < 1 {
			errs = append(errs, fmt.Sprintf("providers.%s.timeout_seconds must be >= 1", name))
		}
		if ep.Model == "" {
			errs = append(errs, fmt.Sprintf("providers.%s.model must not be empty", name))
		}
	}
	if c.Providers.AzureOpenAI.APIVersion == "" {
		errs = append(errs, "providers.azure_openai.api_version must not be empty")
	}

	// MCP
	if c.MCP.RequestTimeoutSeconds < 1 {
		errs = append(errs, "mcp.request_timeout_seconds must be >= 1")
	}
	seen := make(map[string]bool)
	for i, s := range c.MCP.Servers {
		if s.Name == "" {
			errs = append(errs, fmt.Sprintf("mcp.servers[%d].name must not be empty", i))
		} else if seen[s.Name] {
			errs = append(errs, fmt.Sprintf("mcp.servers[%d].name %q is duplicated", i, s.Name))
		}
		seen[s.Name] = true
	}

	// Events
	if c.Events.SubscriberBuffer < 1 {
		errs = append(errs, "events.subscriber_buffer must be >= 1")
	}

	// Builtin tools
	if !slices.Contains(ToolModes, c.Builtin.Mode) {
		errs = append(errs, fmt.Sprintf("builtin.mode %q is not one of %v", c.Builtin.Mode, ToolModes))
	}
	if c.Builtin.ShellTimeoutSeconds < 1 {
		errs = append(errs, "builtin.shell_timeout_seconds must be >= 1")
	}
	if c.Builtin.MaxFileSize < 1 {
		errs = append(errs, "builtin.max_file_size must be >= 1")
	}
	if c.Builtin.MaxCommandOutputSize < 1 {
		errs = append(errs, "builtin.max_command_output_size must be >= 1")
	}
	if c.Builtin.GracefulShutdownMs < 1 {
		errs = append(errs, "builtin.graceful_shutdown_ms must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %v", errs)
	}

	return nil
}
