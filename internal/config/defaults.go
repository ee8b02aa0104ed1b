package config

import "time"

// Config holds all sidecar configuration values.
// Defaults are set in DefaultConfig() and can be overridden via the config
// file and then via environment variables.
// NOTE: Values in config files override defaults, including explicit zero values.
// Missing keys are left at their default values.
type Config struct {
	Server    ServerConfig    `json:"server" toml:"server"`
	Log       LogConfig       `json:"log" toml:"log"`
	Providers ProvidersConfig `json:"providers" toml:"providers"`
	MCP       MCPConfig       `json:"mcp" toml:"mcp"`
	Events    EventsConfig    `json:"events" toml:"events"`
	Builtin   BuiltinConfig   `json:"builtin" toml:"builtin"`
}

type ServerConfig struct {
	Host                     string `json:"host" toml:"host"`                                               // Default: 127.0.0.1
	Port                     int    `json:"port" toml:"port"`                                               // Default: 8765
	ReadHeaderTimeoutSeconds int    `json:"read_header_timeout_seconds" toml:"read_header_timeout_seconds"` // Default: 10
}

type LogConfig struct {
	Level  string `json:"level" toml:"level"`   // Default: info
	Pretty bool   `json:"pretty" toml:"pretty"` // Default: false
}

type ProvidersConfig struct {
	Default          string  `json:"default" toml:"default"`                         // Default: ollama
	MaxTokens        int     `json:"max_tokens" toml:"max_tokens"`                   // Default: 4096
	Temperature      float64 `json:"temperature" toml:"temperature"`                 // Default: 0.7
	RetryAttempts    int     `json:"retry_attempts" toml:"retry_attempts"`           // Default: 3
	RetryBaseDelayMs int     `json:"retry_base_delay_ms" toml:"retry_base_delay_ms"` // Default: 500

	Ollama      EndpointConfig `json:"ollama" toml:"ollama"`
	OpenAI      EndpointConfig `json:"openai" toml:"openai"`
	LocalOpenAI EndpointConfig `json:"local_openai" toml:"local_openai"`
	Anthropic   EndpointConfig `json:"anthropic" toml:"anthropic"`
	Google      EndpointConfig `json:"google" toml:"google"`
	AzureOpenAI AzureConfig    `json:"azure_openai" toml:"azure_openai"`
}

// EndpointConfig configures a single provider backend. APIKey is normally
// supplied through the environment rather than the config file.
type EndpointConfig struct {
	Enabled        bool   `json:"enabled" toml:"enabled"`
	BaseURL        string `json:"base_url" toml:"base_url"`
	Model          string `json:"model" toml:"model"`
	APIKey         string `json:"api_key" toml:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds" toml:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration.
func (e EndpointConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// AzureConfig configures Azure OpenAI. BaseURL is the resource endpoint and
// Model is the deployment name.
type AzureConfig struct {
	EndpointConfig
	APIVersion string `json:"api_version" toml:"api_version"` // Default: 2024-08-01-preview
}

type MCPConfig struct {
	RequestTimeoutSeconds int               `json:"request_timeout_seconds" toml:"request_timeout_seconds"` // Default: 30
	Servers               []MCPServerConfig `json:"servers" toml:"servers"`
}

// MCPServerConfig describes an external tool server connected at startup.
type MCPServerConfig struct {
	Name      string            `json:"name" toml:"name"`
	Transport string            `json:"transport" toml:"transport"` // Default: stdio
	Command   string            `json:"command" toml:"command"`
	Args      []string          `json:"args" toml:"args"`
	Env       map[string]string `json:"env" toml:"env"`
}

type EventsConfig struct {
	SubscriberBuffer int `json:"subscriber_buffer" toml:"subscriber_buffer"` // Default: 1000
}

type BuiltinConfig struct {
	Enabled              bool   `json:"enabled" toml:"enabled"`                                 // Default: true
	Workspace            string `json:"workspace" toml:"workspace"`                             // Default: current directory
	Mode                 string `json:"mode" toml:"mode"`                                       // sandboxed | restricted | full
	ShellTimeoutSeconds  int    `json:"shell_timeout_seconds" toml:"shell_timeout_seconds"`     // Default: 30
	MaxFileSize          int64  `json:"max_file_size" toml:"max_file_size"`                     // Default: 10 * 1024 * 1024 (10MB)
	MaxCommandOutputSize int64  `json:"max_command_output_size" toml:"max_command_output_size"` // Default: 1024 * 1024 (1MB)
	GracefulShutdownMs   int    `json:"graceful_shutdown_ms" toml:"graceful_shutdown_ms"`       // Default: 2000
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                     "127.0.0.1",
			Port:                     8765,
			ReadHeaderTimeoutSeconds: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
		Providers: ProvidersConfig{
			Default:          "ollama",
			MaxTokens:        4096,
			Temperature:      0.7,
			RetryAttempts:    3,
			RetryBaseDelayMs: 500,
			Ollama: EndpointConfig{
				Enabled:        true,
				BaseURL:        "http://localhost:11434",
				Model:          "llama3.2",
				TimeoutSeconds: 120,
			},
			OpenAI: EndpointConfig{
				Enabled:        true,
				BaseURL:        "https://api.openai.com",
				Model:          "gpt-4o",
				TimeoutSeconds: 60,
			},
			LocalOpenAI: EndpointConfig{
				BaseURL:        "http://localhost:1234",
				Model:          "local-model",
				TimeoutSeconds: 120,
			},
			Anthropic: EndpointConfig{
				Enabled:        true,
				BaseURL:        "https://api.anthropic.com",
				Model:          "claude-sonnet-4-20250514",
				TimeoutSeconds: 120,
			},
			Google: EndpointConfig{
				Enabled:        true,
				Model:          "gemini-2.0-flash",
				TimeoutSeconds: 120,
			},
			AzureOpenAI: AzureConfig{
				EndpointConfig: EndpointConfig{
					Enabled:        true,
					Model:          "gpt-4o",
					TimeoutSeconds: 60,
				},
				APIVersion: "2024-08-01-preview",
			},
		},
		MCP: MCPConfig{
			RequestTimeoutSeconds: 30,
		},
		Events: EventsConfig{
			SubscriberBuffer: 1000,
		},
		Builtin: BuiltinConfig{
			Enabled:              true,
			Mode:                 "restricted",
			ShellTimeoutSeconds:  30,
			MaxFileSize:          10 * 1024 * 1024,
			MaxCommandOutputSize: 1024 * 1024,
			GracefulShutdownMs:   2000,
		},
	}
}
