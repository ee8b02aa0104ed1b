package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_AllDefaults_Pass(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	assert.NoError(t, err)
}

func TestValidate_Server(t *testing.T) {
	t.Run("Port Out Of Range Fails", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Server.Port = 70000
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "server.port")
	})
}

func TestValidate_Providers(t *testing.T) {
	t.Run("Unknown Default Fails", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Providers.Default = "mystery"
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "providers.default")
	})

	t.Run("Zero Timeout Fails", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Providers.Anthropic.TimeoutSeconds = 0
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "providers.anthropic.timeout_seconds")
	})

	t.Run("Empty Azure API Version Fails", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Providers.AzureOpenAI.APIVersion = ""
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "providers.azure_openai.api_version")
	})

	t.Run("Zero Retry Attempts Fails", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Providers.RetryAttempts = 0
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "retry_attempts")
	})
}

func TestValidate_MCP(t *testing.T) {
	t.Run("Duplicate Server Name Fails", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MCP.Servers = []MCPServerConfig{
			{Name: "fs", Command: "a"},
			{Name: "fs", Command: "b"},
		}
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "duplicated")
	})

	t.Run("Missing Name Fails", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MCP.Servers = []MCPServerConfig{{Command: "a"}}
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "mcp.servers[0].name")
	})
}

func TestValidate_Builtin(t *testing.T) {
	t.Run("Unknown Mode Fails", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Builtin.Mode = "yolo"
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "builtin.mode")
	})

	t.Run("Collects Every Error", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Builtin.MaxFileSize = 0
		cfg.Events.SubscriberBuffer = 0
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "builtin.max_file_size")
		assert.Contains(t, err.Error(), "events.subscriber_buffer")
	})
}
