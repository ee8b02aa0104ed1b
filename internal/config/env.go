package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// DotEnvLookup returns a lookup that prefers the real process environment
// and falls back to the given dotenv files in order. Missing files are skipped.
func DotEnvLookup(files ...string) LookupFunc {
	var layers []map[string]string
	for _, name := range files {
		values, err := godotenv.Read(name)
		if err != nil {
			continue
		}
		layers = append(layers, values)
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		for _, layer := range layers {
			if v, ok := layer[key]; ok {
				return v, true
			}
		}
		return "", false
	}
}

// applyEnv overlays environment variables onto cfg. Empty values are ignored.
func applyEnv(cfg *Config, lookup LookupFunc) {
	get := func(keys ...string) (string, bool) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v), true
			}
		}
		return "", false
	}

	if v, ok := get("SIDECAR_HOST", "HOST"); ok {
		cfg.Server.Host = v
	}
	if v, ok := get("SIDECAR_PORT", "PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v, ok := get("SIDECAR_LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := get("SIDECAR_DEFAULT_PROVIDER"); ok {
		cfg.Providers.Default = v
	}

	if v, ok := get("OLLAMA_HOST"); ok {
		cfg.Providers.Ollama.BaseURL = v
	}
	if v, ok := get("OLLAMA_MODEL"); ok {
		cfg.Providers.Ollama.Model = v
	}
	if v, ok := get("OPENAI_API_KEY"); ok {
		cfg.Providers.OpenAI.APIKey = v
	}
	if v, ok := get("OPENAI_BASE_URL"); ok {
		cfg.Providers.OpenAI.BaseURL = v
	}
	if v, ok := get("LOCAL_OPENAI_BASE_URL"); ok {
		cfg.Providers.LocalOpenAI.BaseURL = v
		cfg.Providers.LocalOpenAI.Enabled = true
	}
	if v, ok := get("ANTHROPIC_API_KEY"); ok {
		cfg.Providers.Anthropic.APIKey = v
	}
	if v, ok := get("GOOGLE_API_KEY", "GEMINI_API_KEY"); ok {
		cfg.Providers.Google.APIKey = v
	}
	if v, ok := get("AZURE_OPENAI_ENDPOINT"); ok {
		cfg.Providers.AzureOpenAI.BaseURL = v
	}
	if v, ok := get("AZURE_OPENAI_API_KEY"); ok {
		cfg.Providers.AzureOpenAI.APIKey = v
	}
	if v, ok := get("AZURE_OPENAI_DEPLOYMENT"); ok {
		cfg.Providers.AzureOpenAI.Model = v
	}
	if v, ok := get("AZURE_OPENAI_API_VERSION"); ok {
		cfg.Providers.AzureOpenAI.APIVersion = v
	}

	if v, ok := get("SIDECAR_WORKSPACE"); ok {
		cfg.Builtin.Workspace = v
	}
	if v, ok := get("SIDECAR_TOOL_MODE"); ok {
		cfg.Builtin.Mode = v
	}
}
