//go:build integration

package gemini

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Cyclone1070/sidecar/internal/provider"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_FreeAPI_ListModelsAndChat(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set, skipping free API test")
	}

	client, err := Dial(context.Background(), apiKey, 60*time.Second)
	require.NoError(t, err)
	p := New(client, "gemini-2.0-flash", zerolog.Nop())

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, models)
	for _, m := range models {
		assert.True(t, strings.HasPrefix(m, "gemini-"), "Expected all models to start with 'gemini-', got %q", m)
	}

	resp, err := p.Chat(context.Background(), &provider.ChatRequest{
		Messages:  []provider.Message{{Role: provider.RoleUser, Content: "Reply with the single word: pong"}},
		MaxTokens: 16,
	})
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(resp.Text), "pong")
}
