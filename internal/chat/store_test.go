package chat

import (
	"testing"

	"github.com/Cyclone1070/sidecar/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetOrCreate(t *testing.T) {
	s := NewStore()

	conv := s.GetOrCreate("c1", "ollama", "you are helpful")
	assert.Equal(t, "c1", conv.ID)
	assert.Equal(t, "ollama", conv.Provider())
	assert.Equal(t, []provider.Message{{Role: provider.RoleSystem, Content: "you are helpful"}}, conv.Messages())

	again := s.GetOrCreate("c1", "openai", "ignored")
	assert.Same(t, conv, again)
	assert.Equal(t, "ollama", again.Provider(), "provider is fixed at creation")
	assert.Equal(t, 1, again.Len())
}

func TestStore_MessagesReturnsCopy(t *testing.T) {
	s := NewStore()
	conv := s.GetOrCreate("c1", "ollama", "sys")

	msgs := conv.Messages()
	msgs[0].Content = "changed"

	assert.Equal(t, "sys", conv.Messages()[0].Content)
}

func TestStore_ClearKeepsSystemPrompt(t *testing.T) {
	s := NewStore()
	conv := s.GetOrCreate("c1", "ollama", "sys")
	conv.mu.Lock()
	conv.appendLocked(
		provider.Message{Role: provider.RoleUser, Content: "hi"},
		provider.Message{Role: provider.RoleAssistant, Content: "hello"},
	)
	conv.mu.Unlock()

	assert.True(t, s.Clear("c1"))
	assert.Equal(t, []provider.Message{{Role: provider.RoleSystem, Content: "sys"}}, conv.Messages())
	assert.False(t, s.Clear("missing"))
}

func TestStore_Delete(t *testing.T) {
	s := NewStore()
	s.GetOrCreate("c1", "ollama", "")

	assert.True(t, s.Delete("c1"))
	assert.False(t, s.Delete("c1"))
	_, ok := s.Get("c1")
	assert.False(t, ok)
	assert.Zero(t, s.Len())
}

func TestStore_ReplaceHistory(t *testing.T) {
	s := NewStore()
	s.GetOrCreate("c1", "ollama", "old system")

	conv := s.ReplaceHistory("c1", "", []provider.Message{
		{Role: provider.RoleUser, Content: "q"},
		{Role: provider.RoleSystem, Content: "first"},
		{Role: provider.RoleAssistant, Content: "a"},
		{Role: provider.RoleSystem, Content: "second"},
	})

	assert.Equal(t, "ollama", conv.Provider(), "empty provider keeps the existing one")
	assert.Equal(t, []provider.Message{
		{Role: provider.RoleSystem, Content: "second"},
		{Role: provider.RoleUser, Content: "q"},
		{Role: provider.RoleAssistant, Content: "a"},
	}, conv.Messages())

	created := s.ReplaceHistory("c2", "anthropic", []provider.Message{{Role: provider.RoleUser, Content: "x"}})
	assert.Equal(t, "anthropic", created.Provider())
	assert.Equal(t, 1, created.Len())
}

func TestStore_IDsSorted(t *testing.T) {
	s := NewStore()
	for _, id := range []string{"b", "c", "a"} {
		s.GetOrCreate(id, "ollama", "")
	}

	assert.Equal(t, []string{"a", "b", "c"}, s.IDs())
	assert.Equal(t, 3, s.Len())
}

func TestNewConversationID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewConversationID()
		require.Regexp(t, `^conv_[0-9a-f]{8}$`, id)
		seen[id] = true
	}
	assert.Greater(t, len(seen), 90)
}
