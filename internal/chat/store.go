package chat

import (
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/Cyclone1070/sidecar/internal/provider"
	"github.com/google/uuid"
)

// Conversation is one history plus the provider it talks to. The mutex is
// held for the whole of a turn, so turns on one conversation never overlap.
type Conversation struct {
	ID string

	mu       sync.Mutex
	provider string
	messages []provider.Message

	// model is an explicit override, valid only for modelFor.
	model    string
	modelFor string
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []provider.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.messages)
}

// Provider returns the provider name bound to the conversation.
func (c *Conversation) Provider() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provider
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func (c *Conversation) appendLocked(msgs ...provider.Message) {
	c.messages = append(c.messages, msgs...)
}

// Store holds conversations in memory. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	convs map[string]*Conversation
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{convs: make(map[string]*Conversation)}
}

// NewConversationID returns "conv_" followed by 8 hex characters.
func NewConversationID() string {
	return "conv_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// GetOrCreate returns the conversation, creating it with the given
// provider and optional system prompt when it does not exist.
func (s *Store) GetOrCreate(id, providerName, systemPrompt string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.convs[id]; ok {
		return conv
	}
	conv := &Conversation{ID: id, provider: providerName}
	if systemPrompt != "" {
		conv.messages = append(conv.messages, provider.Message{Role: provider.RoleSystem, Content: systemPrompt})
	}
	s.convs[id] = conv
	return conv
}

// Get looks up a conversation.
func (s *Store) Get(id string) (*Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[id]
	return conv, ok
}

// Clear drops every non-system message. It reports whether the
// conversation exists.
func (s *Store) Clear(id string) bool {
	conv, ok := s.Get(id)
	if !ok {
		return false
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	conv.messages = slices.DeleteFunc(conv.messages, func(m provider.Message) bool {
		return m.Role != provider.RoleSystem
	})
	return true
}

// Delete removes a conversation. It reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.convs[id]
	delete(s.convs, id)
	return ok
}

// ReplaceHistory swaps the whole history, creating the conversation when
// needed. Only the last system message is kept and it is moved first.
// An empty providerName keeps the current binding.
func (s *Store) ReplaceHistory(id, providerName string, messages []provider.Message) *Conversation {
	conv := s.GetOrCreate(id, providerName, "")

	var system *provider.Message
	rest := make([]provider.Message, 0, len(messages)+1)
	for i := range messages {
		if messages[i].Role == provider.RoleSystem {
			system = &messages[i]
			continue
		}
		rest = append(rest, messages[i])
	}
	if system != nil {
		rest = append([]provider.Message{*system}, rest...)
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()
	conv.messages = rest
	if providerName != "" {
		conv.provider = providerName
	}
	return conv
}

// Len returns the number of conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs)
}

// IDs returns the conversation ids, sorted.
func (s *Store) IDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.convs))
	for id := range s.convs {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
