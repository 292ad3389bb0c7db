package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/zhouzirui/vanguard/backend/internal/model/chat"
	"github.com/zhouzirui/vanguard/backend/internal/storage"
)

const (
	// ConversationsKey holds the whole conversation index as one JSON object.
	ConversationsKey = "@chat_history"
	// SystemPromptKey holds the persona override as a plain string.
	SystemPromptKey = "@system_prompt"
)

var ErrConversationIDRequired = errors.New("conversation id is required")

// Service persists conversations and the persona override on a KV backend.
// The index is rewritten as a whole on every change; mu serializes the
// load-mutate-save sequence.
type Service struct {
	mu sync.Mutex
	kv storage.KV
}

// NewService wraps kv.
func NewService(kv storage.KV) *Service {
	return &Service{kv: kv}
}

// SaveConversation upserts conversation by ID.
func (s *Service) SaveConversation(ctx context.Context, conversation chat.Conversation) error {
	if conversation.ID == "" {
		return ErrConversationIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex(ctx)
	if err != nil {
		return err
	}
	index[conversation.ID] = conversation.Clone()
	return s.saveIndex(ctx, index)
}

// GetConversation returns the conversation stored under id.
func (s *Service) GetConversation(ctx context.Context, id string) (chat.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex(ctx)
	if err != nil {
		return chat.Conversation{}, false, err
	}
	conversation, ok := index[id]
	return conversation, ok, nil
}

// GetAllConversations returns every conversation, newest first.
func (s *Service) GetAllConversations(ctx context.Context) ([]chat.Conversation, error) {
	s.mu.Lock()
	index, err := s.loadIndex(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	conversations := make([]chat.Conversation, 0, len(index))
	for _, conversation := range index {
		conversations = append(conversations, conversation)
	}
	slices.SortStableFunc(conversations, func(a, b chat.Conversation) int {
		if c := b.UpdatedAt().Compare(a.UpdatedAt()); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return conversations, nil
}

// SearchConversations filters GetAllConversations by a case-insensitive
// match on name or last message. An empty query returns everything.
func (s *Service) SearchConversations(ctx context.Context, query string) ([]chat.Conversation, error) {
	conversations, err := s.GetAllConversations(ctx)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return conversations, nil
	}

	matched := conversations[:0]
	for _, conversation := range conversations {
		if strings.Contains(strings.ToLower(conversation.Name), query) ||
			strings.Contains(strings.ToLower(conversation.LastMessage), query) {
			matched = append(matched, conversation)
		}
	}
	return matched, nil
}

// DeleteConversation removes id. Missing ids are ignored.
func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex(ctx)
	if err != nil {
		return err
	}
	if _, ok := index[id]; !ok {
		return nil
	}
	delete(index, id)
	return s.saveIndex(ctx, index)
}

// ClearAllConversations replaces the index with an empty one.
func (s *Service) ClearAllConversations(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveIndex(ctx, map[string]chat.Conversation{})
}

// SaveSystemPrompt stores the persona override. An empty prompt restores the default persona.
func (s *Service) SaveSystemPrompt(ctx context.Context, prompt string) error {
	if err := s.kv.Set(ctx, SystemPromptKey, []byte(prompt)); err != nil {
		return fmt.Errorf("failed to save system prompt: %w", err)
	}
	return nil
}

// GetSystemPrompt returns the persona override, or "" when none is stored.
func (s *Service) GetSystemPrompt(ctx context.Context) (string, error) {
	value, ok, err := s.kv.Get(ctx, SystemPromptKey)
	if err != nil {
		return "", fmt.Errorf("failed to load system prompt: %w", err)
	}
	if !ok {
		return "", nil
	}
	return string(value), nil
}

func (s *Service) loadIndex(ctx context.Context) (map[string]chat.Conversation, error) {
	raw, ok, err := s.kv.Get(ctx, ConversationsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}

	index := make(map[string]chat.Conversation)
	if !ok || len(raw) == 0 {
		return index, nil
	}
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}
	if index == nil {
		// a stored "null"
		index = make(map[string]chat.Conversation)
	}
	return index, nil
}

func (s *Service) saveIndex(ctx context.Context, index map[string]chat.Conversation) error {
	raw, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to encode conversations: %w", err)
	}
	if err := s.kv.Set(ctx, ConversationsKey, raw); err != nil {
		return fmt.Errorf("failed to save conversations: %w", err)
	}
	return nil
}
