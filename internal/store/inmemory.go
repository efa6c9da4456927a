package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// InMemoryStore is a simple in-process store for local/dev use and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	users  map[int64]UserProfile
	turns  map[int64][]Turn
	facts  map[int64]map[string]ContextFact
	nextID int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users: make(map[int64]UserProfile),
		turns: make(map[int64][]Turn),
		facts: make(map[int64]map[string]ContextFact),
	}
}

func (s *InMemoryStore) UpsertUser(_ context.Context, userID int64, profile UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = profile
	return nil
}

func (s *InMemoryStore) AddTurn(_ context.Context, userID int64, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.turns[userID] = append(s.turns[userID], Turn{
		ID:        s.nextID,
		UserID:    userID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

func (s *InMemoryStore) RecentTurns(_ context.Context, userID int64, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.turns[userID]
	if len(arr) == 0 {
		return []Turn{}, nil
	}
	if limit <= 0 {
		limit = ContextTurnLimit
	}
	if limit > len(arr) {
		limit = len(arr)
	}
	out := make([]Turn, 0, limit)
	for i := len(arr) - limit; i < len(arr); i++ {
		out = append(out, arr[i])
	}
	return out, nil
}

func (s *InMemoryStore) ClearHistory(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, userID)
	delete(s.facts, userID)
	return nil
}

func (s *InMemoryStore) UpsertContextFact(_ context.Context, userID int64, factType, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byType := s.facts[userID]
	if byType == nil {
		byType = make(map[string]ContextFact)
		s.facts[userID] = byType
	}
	byType[factType] = ContextFact{
		UserID:    userID,
		Type:      factType,
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

func (s *InMemoryStore) ContextFacts(_ context.Context, userID int64, factType string) ([]ContextFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byType := s.facts[userID]
	var out []ContextFact
	for _, f := range byType {
		if strings.TrimSpace(factType) != "" && f.Type != factType {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].Type < out[j].Type
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) ConversationContext(ctx context.Context, userID int64) (ConversationContext, error) {
	turns, err := s.RecentTurns(ctx, userID, ContextTurnLimit)
	if err != nil {
		return ConversationContext{}, err
	}
	facts, err := s.ContextFacts(ctx, userID, "")
	if err != nil {
		return ConversationContext{}, err
	}
	return ConversationContext{
		Turns:      turns,
		Facts:      facts,
		HasContext: len(turns) > 0 || len(facts) > 0,
	}, nil
}

func (s *InMemoryStore) ListUserIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *InMemoryStore) Close() error { return nil }

var _ Store = (*InMemoryStore)(nil)
