package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/eunoia-app/eunoia/store"
	"github.com/google/uuid"
)

type memoryStore struct {
	users         map[string]store.User
	conversations map[string]store.Conversation
	turns         []store.Turn
	mtx           sync.RWMutex
}

func (s *memoryStore) FindUser(ctx context.Context, userId string) (*store.User, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	user, ok := s.users[userId]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *memoryStore) FindConversation(ctx context.Context, conversationId string) (*store.Conversation, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	conversation, ok := s.conversations[conversationId]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &conversation, nil
}

func (s *memoryStore) CreateConversation(ctx context.Context, conversation store.Conversation) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if existing, ok := s.conversations[conversation.ConversationId]; ok {
		if existing.UserId != conversation.UserId {
			return store.ErrConversationOwned
		}
		return nil
	}

	now := time.Now().UTC()
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = now
	}
	if conversation.UpdatedAt.IsZero() {
		conversation.UpdatedAt = now
	}
	if len(conversation.Title) == 0 {
		conversation.Title = store.DefaultTitle
	}

	s.conversations[conversation.ConversationId] = conversation

	return nil
}

func (s *memoryStore) TouchConversation(ctx context.Context, conversationId string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	conversation, ok := s.conversations[conversationId]
	if !ok {
		return store.ErrNotFound
	}

	conversation.UpdatedAt = time.Now().UTC()
	s.conversations[conversationId] = conversation

	return nil
}

func (s *memoryStore) AppendTurn(ctx context.Context, turn store.Turn) (string, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if len(turn.UserId) == 0 || len(turn.ConversationId) == 0 {
		return "", errors.New("turn is missing user or conversation id")
	}

	turn.Id = uuid.New().String()
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}

	s.turns = append(s.turns, turn)

	return turn.Id, nil
}

func (s *memoryStore) AttachVectorRef(ctx context.Context, turnId string, refId string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for i := range s.turns {
		if s.turns[i].Id == turnId {
			s.turns[i].VectorRef = refId
			return nil
		}
	}

	return store.ErrNotFound
}

func (s *memoryStore) RecentTurns(ctx context.Context, userId string, conversationId string, limit int) ([]store.Turn, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var matched []store.Turn
	for _, turn := range s.turns {
		if turn.UserId == userId && turn.ConversationId == conversationId {
			matched = append(matched, turn)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}

	return matched, nil
}

func (s *memoryStore) ListConversations(ctx context.Context, userId string, limit int) ([]store.ConversationSummary, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var matched []store.Conversation
	for _, conversation := range s.conversations {
		if conversation.UserId == userId {
			matched = append(matched, conversation)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	summaries := make([]store.ConversationSummary, 0, len(matched))
	for _, conversation := range matched {
		summaries = append(summaries, store.ConversationSummary{
			ConversationId: conversation.ConversationId,
			Title:          conversation.Title,
		})
	}

	return summaries, nil
}

func (s *memoryStore) TurnsForConversation(ctx context.Context, conversationId string) ([]store.Turn, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var matched []store.Turn
	for _, turn := range s.turns {
		if turn.ConversationId == conversationId {
			matched = append(matched, turn)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})

	return matched, nil
}

// AddUser seeds a user record. Accounts are owned by an external
// collaborator in production; this exists for tests and local development.
func (s *memoryStore) AddUser(user store.User) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.users[user.Id] = user
}

func NewStore() *memoryStore {
	return &memoryStore{
		users:         map[string]store.User{},
		conversations: map[string]store.Conversation{},
	}
}
