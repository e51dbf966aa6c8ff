package convo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gradpath/advisor/internal/model"
)

// MemoryStore is an in-memory ContextStore used in tests and for
// single-process runs without a database.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string]*model.Conversation
	now   func() time.Time
}

// NewMemory creates an empty in-memory context store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		convs: make(map[string]*model.Conversation),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Create(ctx context.Context) (*model.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	conv := &model.Conversation{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.convs[conv.ID] = conv
	return copyConversation(conv), nil
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*model.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.convs[id]
	if !ok || conv.Archived {
		return nil, ErrNotFound
	}
	return copyConversation(conv), nil
}

func (s *MemoryStore) Append(ctx context.Context, id string, turns []model.Turn, prefs model.Preferences, expectedVersion int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[id]
	if !ok || conv.Archived {
		return ErrNotFound
	}
	if conv.Version != expectedVersion {
		return ErrConcurrentModification
	}
	conv.Turns = append(conv.Turns, turns...)
	conv.Preferences = prefs
	conv.Version++
	conv.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Archive(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[id]
	if !ok {
		return ErrNotFound
	}
	conv.Archived = true
	conv.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func copyConversation(conv *model.Conversation) *model.Conversation {
	out := *conv
	out.Turns = make([]model.Turn, len(conv.Turns))
	copy(out.Turns, conv.Turns)
	return &out
}
