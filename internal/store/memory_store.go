package store

import (
	"context"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-collab/internal/domain"
)

type memoryRoom struct {
	content  *string
	deadline *time.Time
	messages []domain.ChatMessage
}

// MemoryStore is an in-memory RoomStore.
// Suitable for single-instance deployments and tests.
type MemoryStore struct {
	rooms map[string]*memoryRoom
	mu    sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]*memoryRoom),
	}
}

func (s *MemoryStore) room(roomID string) *memoryRoom {
	r, ok := s.rooms[roomID]
	if !ok {
		r = &memoryRoom{}
		s.rooms[roomID] = r
	}
	return r
}

func (s *MemoryStore) GetContent(ctx context.Context, roomID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[roomID]
	if !ok || r.content == nil {
		return "", ErrNotFound
	}
	return *r.content, nil
}

func (s *MemoryStore) SetContent(ctx context.Context, roomID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.room(roomID).content = &content
	return nil
}

func (s *MemoryStore) GetSessionDeadline(ctx context.Context, roomID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[roomID]
	if !ok || r.deadline == nil {
		return time.Time{}, ErrNotFound
	}
	return *r.deadline, nil
}

func (s *MemoryStore) SetSessionDeadline(ctx context.Context, roomID string, deadline time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := deadline.UTC()
	s.room(roomID).deadline = &d
	return nil
}

func (s *MemoryStore) AppendChatMessage(ctx context.Context, roomID string, msg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.room(roomID)
	r.messages = append(r.messages, msg)
	return nil
}

func (s *MemoryStore) ListChatMessages(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return []domain.ChatMessage{}, nil
	}

	// Return a copy to prevent external modifications
	out := make([]domain.ChatMessage, len(r.messages))
	copy(out, r.messages)
	return out, nil
}

func (s *MemoryStore) Purge(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, roomID)
	return nil
}

// Exists reports whether any state is held for the room.
func (s *MemoryStore) Exists(roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.rooms[roomID]
	return ok
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ RoomStore = (*MemoryStore)(nil)
