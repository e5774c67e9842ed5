package presence

import (
	"context"
	"sync"
)

// MemoryTracker keeps presence in process memory. Handlers for different
// connections run on different goroutines, so every access is locked.
// Only correct when a single instance serves all connections of a room.
type MemoryTracker struct {
	rooms map[string]map[string]struct{} // roomID -> participant set
	mu    sync.RWMutex
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		rooms: make(map[string]map[string]struct{}),
	}
}

func (t *MemoryTracker) Attach(ctx context.Context, roomID, participantID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	participants, ok := t.rooms[roomID]
	if !ok {
		participants = make(map[string]struct{})
		t.rooms[roomID] = participants
	}
	participants[participantID] = struct{}{}
	return nil
}

func (t *MemoryTracker) Detach(ctx context.Context, roomID, participantID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	participants, ok := t.rooms[roomID]
	if !ok {
		return true, nil
	}
	delete(participants, participantID)
	if len(participants) == 0 {
		delete(t.rooms, roomID)
		return true, nil
	}
	return false, nil
}

func (t *MemoryTracker) Count(ctx context.Context, roomID string) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.rooms[roomID]), nil
}

func (t *MemoryTracker) Close() error {
	return nil
}

var _ Tracker = (*MemoryTracker)(nil)
