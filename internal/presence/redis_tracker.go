package presence

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis key pattern:
// {prefix}:room:{room_id}:participants   SET<participant_id>

// RedisTracker shares presence between instances through a Redis set per
// room, so the "room is empty" decision holds across the whole deployment.
type RedisTracker struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisTracker(client *redis.Client, keyPrefix string) *RedisTracker {
	if keyPrefix == "" {
		keyPrefix = "collab:presence"
	}
	return &RedisTracker{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (t *RedisTracker) participantsKey(roomID string) string {
	return fmt.Sprintf("%s:room:%s:participants", t.keyPrefix, roomID)
}

func (t *RedisTracker) Attach(ctx context.Context, roomID, participantID string) error {
	if err := t.client.SAdd(ctx, t.participantsKey(roomID), participantID).Err(); err != nil {
		return fmt.Errorf("failed to attach participant: %w", err)
	}
	return nil
}

func (t *RedisTracker) Detach(ctx context.Context, roomID, participantID string) (bool, error) {
	key := t.participantsKey(roomID)

	pipe := t.client.TxPipeline()
	pipe.SRem(ctx, key, participantID)
	card := pipe.SCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to detach participant: %w", err)
	}
	return card.Val() == 0, nil
}

func (t *RedisTracker) Count(ctx context.Context, roomID string) (int, error) {
	n, err := t.client.SCard(ctx, t.participantsKey(roomID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return int(n), nil
}

// Close is a no-op; the client is shared and closed by its owner.
func (t *RedisTracker) Close() error {
	return nil
}

var _ Tracker = (*RedisTracker)(nil)
