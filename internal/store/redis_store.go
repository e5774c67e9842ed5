package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/weiawesome/wes-io-collab/internal/config"
	"github.com/weiawesome/wes-io-collab/internal/domain"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
)

// RedisStore is a Redis-backed RoomStore. Content and deadline are plain
// strings; the chat log is a list appended with RPUSH.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// NewRedisStore wraps client. A positive ttl is refreshed on every write so
// rooms that are never purged expire on their own.
func NewRedisStore(client *redis.Client, cfg config.StoreConfig) *RedisStore {
	return &RedisStore{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.KeyTTL,
	}
}

func (s *RedisStore) GetContent(ctx context.Context, roomID string) (string, error) {
	content, err := s.client.Get(ctx, keysFor(s.keyPrefix, roomID).content).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get content from redis: %w", err)
	}
	return content, nil
}

func (s *RedisStore) SetContent(ctx context.Context, roomID, content string) error {
	if err := s.client.Set(ctx, keysFor(s.keyPrefix, roomID).content, content, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set content in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) GetSessionDeadline(ctx context.Context, roomID string) (time.Time, error) {
	raw, err := s.client.Get(ctx, keysFor(s.keyPrefix, roomID).sessionEnd).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, fmt.Errorf("failed to get session deadline from redis: %w", err)
	}

	deadline, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse session deadline %q: %w", raw, err)
	}
	return deadline, nil
}

func (s *RedisStore) SetSessionDeadline(ctx context.Context, roomID string, deadline time.Time) error {
	value := deadline.UTC().Format(time.RFC3339Nano)
	if err := s.client.Set(ctx, keysFor(s.keyPrefix, roomID).sessionEnd, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session deadline in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) AppendChatMessage(ctx context.Context, roomID string, msg domain.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}

	key := keysFor(s.keyPrefix, roomID).messages
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append chat message in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) ListChatMessages(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	values, err := s.client.LRange(ctx, keysFor(s.keyPrefix, roomID).messages, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages from redis: %w", err)
	}

	messages := make([]domain.ChatMessage, 0, len(values))
	for _, v := range values {
		var msg domain.ChatMessage
		if err := json.Unmarshal([]byte(v), &msg); err != nil {
			l := pkglog.Ctx(ctx)
			l.Warn().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("skipping undecodable chat message")
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *RedisStore) Purge(ctx context.Context, roomID string) error {
	if err := s.client.Del(ctx, keysFor(s.keyPrefix, roomID).all()...).Err(); err != nil {
		return fmt.Errorf("failed to purge room from redis: %w", err)
	}
	return nil
}

// Close is a no-op; the client is shared and closed by its owner.
func (s *RedisStore) Close() error {
	return nil
}

var _ RoomStore = (*RedisStore)(nil)
