package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists one Window per session id. Windows carry a sliding TTL
// so abandoned sessions are garbage-collected by Redis alongside session
// expiry; no sweeper runs in-process.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisStore{
		client: client,
		prefix: "tlwin:",
		ttl:    ttl,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// Get loads a session's window. A session with no stored window gets a zero
// window, not an error.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (Window, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err == redis.Nil {
		return Window{}, nil
	}
	if err != nil {
		return Window{}, fmt.Errorf("load session window: %w", err)
	}

	var window Window
	if err := json.Unmarshal([]byte(raw), &window); err != nil {
		return Window{}, fmt.Errorf("unmarshal session window: %w", err)
	}
	return window, nil
}

// Put stores a window and refreshes its TTL.
func (s *RedisStore) Put(ctx context.Context, sessionID string, window Window) error {
	raw, err := json.Marshal(window)
	if err != nil {
		return fmt.Errorf("marshal session window: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session window: %w", err)
	}
	return nil
}

// Delete drops a session's window outright.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session window: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
