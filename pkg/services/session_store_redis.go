package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"smartwaste-api/pkg/models"

	"github.com/go-redis/redis/v8"
)

const sessionKeyPrefix = "smartwaste:session:"

// RedisSessionStore はRedisにセッション状態をJSONで保存します。
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore はRedisに接続し、疎通確認を行います。
func NewRedisSessionStore(addr, password string, db int, ttl time.Duration) (*RedisSessionStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Printf("✅ Redisに接続しました（%s）: %s", addr, pong)

	return &RedisSessionStore{client: client, ttl: ttl}, nil
}

// Load implements SessionStore.
func (s *RedisSessionStore) Load(ctx context.Context, id string) (models.SessionState, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.SessionState{}, ErrSessionNotFound
	}
	if err != nil {
		return models.SessionState{}, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	var state models.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return models.SessionState{}, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	if state.Feedback == nil {
		state.Feedback = map[string]bool{}
	}
	return state, nil
}

// Save implements SessionStore. 保存のたびにTTLを延長します。
func (s *RedisSessionStore) Save(ctx context.Context, state models.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", state.ID, err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+state.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session %s: %w", state.ID, err)
	}
	return nil
}

// Delete implements SessionStore.
func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisSessionStore) Close() {
	if s.client != nil {
		s.client.Close()
		log.Println("Redis connection closed.")
	}
}
