package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix  = "session:"
	defaultRedisTTL = 24 * time.Hour
)

// RedisStore keeps sessions as JSON blobs in Redis with a sliding TTL, for
// deployments that want shared session state across instances. Capacity
// eviction is delegated to the TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps a Redis client. ttl <= 0 uses a 24h default.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Create(ctx context.Context, id string) (*Session, error) {
	if id != "" {
		if existing, err := r.Get(ctx, id); err == nil {
			return existing, nil
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	s := New(id)
	if err := r.Put(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	val, err := r.client.Get(ctx, redisKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: redis get %s: %w", id, err)
	}
	var s Session
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, fmt.Errorf("session: corrupt record %s: %w", id, err)
	}
	// Sliding expiry: reads keep active sessions alive.
	_ = r.client.Expire(ctx, redisKeyPrefix+id, r.ttl).Err()
	return &s, nil
}

func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	s.Touch()
	val, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", s.ID, err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+s.ID, val, r.ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set %s: %w", s.ID, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("session: redis del %s: %w", id, err)
	}
	return nil
}
