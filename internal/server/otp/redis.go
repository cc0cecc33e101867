package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "gophauth:otp:"

	// DefaultRetention keeps an expired entry in redis long enough to report
	// ErrExpired instead of ErrNotFound.
	DefaultRetention = time.Hour
)

// RedisStore keeps entries in redis so several service instances share them.
// Each entry is a JSON document whose key outlives ExpiresAt by the retention
// period.
type RedisStore struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
	now       Clock
}

// NewRedisStore wraps client. Empty prefix and non-positive retention fall
// back to defaults; a nil clock means time.Now.
func NewRedisStore(client redis.UniversalClient, prefix string, retention time.Duration, now Clock) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	if now == nil {
		now = time.Now
	}
	return &RedisStore{client: client, prefix: prefix, retention: retention, now: now}
}

func (s *RedisStore) key(email string) string {
	return s.prefix + email
}

func (s *RedisStore) Put(ctx context.Context, email, code string, ttl time.Duration) error {
	payload, err := json.Marshal(Entry{Code: code, ExpiresAt: s.now().Add(ttl).UTC()})
	if err != nil {
		return fmt.Errorf("encode otp entry: %w", err)
	}
	if err := s.client.Set(ctx, s.key(email), payload, ttl+s.retention).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Take(ctx context.Context, email string) (Entry, error) {
	raw, err := s.client.Get(ctx, s.key(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("redis get: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, fmt.Errorf("decode otp entry: %w", err)
	}

	if e.Expired(s.now()) {
		if err := s.Consume(ctx, email); err != nil {
			return Entry{}, err
		}
		return Entry{}, ErrExpired
	}
	return e, nil
}

func (s *RedisStore) Consume(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, s.key(email)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
