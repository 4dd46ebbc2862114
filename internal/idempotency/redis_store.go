package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "trustpay:idem:"

// RedisStore keeps records in Redis with a TTL matching their expiry, so
// several gateway instances share one replay window.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address is empty")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisStore{client: client, now: time.Now}, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	blob, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(blob, &rec); err != nil {
		return nil, err
	}
	if rec.Expired(s.now()) {
		return nil, nil
	}
	return &rec, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, record Record) error {
	ttl := record.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	blob, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKeyPrefix+key, blob, ttl).Err()
}

// Reserve claims key with SETNX; the reservation expires with the record.
func (s *RedisStore) Reserve(ctx context.Context, key string, record Record) (bool, error) {
	ttl := record.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return false, errors.New("reservation already expired")
	}
	blob, err := json.Marshal(record)
	if err != nil {
		return false, err
	}
	return s.client.SetNX(ctx, redisKeyPrefix+key, blob, ttl).Result()
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}
