package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store remembers processed message offsets and idempotency keys in redis.
type Store struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
}

func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl, prefix: "idem"}
}

func (s *Store) Key(topic string, partition int, offset int64) string {
	return fmt.Sprintf("%s:%s:%d:%d", s.prefix, topic, partition, offset)
}

// Seen marks key as processed and reports whether it already was.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (s *Store) requestKey(key string) string {
	return fmt.Sprintf("%s:request:%s", s.prefix, key)
}

// Lookup returns the order id recorded for a client idempotency key.
func (s *Store) Lookup(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, s.requestKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Remember binds a client idempotency key to the order it produced. The first
// writer wins.
func (s *Store) Remember(ctx context.Context, key, orderID string) error {
	return s.rdb.SetNX(ctx, s.requestKey(key), orderID, s.ttl).Err()
}

// Forget drops a client idempotency key.
func (s *Store) Forget(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.requestKey(key)).Err()
}
