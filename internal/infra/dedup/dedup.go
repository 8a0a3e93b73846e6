package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyFormat = "dedup:%s:%s"

// Store records processed message keys in Redis. It is a fast path in front
// of the handlers' own idempotency, never a replacement for it.
type Store struct {
	rdb     *redis.Client
	service string
	ttl     time.Duration
}

func NewStore(rdb *redis.Client, service string, ttl time.Duration) *Store {
	return &Store{rdb: rdb, service: service, ttl: ttl}
}

func (s *Store) key(k string) string {
	return fmt.Sprintf(keyFormat, s.service, k)
}

func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark is called only after the handler succeeded, so a failed attempt is
// never remembered as done.
func (s *Store) Mark(ctx context.Context, key string) error {
	return s.rdb.Set(ctx, s.key(key), "1", s.ttl).Err()
}
