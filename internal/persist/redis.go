package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vburojevic/rounds/internal/domain"
)

// redisStore keeps snapshots as string keys that expire after the staleness window.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func (s *redisStore) key(id string) string { return s.prefix + id }

func (s *redisStore) Save(ctx context.Context, snap *domain.Snapshot) error {
	b, err := encode(snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(snap.SessionID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *redisStore) Load(ctx context.Context, key string) (*domain.Snapshot, error) {
	if key == "" {
		return nil, ErrMissingKey
	}
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return decode(val)
}

func (s *redisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}

func (s *redisStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return keys, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
