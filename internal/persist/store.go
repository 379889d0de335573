// Package persist stores the active session snapshot so a crashed or closed session can be
// resumed.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vburojevic/rounds/internal/domain"
)

var (
	ErrInvalidConfig    = errors.New("invalid store configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
	ErrMissingKey       = errors.New("session key is required")
)

// Store keeps at most one snapshot per session id. Saves fully replace the previous one.
type Store interface {
	Save(ctx context.Context, snap *domain.Snapshot) error
	// Load returns nil, nil when no snapshot exists. Unreadable snapshots return an error
	// wrapping domain.ErrCorruptSnapshot.
	Load(ctx context.Context, key string) (*domain.Snapshot, error)
	Clear(ctx context.Context, key string) error
	// Keys lists the session ids that currently have a snapshot.
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// StoreType selects a driver.
type StoreType string

const (
	StoreTypeFile   StoreType = "file"
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// StoreOption configures NewStore.
type StoreOption func(*storeConfig)

type storeConfig struct {
	dir         string
	redisClient *redis.Client
	redisTTL    time.Duration
	redisPrefix string
}

// WithDir sets the directory for the file driver.
func WithDir(dir string) StoreOption {
	return func(c *storeConfig) { c.dir = dir }
}

// WithRedisClient sets the client for the redis driver.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) { c.redisClient = client }
}

// WithRedisTTL expires redis snapshots; use the staleness window so stale snapshots vanish
// on their own.
func WithRedisTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) { c.redisTTL = ttl }
}

// WithRedisPrefix namespaces redis keys.
func WithRedisPrefix(prefix string) StoreOption {
	return func(c *storeConfig) { c.redisPrefix = prefix }
}

// NewStore builds a Store for storeType.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	cfg := &storeConfig{redisPrefix: "rounds:snapshot:"}
	for _, opt := range opts {
		opt(cfg)
	}

	switch storeType {
	case StoreTypeFile, "":
		if cfg.dir == "" {
			return nil, fmt.Errorf("%w: file store needs a directory", ErrInvalidConfig)
		}
		return newFileStore(cfg.dir)
	case StoreTypeMemory:
		return newMemoryStore(), nil
	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, fmt.Errorf("%w: redis store needs a client", ErrInvalidConfig)
		}
		ttl := cfg.redisTTL
		if ttl <= 0 {
			ttl = DefaultStaleAfter
		}
		return &redisStore{client: cfg.redisClient, ttl: ttl, prefix: cfg.redisPrefix}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStoreType, storeType)
	}
}

func encode(snap *domain.Snapshot) ([]byte, error) {
	if snap == nil || snap.SessionID == "" {
		return nil, ErrMissingKey
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return append(b, '\n'), nil
}

func decode(b []byte) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptSnapshot, err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}
