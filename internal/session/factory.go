package session

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreType names a Store driver.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// StoreOption configures NewStore.
type StoreOption func(*storeConfig)

type storeConfig struct {
	redisClient *redis.Client
	redisTTL    time.Duration
	language    string
}

// WithRedisClient sets the client for the redis driver.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) { c.redisClient = client }
}

// WithRedisTTL sets the key TTL for the redis driver.
func WithRedisTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) { c.redisTTL = ttl }
}

// WithDefaultLanguage sets the language of newly created sessions.
func WithDefaultLanguage(lang string) StoreOption {
	return func(c *storeConfig) { c.language = lang }
}

// NewStore creates a Store for the given driver.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	cfg := &storeConfig{language: "en"}
	for _, opt := range opts {
		opt(cfg)
	}

	switch storeType {
	case StoreTypeMemory, "":
		return NewMemoryStore(cfg.language), nil
	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return NewRedisStore(cfg.redisClient, cfg.redisTTL, cfg.language), nil
	default:
		return nil, ErrUnknownDriver
	}
}
