// Package redis opens the go-redis client shared by the session store and
// defines the key layout.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Key prefixes.
const (
	KeySession      = "kaapav:session:" // JSON session per user
	KeySessionIndex = "kaapav:sessions" // sorted set, score = updatedAt (ms)
)

// Config holds Redis connection settings.
type Config struct {
	URL      string // redis://host:port/db
	Password string
}

// Connect parses the URL, applies conservative timeouts and pings the server.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis url not configured")
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis url")
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.MaxRetries = 3

	c := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		c.Close()
		return nil, errors.Wrap(err, "redis ping")
	}

	logrus.WithField("component", "redis").Infof("connected to %s", opts.Addr)
	return c, nil
}

// SessionKey returns the Redis key for a user's session.
func SessionKey(userID string) string {
	return fmt.Sprintf("%s%s", KeySession, userID)
}
