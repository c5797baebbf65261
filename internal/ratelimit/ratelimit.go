// Package ratelimit enforces a minimum interval between outbound sends per user.
package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultInterval = 900 * time.Millisecond
	defaultShards   = 32
	defaultShardCap = 256
)

// Config configures a Limiter.
type Config struct {
	Interval time.Duration // minimum gap between sends (default 900ms)
	Shards   int
	ShardCap int // entries per shard before idle limiters are pruned
	Now      func() time.Time
}

type entry struct {
	lim      *rate.Limiter
	lastUsed time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Limiter holds one token bucket (burst 1) per user.
type Limiter struct {
	shards   []*shard
	interval time.Duration
	shardCap int
	now      func() time.Time
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Shards <= 0 {
		cfg.Shards = defaultShards
	}
	if cfg.ShardCap <= 0 {
		cfg.ShardCap = defaultShardCap
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	l := &Limiter{
		shards:   make([]*shard, cfg.Shards),
		interval: cfg.Interval,
		shardCap: cfg.ShardCap,
		now:      cfg.Now,
	}
	for i := range l.shards {
		l.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	return l
}

// Allow reports whether userID may send now, consuming the slot if so.
// A denied call leaves the user's state untouched.
func (l *Limiter) Allow(userID string) bool {
	now := l.now()
	s := l.shardFor(userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok {
		if len(s.entries) >= l.shardCap {
			s.prune(now.Add(-l.interval))
		}
		e = &entry{lim: rate.NewLimiter(rate.Every(l.interval), 1)}
		s.entries[userID] = e
	}
	e.lastUsed = now
	return e.lim.AllowN(now, 1)
}

// Len returns the number of tracked users.
func (l *Limiter) Len() int {
	n := 0
	for _, s := range l.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// prune drops limiters idle for a full interval; their buckets are full again
// so forgetting them changes nothing.
func (s *shard) prune(cutoff time.Time) {
	for k, e := range s.entries {
		if e.lastUsed.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

func (l *Limiter) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return l.shards[h.Sum32()%uint32(len(l.shards))]
}
