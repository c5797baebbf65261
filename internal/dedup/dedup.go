// Package dedup suppresses re-delivery of the same provider message id
// within a trailing window.
//
// Entries live in key-hashed shards so unrelated users never contend on one
// mutex. Once a shard holds more than its share of the high-water mark, every
// entry older than the retention horizon is purged in a single pass. The cap
// is soft: a burst of fresh ids may exceed it until they age out.
package dedup

import (
	"hash/fnv"
	"sync"
	"time"
)

const (
	DefaultWindow    = 20 * time.Second
	DefaultHighWater = 5000
	DefaultRetention = 5 * time.Minute
	defaultShards    = 32
)

// Config configures a Deduplicator.
type Config struct {
	Window    time.Duration // duplicate window (default 20s)
	HighWater int           // total tracked ids before a purge (default 5000)
	Retention time.Duration // purge entries older than this (default 5m)
	Shards    int
	Now       func() time.Time
}

type shard struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// Deduplicator tracks providerMessageId → firstSeen.
type Deduplicator struct {
	shards    []*shard
	window    time.Duration
	retention time.Duration
	shardCap  int
	now       func() time.Time
}

// New creates a Deduplicator.
func New(cfg Config) *Deduplicator {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.HighWater <= 0 {
		cfg.HighWater = DefaultHighWater
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Shards <= 0 {
		cfg.Shards = defaultShards
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	shardCap := cfg.HighWater / cfg.Shards
	if shardCap < 1 {
		shardCap = 1
	}

	d := &Deduplicator{
		shards:    make([]*shard, cfg.Shards),
		window:    cfg.Window,
		retention: cfg.Retention,
		shardCap:  shardCap,
		now:       cfg.Now,
	}
	for i := range d.shards {
		d.shards[i] = &shard{seen: make(map[string]time.Time)}
	}
	return d
}

// Seen reports whether id was already observed inside the window, and
// records it otherwise. An empty id is always novel.
func (d *Deduplicator) Seen(id string) bool {
	if id == "" {
		return false
	}
	now := d.now()
	s := d.shardFor(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if first, ok := s.seen[id]; ok && now.Sub(first) <= d.window {
		return true
	}
	s.seen[id] = now
	if len(s.seen) > d.shardCap {
		s.purge(now.Add(-d.retention))
	}
	return false
}

// Forget drops id so a redelivery is treated as new. Callers use it when an
// id was recorded but the message could not be accepted.
func (d *Deduplicator) Forget(id string) {
	if id == "" {
		return
	}
	s := d.shardFor(id)
	s.mu.Lock()
	delete(s.seen, id)
	s.mu.Unlock()
}

// Len returns the number of tracked ids.
func (d *Deduplicator) Len() int {
	n := 0
	for _, s := range d.shards {
		s.mu.Lock()
		n += len(s.seen)
		s.mu.Unlock()
	}
	return n
}

func (s *shard) purge(cutoff time.Time) {
	for k, v := range s.seen {
		if v.Before(cutoff) {
			delete(s.seen, k)
		}
	}
}

func (d *Deduplicator) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return d.shards[h.Sum32()%uint32(len(d.shards))]
}
