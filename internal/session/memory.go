package session

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"
)

const memoryShards = 16

type memoryShard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// MemoryStore keeps sessions in process memory, partitioned by user id.
type MemoryStore struct {
	shards   []*memoryShard
	language string
	now      func() time.Time
}

// NewMemoryStore creates an in-memory store. language is the default for new sessions.
func NewMemoryStore(language string) *MemoryStore {
	s := &MemoryStore{
		shards:   make([]*memoryShard, memoryShards),
		language: language,
		now:      time.Now,
	}
	for i := range s.shards {
		s.shards[i] = &memoryShard{sessions: make(map[string]*Session)}
	}
	return s
}

// LoadOrCreate implements Store.
func (s *MemoryStore) LoadOrCreate(_ context.Context, userID string) (Session, error) {
	sh := s.shardFor(userID)

	sh.mu.RLock()
	if sess, ok := sh.sessions[userID]; ok {
		out := sess.Clone()
		sh.mu.RUnlock()
		return out, nil
	}
	sh.mu.RUnlock()

	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess := s.getOrCreateLocked(sh, userID)
	return sess.Clone(), nil
}

// Patch implements Store. A missing session is created first.
func (s *MemoryStore) Patch(_ context.Context, userID string, p Patch) (Session, error) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess := s.getOrCreateLocked(sh, userID)
	p.Apply(sess, s.now())
	return sess.Clone(), nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, userID string) (Session, error) {
	sh := s.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	sess, ok := sh.sessions[userID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess.Clone(), nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, limit int) ([]Session, error) {
	var all []Session
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, sess := range sh.sessions {
			all = append(all, sess.Clone())
		}
		sh.mu.RUnlock()
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) getOrCreateLocked(sh *memoryShard, userID string) *Session {
	if sess, ok := sh.sessions[userID]; ok {
		return sess
	}
	sess := New(userID, s.language, s.now())
	sh.sessions[userID] = &sess
	return &sess
}

func (s *MemoryStore) shardFor(key string) *memoryShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}
