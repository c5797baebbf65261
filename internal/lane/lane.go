// Package lane provides per-user serialization for inbound message routing.
//
// Every user id gets its own "lane": a FIFO of jobs drained by at most one
// worker goroutine. A job keeps its lane's turn for its whole duration,
// including every network call it makes, so a second message from the same
// user never interleaves with the first. Lanes for different users run in
// parallel and share nothing but the lookup map.
package lane

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrStopped is returned when submitting to a stopped Manager.
var ErrStopped = errors.New("lane manager stopped")

// Job is one unit of work for a lane.
type Job func(ctx context.Context)

type laneItem struct {
	ctx  context.Context
	job  Job
	done chan struct{}
}

// lane holds a single user's pending jobs.
type lane struct {
	key        string
	pending    []laneItem
	running    bool
	lastActive time.Time
	processed  int64
	mu         sync.Mutex
}

// Manager manages lanes for all users.
type Manager struct {
	mu              sync.Mutex
	lanes           map[string]*lane
	idleTTL         time.Duration
	cleanupInterval time.Duration
	inflight        sync.WaitGroup
	stopped         bool
	stopCh          chan struct{}
	stopOnce        sync.Once
	log             *logrus.Entry
}

// ManagerConfig configures a lane Manager.
type ManagerConfig struct {
	IdleTTL         time.Duration // Drop idle lanes after this long (default 10m)
	CleanupInterval time.Duration // Idle lane cleanup interval (default 1m)
	Logger          *logrus.Entry
}

// NewManager creates a lane manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.IdleTTL == 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.WithField("component", "lane")
	}

	m := &Manager{
		lanes:           make(map[string]*lane),
		idleTTL:         cfg.IdleTTL,
		cleanupInterval: cfg.CleanupInterval,
		stopCh:          make(chan struct{}),
		log:             cfg.Logger,
	}

	go m.periodicCleanup()
	return m
}

// Enqueue appends job to key's lane and returns immediately. The returned
// channel is closed once the job has run.
//
// The job's context carries ctx's values but not its cancellation: an
// enqueued job always runs to completion.
func (m *Manager) Enqueue(ctx context.Context, key string, job Job) (<-chan struct{}, error) {
	item := laneItem{
		ctx:  context.WithoutCancel(ctx),
		job:  job,
		done: make(chan struct{}),
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil, ErrStopped
	}
	l, ok := m.lanes[key]
	if !ok {
		l = &lane{key: key}
		m.lanes[key] = l
	}
	m.inflight.Add(1)

	l.mu.Lock()
	l.pending = append(l.pending, item)
	l.lastActive = time.Now()
	start := !l.running
	l.running = true
	l.mu.Unlock()
	m.mu.Unlock()

	if start {
		go m.runWorker(l)
	}
	return item.done, nil
}

// Do enqueues job and waits for it to finish or for ctx to end. If ctx ends
// first the job still runs; only the wait is abandoned.
func (m *Manager) Do(ctx context.Context, key string, job Job) error {
	done, err := m.Enqueue(ctx, key, job)
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runWorker drains a lane in FIFO order and exits when it is empty.
func (m *Manager) runWorker(l *lane) {
	for {
		l.mu.Lock()
		if len(l.pending) == 0 {
			l.running = false
			l.lastActive = time.Now()
			l.mu.Unlock()
			return
		}
		item := l.pending[0]
		l.pending[0] = laneItem{}
		l.pending = l.pending[1:]
		l.mu.Unlock()

		m.run(l, item)

		l.mu.Lock()
		l.processed++
		l.mu.Unlock()
	}
}

func (m *Manager) run(l *lane, item laneItem) {
	defer m.inflight.Done()
	defer close(item.done)
	defer func() {
		if r := recover(); r != nil {
			m.log.WithField("lane", l.key).Errorf("job panicked: %v", r)
		}
	}()
	item.job(item.ctx)
}

// cleanupIdleLanes removes long-idle lanes (called under m.mu).
func (m *Manager) cleanupIdleLanes() int {
	threshold := time.Now().Add(-m.idleTTL)
	removed := 0
	for key, l := range m.lanes {
		l.mu.Lock()
		if !l.running && len(l.pending) == 0 && l.lastActive.Before(threshold) {
			delete(m.lanes, key)
			removed++
		}
		l.mu.Unlock()
	}
	return removed
}

// periodicCleanup runs idle lane cleanup periodically.
func (m *Manager) periodicCleanup() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			if n := m.cleanupIdleLanes(); n > 0 {
				m.log.Debugf("removed %d idle lanes", n)
			}
			m.mu.Unlock()
		case <-m.stopCh:
			return
		}
	}
}

// Stop rejects new jobs and stops the cleanup loop. Queued jobs still run.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.stopped = true
		m.mu.Unlock()
		close(m.stopCh)
	})
}

// Drain stops the manager and waits for queued jobs to finish.
func (m *Manager) Drain(ctx context.Context) error {
	m.Stop()
	done := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns lane manager statistics.
func (m *Manager) Stats() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	active, queued := 0, 0
	for _, l := range m.lanes {
		l.mu.Lock()
		if l.running {
			active++
		}
		queued += len(l.pending)
		l.mu.Unlock()
	}

	return map[string]any{
		"totalLanes":  len(m.lanes),
		"activeLanes": active,
		"queuedJobs":  queued,
	}
}

// ActiveCount returns the number of lanes with a running worker.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, l := range m.lanes {
		l.mu.Lock()
		if l.running {
			count++
		}
		l.mu.Unlock()
	}
	return count
}
