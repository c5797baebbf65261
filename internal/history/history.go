// Package history keeps an append-only log of inbound and outbound messages
// for the admin surface.
package history

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MaxPerUser bounds what Recent returns and what the memory log keeps.
const MaxPerUser = 200

// Direction of a logged message.
type Direction string

const (
	Inbound  Direction = "in"
	Outbound Direction = "out"
)

// Record is one logged message.
type Record struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	ProviderMessageID *string   `json:"providerMessageId,omitempty" gorm:"uniqueIndex;size:128"`
	UserID            string    `json:"userId" gorm:"index:idx_user_created,priority:1;size:32;not null"`
	Direction         Direction `json:"direction" gorm:"size:8;not null"`
	Kind              string    `json:"kind,omitempty" gorm:"size:32"`
	Text              string    `json:"text" gorm:"type:text"`
	Action            string    `json:"action,omitempty" gorm:"size:32"`
	CreatedAt         time.Time `json:"createdAt" gorm:"index:idx_user_created,priority:2"`
}

// TableName pins the table name.
func (Record) TableName() string { return "message_logs" }

// Log persists records.
type Log interface {
	// Append stores r. A record whose ProviderMessageID was already stored
	// is ignored.
	Append(ctx context.Context, r Record) error
	// Recent returns up to limit records for userID, newest first.
	Recent(ctx context.Context, userID string, limit int) ([]Record, error)
	Close() error
}

var ErrInvalidRecord = errors.New("history record needs a user id")

func validate(r *Record) error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrInvalidRecord
	}
	if r.ProviderMessageID != nil && *r.ProviderMessageID == "" {
		r.ProviderMessageID = nil
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxPerUser {
		return MaxPerUser
	}
	return limit
}

// MemoryLog keeps the last MaxPerUser records per user.
type MemoryLog struct {
	mu     sync.RWMutex
	byUser map[string][]Record
	seen   map[string]struct{}
	nextID uint
}

// NewMemoryLog creates an empty in-process log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		byUser: make(map[string][]Record),
		seen:   make(map[string]struct{}),
	}
}

func (m *MemoryLog) Append(_ context.Context, r Record) error {
	if err := validate(&r); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ProviderMessageID != nil {
		if _, dup := m.seen[*r.ProviderMessageID]; dup {
			return nil
		}
		m.seen[*r.ProviderMessageID] = struct{}{}
	}
	m.nextID++
	r.ID = m.nextID
	list := append(m.byUser[r.UserID], r)
	if len(list) > MaxPerUser {
		for _, old := range list[:len(list)-MaxPerUser] {
			if old.ProviderMessageID != nil {
				delete(m.seen, *old.ProviderMessageID)
			}
		}
		list = append([]Record(nil), list[len(list)-MaxPerUser:]...)
	}
	m.byUser[r.UserID] = list
	return nil
}

func (m *MemoryLog) Recent(_ context.Context, userID string, limit int) ([]Record, error) {
	limit = clampLimit(limit)
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.byUser[userID]
	out := make([]Record, 0, min(limit, len(list)))
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

func (m *MemoryLog) Close() error { return nil }
