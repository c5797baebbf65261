// Package session holds per-customer conversational state and the store
// contract the router depends on.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// MaxRecentMessages bounds Session.RecentMessages; the oldest entry is evicted first.
const MaxRecentMessages = 10

var (
	ErrNotFound      = errors.New("session not found")
	ErrInvalidConfig = errors.New("invalid session store config")
	ErrUnknownDriver = errors.New("unknown session store driver")
)

// Menu is the menu a customer is currently looking at.
type Menu string

const (
	MenuMain      Menu = "main"
	MenuJewellery Menu = "jewellery"
	MenuOffers    Menu = "offers"
	MenuPayment   Menu = "payment"
	MenuChat      Menu = "chat"
	MenuSocial    Menu = "social"
)

// Lead holds contact details captured from conversation. Each field is set
// at most once and never overwritten by a blank capture.
type Lead struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// IsZero reports whether nothing has been captured.
func (l Lead) IsZero() bool {
	return l.Name == "" && l.Email == "" && l.Phone == ""
}

// Message is one entry of the recent-message ring.
type Message struct {
	Text string    `json:"text"`
	Kind string    `json:"kind,omitempty"`
	At   time.Time `json:"at"`
}

// Session is the durable state for one userId.
type Session struct {
	UserID           string    `json:"userId"`
	CurrentMenu      Menu      `json:"currentMenu"`
	Language         string    `json:"language"`
	Lead             Lead      `json:"leadAttributes"`
	InteractionCount int       `json:"interactionCount"`
	RecentMessages   []Message `json:"recentMessages"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// New returns a fresh session with defaults.
func New(userID, language string, now time.Time) Session {
	if language == "" {
		language = "en"
	}
	return Session{
		UserID:         userID,
		CurrentMenu:    MenuMain,
		Language:       language,
		RecentMessages: []Message{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Clone returns a deep copy.
func (s Session) Clone() Session {
	c := s
	c.RecentMessages = append([]Message(nil), s.RecentMessages...)
	return c
}

// Patch is a partial update. Nil pointers and zero values leave state alone.
type Patch struct {
	CurrentMenu      *Menu
	Language         *string
	Lead             Lead
	InteractionDelta int
	AppendMessages   []Message
}

// IsEmpty reports whether applying p would change nothing.
func (p Patch) IsEmpty() bool {
	return p.CurrentMenu == nil && p.Language == nil && p.Lead.IsZero() &&
		p.InteractionDelta == 0 && len(p.AppendMessages) == 0
}

// Merge folds q into p; q's replacements win, counters add, messages append.
func (p Patch) Merge(q Patch) Patch {
	out := p
	if q.CurrentMenu != nil {
		out.CurrentMenu = q.CurrentMenu
	}
	if q.Language != nil {
		out.Language = q.Language
	}
	out.Lead = mergeLead(out.Lead, q.Lead)
	out.InteractionDelta += q.InteractionDelta
	out.AppendMessages = append(append([]Message(nil), p.AppendMessages...), q.AppendMessages...)
	return out
}

// Apply mutates s. Every Store driver goes through here so the merge rules
// are identical across backends.
func (p Patch) Apply(s *Session, now time.Time) {
	if p.CurrentMenu != nil {
		s.CurrentMenu = *p.CurrentMenu
	}
	if p.Language != nil && *p.Language != "" {
		s.Language = *p.Language
	}
	s.Lead = mergeLead(s.Lead, p.Lead)
	s.InteractionCount += p.InteractionDelta
	if len(p.AppendMessages) > 0 {
		s.RecentMessages = append(s.RecentMessages, p.AppendMessages...)
		if n := len(s.RecentMessages); n > MaxRecentMessages {
			s.RecentMessages = append([]Message(nil), s.RecentMessages[n-MaxRecentMessages:]...)
		}
	}
	s.UpdatedAt = now
}

func mergeLead(have, add Lead) Lead {
	setOnce := func(dst *string, v string) {
		if *dst == "" {
			*dst = strings.TrimSpace(v)
		}
	}
	setOnce(&have.Name, add.Name)
	setOnce(&have.Email, add.Email)
	setOnce(&have.Phone, add.Phone)
	return have
}

// MenuPtr is a helper for building patches.
func MenuPtr(m Menu) *Menu { return &m }

// StringPtr is a helper for building patches.
func StringPtr(s string) *string { return &s }

// Store is the session persistence contract.
//
// LoadOrCreate is idempotent. Patch must be safe under concurrent calls for
// different users; callers serialize same-user access.
type Store interface {
	LoadOrCreate(ctx context.Context, userID string) (Session, error)
	Patch(ctx context.Context, userID string, p Patch) (Session, error)
	Get(ctx context.Context, userID string) (Session, error)
	// List returns up to limit sessions, most recently updated first.
	List(ctx context.Context, limit int) ([]Session, error)
	Close() error
}
