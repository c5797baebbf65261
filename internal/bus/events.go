// Package bus carries inbound WhatsApp events into the router and publishes
// routing observations to subscribers (admin stream, history, metrics).
package bus

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the shape of an inbound message.
type Kind string

const (
	KindText        Kind = "text"
	KindInteractive Kind = "interactive"
	KindMedia       Kind = "media"
)

// InboundEvent is one message taken from a webhook delivery. It is not persisted.
type InboundEvent struct {
	ProviderMessageID string    `json:"providerMessageId,omitempty"`
	From              string    `json:"from"`             // raw sender identifier
	UserID            string    `json:"userId,omitempty"` // filled by the router after normalization
	ProfileName       string    `json:"profileName,omitempty"`
	Kind              Kind      `json:"kind"`
	Text              string    `json:"text,omitempty"`
	InteractiveID     string    `json:"interactiveId,omitempty"`
	InteractiveTitle  string    `json:"interactiveTitle,omitempty"`
	RowID             string    `json:"rowId,omitempty"`
	MediaType         string    `json:"mediaType,omitempty"`
	ReceivedAt        time.Time `json:"receivedAt"`
}

// Summary returns a short human-readable description used in logs and history.
func (e InboundEvent) Summary() string {
	switch e.Kind {
	case KindInteractive:
		for _, s := range []string{e.InteractiveTitle, e.InteractiveID, e.RowID} {
			if s != "" {
				return "[button] " + s
			}
		}
		return "[button]"
	case KindMedia:
		return "[" + e.MediaType + "]"
	default:
		return e.Text
	}
}

// Observability event names.
const (
	EventIncomingMessage = "incoming_message"
	EventOutgoingMessage = "outgoing_message"
	EventButtonPressed   = "button_pressed"
	EventTextRouted      = "text_routed"
	EventRouteAction     = "route_action"
	EventSessionUpdate   = "session_update"
	EventRateLimited     = "rate_limited"
	EventSendFailed      = "send_failed"
	EventFallbackFailed  = "fallback_failed"
	EventInputRejected   = "input_rejected"
	EventStoreFailed     = "store_failed"
)

// Event is a fire-and-forget observation published by the router.
type Event struct {
	ID      string         `json:"id"`
	Name    string         `json:"event"`
	UserID  string         `json:"userId,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	At      time.Time      `json:"at"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(name, userID string, payload map[string]any) Event {
	return Event{
		ID:      uuid.NewString(),
		Name:    name,
		UserID:  userID,
		Payload: payload,
		At:      time.Now(),
	}
}
