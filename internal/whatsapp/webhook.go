// Package whatsapp speaks the WhatsApp wire formats: Cloud API webhooks and
// Graph API sends, Twilio's WhatsApp sandbox, and request signatures.
package whatsapp

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/dayuer/kaapav-go/internal/bus"
)

// Webhook is a Cloud API webhook delivery.
type Webhook struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string `json:"messaging_product"`
	Metadata         struct {
		DisplayPhoneNumber string `json:"display_phone_number"`
		PhoneNumberID      string `json:"phone_number_id"`
	} `json:"metadata"`
	Contacts []struct {
		WaID    string `json:"wa_id"`
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
	} `json:"contacts"`
	Messages []WebhookMessage `json:"messages"`
	Statuses []struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		RecipientID string `json:"recipient_id"`
	} `json:"statuses"`
}

type mediaRef struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
}

type WebhookMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply,omitempty"`
		ListReply *struct {
			ID          string `json:"id"`
			Title       string `json:"title"`
			Description string `json:"description"`
			RowID       string `json:"row_id"`
		} `json:"list_reply,omitempty"`
	} `json:"interactive,omitempty"`
	// Quick-reply buttons on template messages.
	Button *struct {
		Payload string `json:"payload"`
		Text    string `json:"text"`
	} `json:"button,omitempty"`
	Image    *mediaRef `json:"image,omitempty"`
	Audio    *mediaRef `json:"audio,omitempty"`
	Voice    *mediaRef `json:"voice,omitempty"`
	Video    *mediaRef `json:"video,omitempty"`
	Document *mediaRef `json:"document,omitempty"`
	Sticker  *mediaRef `json:"sticker,omitempty"`
}

var mediaTypes = map[string]bool{
	"image": true, "audio": true, "voice": true, "video": true,
	"document": true, "sticker": true, "location": true, "contacts": true,
}

// ParseWebhook decodes a Cloud API delivery into inbound events. Status
// callbacks and unsupported message types yield no events.
func ParseWebhook(body []byte) ([]bus.InboundEvent, error) {
	var wh Webhook
	if err := json.Unmarshal(body, &wh); err != nil {
		return nil, errors.Wrap(err, "decoding webhook")
	}

	var events []bus.InboundEvent
	for _, entry := range wh.Entry {
		for _, change := range entry.Changes {
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, msg := range change.Value.Messages {
				ev, ok := messageEvent(msg)
				if !ok {
					continue
				}
				ev.ProfileName = names[msg.From]
				events = append(events, ev)
			}
		}
	}
	return events, nil
}

func messageEvent(msg WebhookMessage) (bus.InboundEvent, bool) {
	ev := bus.InboundEvent{
		ProviderMessageID: msg.ID,
		From:              msg.From,
		ReceivedAt:        parseTimestamp(msg.Timestamp),
	}

	switch {
	case msg.Type == "text":
		ev.Kind = bus.KindText
		if msg.Text != nil {
			ev.Text = msg.Text.Body
		}
	case msg.Type == "interactive" && msg.Interactive != nil:
		ev.Kind = bus.KindInteractive
		if r := msg.Interactive.ButtonReply; r != nil {
			ev.InteractiveID, ev.InteractiveTitle = r.ID, r.Title
		}
		if r := msg.Interactive.ListReply; r != nil {
			ev.InteractiveID, ev.InteractiveTitle, ev.RowID = r.ID, r.Title, r.RowID
		}
	case msg.Type == "button" && msg.Button != nil:
		ev.Kind = bus.KindInteractive
		ev.InteractiveID, ev.InteractiveTitle = msg.Button.Payload, msg.Button.Text
	case mediaTypes[msg.Type]:
		ev.Kind = bus.KindMedia
		ev.MediaType = msg.Type
		if ref := msg.media(); ref != nil {
			ev.Text = strings.TrimSpace(ref.Caption)
		}
	default:
		return ev, false
	}
	return ev, true
}

func (m WebhookMessage) media() *mediaRef {
	for _, ref := range []*mediaRef{m.Image, m.Audio, m.Voice, m.Video, m.Document, m.Sticker} {
		if ref != nil {
			return ref
		}
	}
	return nil
}

func parseTimestamp(ts string) time.Time {
	n, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || n <= 0 {
		return time.Now()
	}
	return time.Unix(n, 0).UTC()
}

// VerifyChallenge answers the GET subscription handshake. ok is false when
// the mode or token does not match.
func VerifyChallenge(mode, token, challenge, verifyToken string) (string, bool) {
	if mode != "subscribe" || verifyToken == "" || token != verifyToken {
		return "", false
	}
	return challenge, true
}
