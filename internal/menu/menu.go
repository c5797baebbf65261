// Package menu holds the reply catalog: localized menu screens, deep links,
// and the provider limits every outbound button list must respect.
package menu

import (
	"strings"

	"github.com/dayuer/kaapav-go/internal/utils"
)

// WhatsApp quick-reply limits.
const (
	MaxButtons    = 3
	MaxTitleRunes = 20
)

// Button is one quick-reply button.
type Button struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
}

// Screen is the content for one reply. Text is sent ahead of Body; when
// Buttons is empty the two are sent as a single plain text message.
type Screen struct {
	Text    string   `yaml:"text,omitempty"`
	Body    string   `yaml:"body,omitempty"`
	Buttons []Button `yaml:"buttons,omitempty"`
	Footer  string   `yaml:"footer,omitempty"`
}

// IsZero reports whether the screen has no content.
func (s Screen) IsZero() bool {
	return s.Text == "" && s.Body == "" && len(s.Buttons) == 0 && s.Footer == ""
}

// Content joins Text and Body into one message body.
func (s Screen) Content() string {
	var parts []string
	for _, p := range []string{s.Text, s.Body} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}

// TruncateTitle cuts a button title to MaxTitleRunes characters.
func TruncateTitle(title string) string {
	return utils.TruncateRunes(strings.TrimSpace(title), MaxTitleRunes)
}

// Clamp returns at most MaxButtons buttons with titles truncated.
// Buttons without an id are dropped.
func Clamp(buttons []Button) []Button {
	out := make([]Button, 0, MaxButtons)
	for _, b := range buttons {
		if len(out) == MaxButtons {
			break
		}
		if strings.TrimSpace(b.ID) == "" {
			continue
		}
		title := TruncateTitle(b.Title)
		if title == "" {
			title = TruncateTitle(b.ID)
		}
		out = append(out, Button{ID: b.ID, Title: title})
	}
	return out
}
