package router

import (
	"regexp"
	"strings"

	"github.com/dayuer/kaapav-go/internal/session"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`(?:\+?\d{1,3})?[ -]?\d{10,13}`)
	namePattern  = regexp.MustCompile(`(?i)\bmy name is\s+([\p{L}][\p{L}.' ]*)`)
)

const maxNameWords = 3

// ExtractLead pulls contact details out of free text. Fields that are not
// present stay empty so the store's set-once merge ignores them.
func ExtractLead(text string) session.Lead {
	var lead session.Lead
	if m := emailPattern.FindString(text); m != "" {
		lead.Email = strings.ToLower(m)
	}
	// Strip the email first so its digits are not read as a phone number.
	rest := emailPattern.ReplaceAllString(text, " ")
	if m := phonePattern.FindString(rest); m != "" {
		lead.Phone = digitsOnly(m)
	}
	if m := namePattern.FindStringSubmatch(rest); len(m) == 2 {
		words := strings.Fields(m[1])
		if len(words) > maxNameWords {
			words = words[:maxNameWords]
		}
		lead.Name = strings.Join(words, " ")
	}
	return lead
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
