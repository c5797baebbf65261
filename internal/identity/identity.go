// Package identity canonicalizes raw WhatsApp sender identifiers into stable
// digits-only user ids.
package identity

import (
	"strings"

	"github.com/pkg/errors"
)

// DefaultCountryCode is prefixed onto bare 10-digit local numbers.
const DefaultCountryCode = "91"

const (
	minDigits   = 11
	maxDigits   = 15 // E.164
	localDigits = 10
)

// ErrInvalidIdentity is returned when an identifier cannot be reduced to a
// plausible phone number.
var ErrInvalidIdentity = errors.New("invalid sender identity")

// Normalizer turns provider identifiers ("whatsapp:+91 98765-43210",
// "0919876543210", "9876543210") into canonical country-prefixed digits.
type Normalizer struct {
	countryCode string
}

// NewNormalizer creates a Normalizer for the given national code.
func NewNormalizer(countryCode string) *Normalizer {
	cc := digitsOnly(countryCode)
	if cc == "" {
		cc = DefaultCountryCode
	}
	return &Normalizer{countryCode: cc}
}

// Normalize returns the canonical id or ErrInvalidIdentity.
func (n *Normalizer) Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[i+1:] // whatsapp:, tel:
	}
	d := digitsOnly(s)

	switch {
	case strings.HasPrefix(d, "00"):
		d = d[2:]
	case len(d) > 0 && d[0] == '0' && (len(d)-1 == localDigits || len(d)-1 >= minDigits):
		d = d[1:] // trunk prefix
	}
	if len(d) == localDigits {
		d = n.countryCode + d
	}

	if len(d) < minDigits || len(d) > maxDigits || d[0] == '0' {
		return "", errors.Wrapf(ErrInvalidIdentity, "%q", raw)
	}
	return d, nil
}

// Normalize uses the default country code.
func Normalize(raw string) (string, error) {
	return NewNormalizer(DefaultCountryCode).Normalize(raw)
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
