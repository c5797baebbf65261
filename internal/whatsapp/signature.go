package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
	twilioclient "github.com/twilio/twilio-go/client"
)

// SignatureHeader carries the Cloud API body signature.
const SignatureHeader = "X-Hub-Signature-256"

// TwilioSignatureHeader carries Twilio's request signature.
const TwilioSignatureHeader = "X-Twilio-Signature"

var (
	ErrMissingSignature = errors.New("missing request signature")
	ErrInvalidSignature = errors.New("invalid request signature")
)

// VerifySignature checks a "sha256=<hex>" header against the HMAC of body.
func VerifySignature(appSecret, header string, body []byte) error {
	if header == "" {
		return ErrMissingSignature
	}
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return ErrInvalidSignature
	}
	if !hmac.Equal([]byte(Sign(appSecret, body)), []byte(strings.ToLower(sig))) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(appSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyTwilioSignature validates a Twilio webhook against the public URL it
// was posted to and its form parameters.
func VerifyTwilioSignature(authToken, url string, params map[string]string, signature string) error {
	if signature == "" {
		return ErrMissingSignature
	}
	validator := twilioclient.NewRequestValidator(authToken)
	if !validator.Validate(url, params, signature) {
		return ErrInvalidSignature
	}
	return nil
}
