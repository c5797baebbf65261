// Package forward relays inbound messages to CRM and automation webhooks.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dayuer/kaapav-go/internal/bus"
)

// Payload is the JSON body posted to each target.
type Payload struct {
	Source            string    `json:"source"`
	UserID            string    `json:"userId"`
	ProfileName       string    `json:"profileName,omitempty"`
	Kind              string    `json:"kind,omitempty"`
	Text              string    `json:"text"`
	ProviderMessageID string    `json:"providerMessageId,omitempty"`
	At                time.Time `json:"at"`
}

// Forwarder posts payloads to a fixed set of URLs.
type Forwarder struct {
	targets []string
	client  *http.Client
	timeout time.Duration
	log     *logrus.Entry
}

// New creates a forwarder. Empty URLs are skipped; nil is returned when
// there is nothing to forward to.
func New(timeout time.Duration, urls ...string) *Forwarder {
	var targets []string
	for _, u := range urls {
		if u != "" {
			targets = append(targets, u)
		}
	}
	if len(targets) == 0 {
		return nil
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Forwarder{
		targets: targets,
		client:  &http.Client{},
		timeout: timeout,
		log:     logrus.WithField("component", "forward"),
	}
}

// Attach forwards every incoming_message event on b. Each target is posted
// on its own goroutine so a slow webhook never stalls the bus.
func (f *Forwarder) Attach(b *bus.MessageBus) {
	b.Subscribe(bus.EventIncomingMessage, func(ev bus.Event) {
		p := payloadFrom(ev)
		for _, url := range f.targets {
			go func(url string) {
				if err := f.Post(context.Background(), url, p); err != nil {
					f.log.WithError(err).WithField("target", url).Warn("forward failed")
				}
			}(url)
		}
	})
}

// Post sends p to url under the forwarder's timeout.
func (f *Forwarder) Post(ctx context.Context, url string, p Payload) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	body, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "encoding payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "posting")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return errors.Errorf("target returned %d", resp.StatusCode)
	}
	return nil
}

// Targets returns the configured URLs.
func (f *Forwarder) Targets() []string { return append([]string(nil), f.targets...) }

func payloadFrom(ev bus.Event) Payload {
	str := func(k string) string {
		s, _ := ev.Payload[k].(string)
		return s
	}
	return Payload{
		Source:            "whatsapp",
		UserID:            ev.UserID,
		ProfileName:       str("profileName"),
		Kind:              str("kind"),
		Text:              str("text"),
		ProviderMessageID: str("providerMessageId"),
		At:                ev.At,
	}
}
