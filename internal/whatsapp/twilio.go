package whatsapp

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/dayuer/kaapav-go/internal/bus"
	"github.com/dayuer/kaapav-go/internal/menu"
	"github.com/dayuer/kaapav-go/internal/utils"
)

const twilioPrefix = "whatsapp:"

// MessageCreator is the slice of the Twilio REST API this package uses.
type MessageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioGateway sends through Twilio's WhatsApp API. Twilio sessions have
// no reply buttons, so buttons are rendered as a numbered list and a numeric
// reply is mapped back to the button id.
type TwilioGateway struct {
	api     MessageCreator
	from    string
	pending *cache.Cache // user id → []menu.Button last offered
	log     *logrus.Entry
}

// NewTwilioGateway creates a gateway from account credentials.
func NewTwilioGateway(accountSID, authToken, from string) (*TwilioGateway, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, errors.New("missing Twilio credentials")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return NewTwilioGatewayWithAPI(client.Api, from), nil
}

// NewTwilioGatewayWithAPI creates a gateway over an existing API client.
func NewTwilioGatewayWithAPI(api MessageCreator, from string) *TwilioGateway {
	if !strings.HasPrefix(from, twilioPrefix) {
		from = twilioPrefix + from
	}
	return &TwilioGateway{
		api:     api,
		from:    from,
		pending: cache.New(30*time.Minute, 10*time.Minute),
		log:     logrus.WithField("component", "twilio"),
	}
}

// SendText sends a plain message.
func (g *TwilioGateway) SendText(ctx context.Context, to, text string) error {
	g.pending.Delete(to)
	return g.create(ctx, to, text)
}

// SendButtons sends body followed by a numbered option list.
func (g *TwilioGateway) SendButtons(ctx context.Context, to, body string, buttons []menu.Button, footer string) error {
	if err := g.create(ctx, to, RenderButtons(body, buttons, footer)); err != nil {
		return err
	}
	g.pending.SetDefault(to, append([]menu.Button(nil), buttons...))
	return nil
}

func (g *TwilioGateway) create(ctx context.Context, to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(g.from)
	params.SetTo(twilioPrefix + "+" + strings.TrimPrefix(to, "+"))
	params.SetBody(body)

	type result struct {
		msg *twilioApi.ApiV2010Message
		err error
	}
	// The REST client takes no context; abandon the wait when ctx ends.
	done := make(chan result, 1)
	go func() {
		msg, err := g.api.CreateMessage(params)
		done <- result{msg, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return errors.Wrap(r.err, "twilio create message")
		}
		if r.msg != nil && r.msg.Sid != nil {
			g.log.WithFields(logrus.Fields{"to": utils.MaskPhone(to), "sid": *r.msg.Sid}).Debug("message sent")
		}
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "twilio create message")
	}
}

// RenderButtons formats a quick-reply message as plain text.
func RenderButtons(body string, buttons []menu.Button, footer string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(body))
	if len(buttons) > 0 {
		b.WriteString("\n")
		for i, btn := range buttons {
			b.WriteString("\n")
			b.WriteString(strconv.Itoa(i + 1))
			b.WriteString(". ")
			b.WriteString(btn.Title)
		}
		b.WriteString("\n\nReply with a number.")
	}
	if footer = strings.TrimSpace(footer); footer != "" {
		b.WriteString("\n_")
		b.WriteString(footer)
		b.WriteString("_")
	}
	return b.String()
}

// ParseInbound turns a Twilio webhook form into an event. A bare number
// that picks one of the options last offered to the sender becomes an
// interactive reply.
func (g *TwilioGateway) ParseInbound(form map[string]string) (bus.InboundEvent, bool) {
	from := strings.TrimPrefix(form["From"], twilioPrefix)
	if from == "" {
		return bus.InboundEvent{}, false
	}
	ev := bus.InboundEvent{
		ProviderMessageID: form["MessageSid"],
		From:              from,
		ProfileName:       form["ProfileName"],
		Kind:              bus.KindText,
		Text:              form["Body"],
		ReceivedAt:        time.Now(),
	}

	switch {
	case form["ButtonPayload"] != "":
		ev.Kind = bus.KindInteractive
		ev.InteractiveID = form["ButtonPayload"]
		ev.InteractiveTitle = form["ButtonText"]
		ev.Text = ""
	case form["NumMedia"] != "" && form["NumMedia"] != "0":
		ev.Kind = bus.KindMedia
		ev.MediaType = mediaKind(form["MediaContentType0"])
	default:
		if btn, ok := g.pickOption(from, ev.Text); ok {
			ev.Kind = bus.KindInteractive
			ev.InteractiveID, ev.InteractiveTitle = btn.ID, btn.Title
			ev.Text = ""
		}
	}
	return ev, true
}

func (g *TwilioGateway) pickOption(from, text string) (menu.Button, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 {
		return menu.Button{}, false
	}
	// Options were stored under the normalized id; the sender arrives as +E164.
	for _, key := range []string{from, strings.TrimPrefix(from, "+")} {
		if v, ok := g.pending.Get(key); ok {
			buttons := v.([]menu.Button)
			if n <= len(buttons) {
				return buttons[n-1], true
			}
		}
	}
	return menu.Button{}, false
}

func mediaKind(contentType string) string {
	if kind, _, ok := strings.Cut(contentType, "/"); ok && kind != "" {
		if kind == "application" {
			return "document"
		}
		return kind
	}
	return "media"
}
