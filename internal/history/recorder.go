package history

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dayuer/kaapav-go/internal/bus"
)

// Attach logs incoming_message and outgoing_message events from b into l.
func Attach(b *bus.MessageBus, l Log) {
	log := logrus.WithField("component", "history")
	write := func(ev bus.Event, dir Direction) {
		r := Record{
			UserID:    ev.UserID,
			Direction: dir,
			Text:      stringField(ev.Payload, "text"),
			Kind:      stringField(ev.Payload, "kind"),
			Action:    stringField(ev.Payload, "action"),
			CreatedAt: ev.At,
		}
		if id := stringField(ev.Payload, "providerMessageId"); id != "" {
			r.ProviderMessageID = &id
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.Append(ctx, r); err != nil {
			log.WithError(err).Warn("append failed")
		}
	}
	b.Subscribe(bus.EventIncomingMessage, func(ev bus.Event) { write(ev, Inbound) })
	b.Subscribe(bus.EventOutgoingMessage, func(ev bus.Event) { write(ev, Outbound) })
}

func stringField(p map[string]any, key string) string {
	s, _ := p[key].(string)
	return s
}
