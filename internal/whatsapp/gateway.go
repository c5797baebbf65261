package whatsapp

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/dayuer/kaapav-go/internal/config"
	"github.com/dayuer/kaapav-go/internal/menu"
)

// Gateway sends outbound messages.
type Gateway interface {
	SendText(ctx context.Context, to, text string) error
	SendButtons(ctx context.Context, to, body string, buttons []menu.Button, footer string) error
}

var ErrUnknownProvider = errors.New("unknown whatsapp provider")

// NewGateway builds the gateway selected by cfg.Provider.
func NewGateway(cfg config.WhatsAppConfig) (Gateway, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "cloudapi":
		return NewCloudClient(cfg.GraphBaseURL, cfg.GraphVersion, cfg.PhoneNumberID, cfg.AccessToken), nil
	case "twilio":
		return NewTwilioGateway(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom)
	default:
		return nil, errors.Wrapf(ErrUnknownProvider, "%q", cfg.Provider)
	}
}

// WriterGateway prints messages instead of sending them. Used by the
// simulate command.
type WriterGateway struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterGateway writes every outbound message to w.
func NewWriterGateway(w io.Writer) *WriterGateway {
	return &WriterGateway{w: w}
}

func (g *WriterGateway) SendText(_ context.Context, to, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := fmt.Fprintf(g.w, "→ %s\n%s\n\n", to, text)
	return err
}

func (g *WriterGateway) SendButtons(_ context.Context, to, body string, buttons []menu.Button, footer string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var b strings.Builder
	for _, btn := range buttons {
		fmt.Fprintf(&b, "  [%s] %s\n", btn.ID, btn.Title)
	}
	if footer != "" {
		fmt.Fprintf(&b, "  (%s)\n", footer)
	}
	_, err := fmt.Fprintf(g.w, "→ %s\n%s\n%s\n", to, body, b.String())
	return err
}
