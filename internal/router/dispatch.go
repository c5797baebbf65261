package router

import (
	"github.com/dayuer/kaapav-go/internal/menu"
	"github.com/dayuer/kaapav-go/internal/session"
)

// Reply is one logical outbound message. With buttons it goes out as a
// quick-reply message whose body is Text; without, as plain text.
type Reply struct {
	Action   Action
	Text     string
	Buttons  []menu.Button
	Footer   string
	Language string
	// Native is set when the screens were written in Language and need no
	// machine translation.
	Native bool
}

// HasButtons reports whether r is sent as a quick-reply message.
func (r Reply) HasButtons() bool { return len(r.Buttons) > 0 }

// Dispatcher turns actions into replies. It has no side effects.
type Dispatcher struct {
	catalog *menu.Catalog
}

// NewDispatcher creates a dispatcher over catalog, or the built-in catalog if nil.
func NewDispatcher(catalog *menu.Catalog) *Dispatcher {
	if catalog == nil {
		catalog = menu.Default()
	}
	return &Dispatcher{catalog: catalog}
}

// Catalog returns the catalog replies are drawn from.
func (d *Dispatcher) Catalog() *menu.Catalog { return d.catalog }

// Plan returns the reply for a and the session patch to apply once it has
// been delivered. Actions outside the enum plan as the main menu.
func (d *Dispatcher) Plan(a Action, s session.Session) (Reply, session.Patch) {
	if !a.Valid() {
		a = ActionMainMenu
	}
	screens, native := d.catalog.Screens(s.Language)
	reply := d.render(screenFor(screens, a), s.Language, native)
	reply.Action = a

	var patch session.Patch
	if m, ok := a.Menu(); ok {
		patch.CurrentMenu = session.MenuPtr(m)
	}
	return reply, patch
}

// Fallback returns the plain-text notice sent after a failed dispatch.
func (d *Dispatcher) Fallback(language string) Reply {
	screens, native := d.catalog.Screens(language)
	reply := d.render(screens.Fallback, language, native)
	reply.Buttons = nil
	return reply
}

func (d *Dispatcher) render(sc menu.Screen, language string, native bool) Reply {
	buttons := make([]menu.Button, len(sc.Buttons))
	copy(buttons, sc.Buttons)
	return Reply{
		Text:     d.catalog.Expand(sc.Content()),
		Buttons:  buttons,
		Footer:   d.catalog.Expand(sc.Footer),
		Language: language,
		Native:   native,
	}
}

func screenFor(s *menu.Screens, a Action) menu.Screen {
	switch a {
	case ActionMainMenu:
		return s.MainMenu
	case ActionJewelleryMenu:
		return s.JewelleryMenu
	case ActionOffersMenu:
		return s.OffersMenu
	case ActionOffersNow:
		return s.CurrentOffers
	case ActionPaymentMenu:
		return s.PaymentMenu
	case ActionChatMenu:
		return s.ChatMenu
	case ActionSocialMenu:
		return s.SocialMenu
	case ActionOpenWebsite:
		return s.WebsiteCTA
	case ActionOpenCatalog:
		return s.CatalogCTA
	case ActionShopNow:
		return s.ShopNowCTA
	case ActionPayUPI:
		return s.PayUPICTA
	case ActionPayCard:
		return s.PayCardCTA
	case ActionPayNow:
		return s.PayNowCTA
	case ActionTrackOrder:
		return s.TrackOrderCTA
	case ActionConnectAgent:
		return s.ConnectAgent
	case ActionOpenFacebook:
		return s.FacebookCTA
	case ActionOpenInstagram:
		return s.InstagramCTA
	case ActionMediaAck:
		return s.MediaAck
	case ActionNone:
	}
	return s.MainMenu
}
