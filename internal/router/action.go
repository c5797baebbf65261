package router

import (
	"strings"

	"github.com/dayuer/kaapav-go/internal/session"
)

// Action is a canonical routing decision. The set is closed: adding a value
// means adding a case to every switch over Action in this package.
type Action int

const (
	ActionNone Action = iota
	ActionMainMenu
	ActionJewelleryMenu
	ActionOffersMenu
	ActionOffersNow
	ActionPaymentMenu
	ActionChatMenu
	ActionSocialMenu
	ActionOpenWebsite
	ActionOpenCatalog
	ActionShopNow
	ActionPayUPI
	ActionPayCard
	ActionPayNow
	ActionTrackOrder
	ActionConnectAgent
	ActionOpenFacebook
	ActionOpenInstagram
	ActionMediaAck

	actionCount
)

var actionNames = [actionCount]string{
	ActionNone:          "NONE",
	ActionMainMenu:      "MAIN_MENU",
	ActionJewelleryMenu: "JEWELLERY_MENU",
	ActionOffersMenu:    "OFFERS_MENU",
	ActionOffersNow:     "OFFERS_NOW",
	ActionPaymentMenu:   "PAYMENT_MENU",
	ActionChatMenu:      "CHAT_MENU",
	ActionSocialMenu:    "SOCIAL_MENU",
	ActionOpenWebsite:   "OPEN_WEBSITE",
	ActionOpenCatalog:   "OPEN_CATALOG",
	ActionShopNow:       "SHOP_NOW",
	ActionPayUPI:        "PAY_UPI",
	ActionPayCard:       "PAY_CARD",
	ActionPayNow:        "PAY_NOW",
	ActionTrackOrder:    "TRACK_ORDER",
	ActionConnectAgent:  "CONNECT_AGENT",
	ActionOpenFacebook:  "OPEN_FACEBOOK",
	ActionOpenInstagram: "OPEN_INSTAGRAM",
	ActionMediaAck:      "MEDIA_ACK",
}

func (a Action) String() string {
	if a < 0 || a >= actionCount {
		return "UNKNOWN"
	}
	return actionNames[a]
}

// Valid reports whether a is a routable action.
func (a Action) Valid() bool {
	return a > ActionNone && a < actionCount
}

// ParseAction parses a name such as "OFFERS_MENU" (case-insensitive).
func ParseAction(name string) (Action, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for a := ActionMainMenu; a < actionCount; a++ {
		if actionNames[a] == name {
			return a, true
		}
	}
	return ActionNone, false
}

// Actions lists every routable action.
func Actions() []Action {
	out := make([]Action, 0, actionCount-1)
	for a := ActionMainMenu; a < actionCount; a++ {
		out = append(out, a)
	}
	return out
}

// Menu returns the menu recorded as currentMenu after a dispatches. CTAs
// record their parent menu. ok is false for actions that leave the menu alone.
func (a Action) Menu() (m session.Menu, ok bool) {
	switch a {
	case ActionMainMenu:
		return session.MenuMain, true
	case ActionJewelleryMenu, ActionOpenWebsite, ActionOpenCatalog:
		return session.MenuJewellery, true
	case ActionOffersMenu, ActionOffersNow, ActionShopNow:
		return session.MenuOffers, true
	case ActionPaymentMenu, ActionPayUPI, ActionPayCard, ActionPayNow, ActionTrackOrder:
		return session.MenuPayment, true
	case ActionChatMenu, ActionConnectAgent:
		return session.MenuChat, true
	case ActionSocialMenu, ActionOpenFacebook, ActionOpenInstagram:
		return session.MenuSocial, true
	case ActionMediaAck, ActionNone:
		return "", false
	}
	return "", false
}
