package router

import (
	"regexp"
	"strings"

	"github.com/dayuer/kaapav-go/internal/bus"
)

// idTable maps normalized interactive ids to actions.
var idTable = map[string]Action{
	"main_menu":            ActionMainMenu,
	"back_main_menu":       ActionMainMenu,
	"back_main":            ActionMainMenu,
	"jewellery_categories": ActionJewelleryMenu,
	"offers_more":          ActionOffersMenu,
	"back_offers":          ActionOffersMenu,
	"back_offers_menu":     ActionOffersMenu,
	"current_offers":       ActionOffersNow,
	"shop_now":             ActionShopNow,
	"payment_orders":       ActionPaymentMenu,
	"pay_via_upi":          ActionPayUPI,
	"pay_via_card":         ActionPayCard,
	"pay_now":              ActionPayNow,
	"proceed_payment":      ActionPayNow,
	"track_order":          ActionTrackOrder,
	"chat_with_us":         ActionChatMenu,
	"connect_agent":        ActionConnectAgent,
	"open_website_browse":  ActionOpenWebsite,
	"open_wa_catalog":      ActionOpenCatalog,
	"social_menu":          ActionSocialMenu,
	"open_facebook":        ActionOpenFacebook,
	"open_instagram":       ActionOpenInstagram,
}

type keywordRule struct {
	re     *regexp.Regexp
	action Action
}

// keywordRules are tried in order; the first match wins. Specific intents
// come before the greeting catch-all so "show offers menu" is an offer.
var keywordRules = []keywordRule{
	{regexp.MustCompile(`(?i)\b(jewell?ery|browse|catalog(ue)?)\b`), ActionJewelleryMenu},
	{regexp.MustCompile(`(?i)\b(offers?|discounts?|deals?|sale)\b`), ActionOffersMenu},
	{regexp.MustCompile(`(?i)\b(pay(ment)?|razorpay|upi|card|netbanking)\b`), ActionPaymentMenu},
	{regexp.MustCompile(`(?i)\b(track(ing)?|order\s*status|where.*order)\b`), ActionTrackOrder},
	{regexp.MustCompile(`(?i)\b(instagram|insta|facebook|fb|social)\b`), ActionSocialMenu},
	{regexp.MustCompile(`(?i)\b(chat|help|support|agent)\b`), ActionChatMenu},
	{regexp.MustCompile(`(?i)\b(back|main menu|menu|start|hi|hello|hey|namaste)\b`), ActionMainMenu},
}

var nonIDChars = regexp.MustCompile(`[^a-z0-9_]+`)

// NormalizeID lowercases an interactive id and strips everything outside [a-z0-9_].
func NormalizeID(id string) string {
	return nonIDChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(id)), "")
}

// ResolveInteractive maps a button/list reply to an action. The first
// non-empty of id, title, rowID is looked up.
func ResolveInteractive(id, title, rowID string) (Action, bool) {
	for _, candidate := range []string{id, title, rowID} {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		a, ok := idTable[NormalizeID(candidate)]
		return a, ok
	}
	return ActionNone, false
}

// ResolveText runs text through the keyword rules.
func ResolveText(text string) (Action, bool) {
	for _, r := range keywordRules {
		if r.re.MatchString(text) {
			return r.action, true
		}
	}
	return ActionNone, false
}

// IsNoop reports whether ev carries nothing to route: blank text, or an
// interactive reply with no id, title or row id.
func IsNoop(ev bus.InboundEvent) bool {
	switch ev.Kind {
	case bus.KindText:
		return strings.TrimSpace(ev.Text) == ""
	case bus.KindInteractive:
		return strings.TrimSpace(ev.InteractiveID) == "" &&
			strings.TrimSpace(ev.InteractiveTitle) == "" &&
			strings.TrimSpace(ev.RowID) == ""
	case bus.KindMedia:
		return false
	}
	return true
}

// Resolve picks the action for a non-noop event. routedText is the text
// after translation into the working language. A first contact always
// resolves to the main menu, as does anything unmatched.
func Resolve(ev bus.InboundEvent, routedText string, firstContact bool) Action {
	if firstContact {
		return ActionMainMenu
	}
	switch ev.Kind {
	case bus.KindMedia:
		return ActionMediaAck
	case bus.KindInteractive:
		if a, ok := ResolveInteractive(ev.InteractiveID, ev.InteractiveTitle, ev.RowID); ok {
			return a
		}
	case bus.KindText:
		if a, ok := ResolveText(routedText); ok {
			return a
		}
		// The original wording may carry the keyword when translation mangled it.
		if routedText != ev.Text {
			if a, ok := ResolveText(ev.Text); ok {
				return a
			}
		}
	}
	return ActionMainMenu
}
