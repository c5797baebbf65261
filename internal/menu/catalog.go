package menu

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Links are the deep links placed into screen text as {name} placeholders.
type Links struct {
	Website           string `yaml:"website"`
	WhatsAppCatalog   string `yaml:"whatsappCatalog"`
	OffersBestsellers string `yaml:"offersBestsellers"`
	UPI               string `yaml:"upi"`
	Card              string `yaml:"card"`
	Razorpay          string `yaml:"razorpay"`
	Shiprocket        string `yaml:"shiprocket"`
	Facebook          string `yaml:"facebook"`
	Instagram         string `yaml:"instagram"`
}

// Screens is one language's full set of replies.
type Screens struct {
	MainMenu      Screen `yaml:"mainMenu"`
	JewelleryMenu Screen `yaml:"jewelleryMenu"`
	OffersMenu    Screen `yaml:"offersMenu"`
	CurrentOffers Screen `yaml:"currentOffers"`
	PaymentMenu   Screen `yaml:"paymentMenu"`
	ChatMenu      Screen `yaml:"chatMenu"`
	SocialMenu    Screen `yaml:"socialMenu"`
	WebsiteCTA    Screen `yaml:"websiteCta"`
	CatalogCTA    Screen `yaml:"catalogCta"`
	ShopNowCTA    Screen `yaml:"shopNowCta"`
	PayUPICTA     Screen `yaml:"payUpiCta"`
	PayCardCTA    Screen `yaml:"payCardCta"`
	PayNowCTA     Screen `yaml:"payNowCta"`
	TrackOrderCTA Screen `yaml:"trackOrderCta"`
	ConnectAgent  Screen `yaml:"connectAgent"`
	FacebookCTA   Screen `yaml:"facebookCta"`
	InstagramCTA  Screen `yaml:"instagramCta"`
	MediaAck      Screen `yaml:"mediaAck"`
	Fallback      Screen `yaml:"fallback"`
}

// fillFrom copies every empty screen from base.
func (s *Screens) fillFrom(base *Screens) {
	pairs := []struct{ dst, src *Screen }{
		{&s.MainMenu, &base.MainMenu},
		{&s.JewelleryMenu, &base.JewelleryMenu},
		{&s.OffersMenu, &base.OffersMenu},
		{&s.CurrentOffers, &base.CurrentOffers},
		{&s.PaymentMenu, &base.PaymentMenu},
		{&s.ChatMenu, &base.ChatMenu},
		{&s.SocialMenu, &base.SocialMenu},
		{&s.WebsiteCTA, &base.WebsiteCTA},
		{&s.CatalogCTA, &base.CatalogCTA},
		{&s.ShopNowCTA, &base.ShopNowCTA},
		{&s.PayUPICTA, &base.PayUPICTA},
		{&s.PayCardCTA, &base.PayCardCTA},
		{&s.PayNowCTA, &base.PayNowCTA},
		{&s.TrackOrderCTA, &base.TrackOrderCTA},
		{&s.ConnectAgent, &base.ConnectAgent},
		{&s.FacebookCTA, &base.FacebookCTA},
		{&s.InstagramCTA, &base.InstagramCTA},
		{&s.MediaAck, &base.MediaAck},
		{&s.Fallback, &base.Fallback},
	}
	for _, p := range pairs {
		if p.dst.IsZero() {
			*p.dst = *p.src
		}
	}
}

// Catalog is every language's screens plus the shared links.
type Catalog struct {
	Links     Links               `yaml:"links"`
	Languages map[string]*Screens `yaml:"languages"`

	expander *strings.Replacer
}

// Base is the language every other language falls back to.
const Base = "en"

// Screens returns the screens for lang. ok is false when lang has no native
// screens and the English set was returned instead.
func (c *Catalog) Screens(lang string) (s *Screens, ok bool) {
	if s, found := c.Languages[strings.ToLower(lang)]; found {
		return s, true
	}
	return c.Languages[Base], false
}

// HasLanguage reports whether lang has native screens.
func (c *Catalog) HasLanguage(lang string) bool {
	_, ok := c.Languages[strings.ToLower(lang)]
	return ok
}

// Expand replaces {link} placeholders in s.
func (c *Catalog) Expand(s string) string {
	if c.expander == nil {
		return c.newExpander().Replace(s)
	}
	return c.expander.Replace(s)
}

func (c *Catalog) newExpander() *strings.Replacer {
	l := c.Links
	return strings.NewReplacer(
		"{website}", l.Website,
		"{whatsappCatalog}", l.WhatsAppCatalog,
		"{offersBestsellers}", l.OffersBestsellers,
		"{upi}", l.UPI,
		"{card}", l.Card,
		"{razorpay}", l.Razorpay,
		"{shiprocket}", l.Shiprocket,
		"{facebook}", l.Facebook,
		"{instagram}", l.Instagram,
	)
}

// Load reads a YAML catalog and layers it over Default. Screens missing from
// a language fall back to the English defaults. An empty path returns Default.
func Load(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading menu catalog %s", path)
	}

	var file struct {
		Links     Links               `yaml:"links"`
		Languages map[string]*Screens `yaml:"languages"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "parsing menu catalog %s", path)
	}

	mergeLinks(&c.Links, file.Links)
	for lang, screens := range file.Languages {
		if screens == nil {
			continue
		}
		lang = strings.ToLower(lang)
		if existing, ok := c.Languages[lang]; ok {
			screens.fillFrom(existing)
		}
		screens.fillFrom(c.Languages[Base])
		c.Languages[lang] = screens
	}
	c.expander = c.newExpander()
	return c, nil
}

func mergeLinks(dst *Links, src Links) {
	set := func(d *string, v string) {
		if v != "" {
			*d = v
		}
	}
	set(&dst.Website, src.Website)
	set(&dst.WhatsAppCatalog, src.WhatsAppCatalog)
	set(&dst.OffersBestsellers, src.OffersBestsellers)
	set(&dst.UPI, src.UPI)
	set(&dst.Card, src.Card)
	set(&dst.Razorpay, src.Razorpay)
	set(&dst.Shiprocket, src.Shiprocket)
	set(&dst.Facebook, src.Facebook)
	set(&dst.Instagram, src.Instagram)
}

// Marshal renders the catalog as YAML; used by the onboard command to seed
// an editable copy.
func (c *Catalog) Marshal() ([]byte, error) {
	return yaml.Marshal(struct {
		Links     Links               `yaml:"links"`
		Languages map[string]*Screens `yaml:"languages"`
	}{c.Links, c.Languages})
}
