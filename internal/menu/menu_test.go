package menu

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateTitle(t *testing.T) {
	assert.Equal(t, "Browse Jewellery 💎", TruncateTitle("Browse Jewellery 💎"))
	long := "Super Extra Long Button Title"
	got := TruncateTitle(long)
	assert.Equal(t, MaxTitleRunes, utf8.RuneCountInString(got))
	assert.Equal(t, "Super Extra Long But", got)
}

func TestClamp(t *testing.T) {
	in := []Button{
		{ID: "a", Title: "This title is definitely too long"},
		{ID: "", Title: "no id"},
		{ID: "b", Title: ""},
		{ID: "c", Title: "C"},
		{ID: "d", Title: "D"},
	}
	out := Clamp(in)
	require.Len(t, out, MaxButtons)
	assert.Equal(t, "This title is defini", out[0].Title)
	assert.Equal(t, Button{ID: "b", Title: "b"}, out[1])
	assert.Equal(t, "c", out[2].ID)
}

func TestDefault_AllTitlesWithinLimits(t *testing.T) {
	c := Default()
	for lang, s := range c.Languages {
		for name, sc := range allScreens(s) {
			assert.LessOrEqual(t, len(sc.Buttons), MaxButtons, "%s/%s", lang, name)
			for _, b := range sc.Buttons {
				assert.LessOrEqual(t, utf8.RuneCountInString(b.Title), MaxTitleRunes, "%s/%s/%s", lang, name, b.ID)
			}
			assert.False(t, sc.IsZero(), "%s/%s empty", lang, name)
		}
	}
}

func TestCatalog_ScreensFallback(t *testing.T) {
	c := Default()
	hi, ok := c.Screens("HI")
	assert.True(t, ok)
	assert.Contains(t, hi.MainMenu.Text, "स्वागत")

	ta, ok := c.Screens("ta")
	assert.False(t, ok)
	assert.Equal(t, c.Languages["en"], ta)
}

func TestCatalog_Expand(t *testing.T) {
	c := Default()
	assert.Equal(t, "Track: https://www.shiprocket.in/shipment-tracking/", c.Expand("Track: {shiprocket}"))
	assert.Equal(t, "no placeholders", c.Expand("no placeholders"))
}

func TestScreen_Content(t *testing.T) {
	assert.Equal(t, "a\n\nb", Screen{Text: "a", Body: "b"}.Content())
	assert.Equal(t, "b", Screen{Body: " b "}.Content())
}

func TestLoad_OverridesAndFillsGaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menus.yaml")
	content := `
links:
  shiprocket: https://track.example.com/
languages:
  en:
    mainMenu:
      text: "Hello from the test"
      buttons:
        - id: offers_more
          title: Offers
  ta:
    fallback:
      text: "மன்னிக்கவும்"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	c, err := Load(path)
	require.NoError(t, err)

	en, _ := c.Screens("en")
	assert.Equal(t, "Hello from the test", en.MainMenu.Text)
	assert.Len(t, en.MainMenu.Buttons, 1)
	assert.Contains(t, en.TrackOrderCTA.Text, "{shiprocket}", "untouched screens keep defaults")
	assert.True(t, strings.HasPrefix(c.Expand(en.TrackOrderCTA.Text), "📦 Track your order:\nhttps://track.example.com/"))
	assert.Equal(t, "https://www.kaapav.com", c.Links.Website)

	ta, ok := c.Screens("ta")
	require.True(t, ok)
	assert.Equal(t, "மன்னிக்கவும்", ta.Fallback.Text)
	assert.NotEmpty(t, ta.OffersMenu.Buttons, "missing screens fall back to English")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("languages: [oops"), 0644))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestCatalog_MarshalLoadable(t *testing.T) {
	data, err := Default().Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "menus.yaml")
	require.NoError(t, os.WriteFile(path, data, 0644))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Languages["hi"].MainMenu, c.Languages["hi"].MainMenu)
}

func allScreens(s *Screens) map[string]Screen {
	return map[string]Screen{
		"mainMenu":      s.MainMenu,
		"jewelleryMenu": s.JewelleryMenu,
		"offersMenu":    s.OffersMenu,
		"currentOffers": s.CurrentOffers,
		"paymentMenu":   s.PaymentMenu,
		"chatMenu":      s.ChatMenu,
		"socialMenu":    s.SocialMenu,
		"websiteCta":    s.WebsiteCTA,
		"catalogCta":    s.CatalogCTA,
		"shopNowCta":    s.ShopNowCTA,
		"payUpiCta":     s.PayUPICTA,
		"payCardCta":    s.PayCardCTA,
		"payNowCta":     s.PayNowCTA,
		"trackOrderCta": s.TrackOrderCTA,
		"connectAgent":  s.ConnectAgent,
		"facebookCta":   s.FacebookCTA,
		"instagramCta":  s.InstagramCTA,
		"mediaAck":      s.MediaAck,
		"fallback":      s.Fallback,
	}
}
