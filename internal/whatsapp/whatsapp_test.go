package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/dayuer/kaapav-go/internal/bus"
	"github.com/dayuer/kaapav-go/internal/config"
	"github.com/dayuer/kaapav-go/internal/menu"
)

const deliveryJSON = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "15550001111", "phone_number_id": "123"},
        "contacts": [{"wa_id": "919876543210", "profile": {"name": "Asha"}}],
        "messages": [
          {"from": "919876543210", "id": "wamid.text", "timestamp": "1700000000", "type": "text", "text": {"body": "show offers"}},
          {"from": "919876543210", "id": "wamid.btn", "timestamp": "1700000001", "type": "interactive",
           "interactive": {"type": "button_reply", "button_reply": {"id": "offers_more", "title": "Offers 🎉 & More"}}},
          {"from": "919876543210", "id": "wamid.list", "timestamp": "1700000002", "type": "interactive",
           "interactive": {"type": "list_reply", "list_reply": {"id": "track_order", "title": "Track"}}},
          {"from": "919876543210", "id": "wamid.img", "timestamp": "1700000003", "type": "image",
           "image": {"id": "media1", "mime_type": "image/jpeg", "caption": " ring? "}},
          {"from": "919876543210", "id": "wamid.tpl", "timestamp": "1700000004", "type": "button",
           "button": {"payload": "shop_now", "text": "Shop"}},
          {"from": "919876543210", "id": "wamid.unk", "timestamp": "1700000005", "type": "reaction"}
        ]
      }
    }]
  }]
}`

func TestParseWebhook(t *testing.T) {
	events, err := ParseWebhook([]byte(deliveryJSON))
	require.NoError(t, err)
	require.Len(t, events, 5)

	text := events[0]
	assert.Equal(t, bus.KindText, text.Kind)
	assert.Equal(t, "show offers", text.Text)
	assert.Equal(t, "wamid.text", text.ProviderMessageID)
	assert.Equal(t, "Asha", text.ProfileName)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), text.ReceivedAt)

	assert.Equal(t, bus.KindInteractive, events[1].Kind)
	assert.Equal(t, "offers_more", events[1].InteractiveID)
	assert.Equal(t, "Offers 🎉 & More", events[1].InteractiveTitle)

	assert.Equal(t, "track_order", events[2].InteractiveID)
	assert.Equal(t, "Track", events[2].InteractiveTitle)
	assert.Empty(t, events[2].RowID)

	assert.Equal(t, bus.KindMedia, events[3].Kind)
	assert.Equal(t, "image", events[3].MediaType)
	assert.Equal(t, "ring?", events[3].Text)

	assert.Equal(t, "shop_now", events[4].InteractiveID)
}

func TestParseWebhook_StatusOnly(t *testing.T) {
	body := `{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.x","status":"delivered","recipient_id":"919876543210"}]}}]}]}`
	events, err := ParseWebhook([]byte(body))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestParseWebhook_Malformed(t *testing.T) {
	_, err := ParseWebhook([]byte("{not json"))
	assert.Error(t, err)
}

func TestVerifyChallenge(t *testing.T) {
	got, ok := VerifyChallenge("subscribe", "secret", "12345", "secret")
	assert.True(t, ok)
	assert.Equal(t, "12345", got)

	_, ok = VerifyChallenge("subscribe", "wrong", "12345", "secret")
	assert.False(t, ok)
	_, ok = VerifyChallenge("subscribe", "", "12345", "")
	assert.False(t, ok, "an unset verify token never matches")
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"entry":[]}`)
	header := "sha256=" + Sign("app-secret", body)

	assert.NoError(t, VerifySignature("app-secret", header, body))
	assert.ErrorIs(t, VerifySignature("app-secret", "", body), ErrMissingSignature)
	assert.ErrorIs(t, VerifySignature("other", header, body), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("app-secret", Sign("app-secret", body), body), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("app-secret", header, []byte(`{}`)), ErrInvalidSignature)
}

func TestVerifyTwilioSignature_Missing(t *testing.T) {
	err := VerifyTwilioSignature("token", "https://example.com/webhooks/twilio", map[string]string{}, "")
	assert.ErrorIs(t, err, ErrMissingSignature)
	err = VerifyTwilioSignature("token", "https://example.com/webhooks/twilio", map[string]string{"Body": "hi"}, "bogus")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestCloudClient_SendButtons(t *testing.T) {
	var got map[string]any
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Write([]byte(`{"messages":[{"id":"wamid.out"}]}`))
	}))
	defer srv.Close()

	c := NewCloudClient(srv.URL, "v19.0", "123", "tok")
	err := c.SendButtons(context.Background(), "919876543210", "Pick one", []menu.Button{
		{ID: "offers_more", Title: "Offers"},
		{ID: "back_main_menu", Title: "Back"},
	}, "KAAPAV")
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, "/v19.0/123/messages", path)
	assert.Equal(t, "whatsapp", got["messaging_product"])
	assert.Equal(t, "interactive", got["type"])

	in := got["interactive"].(map[string]any)
	assert.Equal(t, "button", in["type"])
	assert.Equal(t, "Pick one", in["body"].(map[string]any)["text"])
	assert.Equal(t, "KAAPAV", in["footer"].(map[string]any)["text"])
	buttons := in["action"].(map[string]any)["buttons"].([]any)
	require.Len(t, buttons, 2)
	first := buttons[0].(map[string]any)
	assert.Equal(t, "reply", first["type"])
	assert.Equal(t, "offers_more", first["reply"].(map[string]any)["id"])
}

func TestCloudClient_SendTextOmitsInteractive(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"messages":[{"id":"wamid.out"}]}`))
	}))
	defer srv.Close()

	c := NewCloudClient(srv.URL, "", "123", "tok")
	require.NoError(t, c.SendText(context.Background(), "919876543210", "hello"))
	assert.Equal(t, "text", got["type"])
	assert.Equal(t, "hello", got["text"].(map[string]any)["body"])
	assert.NotContains(t, got, "interactive")
}

func TestCloudClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid parameter","code":100}}`))
	}))
	defer srv.Close()

	err := NewCloudClient(srv.URL, "", "123", "tok").SendText(context.Background(), "919876543210", "hi")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, int64(100), apiErr.Code)
	assert.Equal(t, "Invalid parameter", apiErr.Message)
}

func TestCloudClient_ContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := NewCloudClient(srv.URL, "", "123", "tok").SendText(ctx, "919876543210", "hi")
	assert.Error(t, err)
}

func TestCloudClient_MissingCredentials(t *testing.T) {
	err := NewCloudClient("", "", "", "").SendText(context.Background(), "919876543210", "hi")
	assert.Error(t, err)
}

type fakeTwilio struct {
	mu    sync.Mutex
	sent  []*twilioApi.CreateMessageParams
	err   error
	block chan struct{}
}

func (f *fakeTwilio) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, params)
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, f.err
}

func TestTwilioGateway_SendButtonsRendersList(t *testing.T) {
	api := &fakeTwilio{}
	g := NewTwilioGatewayWithAPI(api, "+14155238886")

	err := g.SendButtons(context.Background(), "919876543210", "Choose", []menu.Button{
		{ID: "pay_via_upi", Title: "Pay via UPI"},
		{ID: "track_order", Title: "Track Order"},
	}, "")
	require.NoError(t, err)

	require.Len(t, api.sent, 1)
	p := api.sent[0]
	assert.Equal(t, "whatsapp:+14155238886", *p.From)
	assert.Equal(t, "whatsapp:+919876543210", *p.To)
	assert.Contains(t, *p.Body, "1. Pay via UPI")
	assert.Contains(t, *p.Body, "2. Track Order")
}

func TestTwilioGateway_NumericReplyMapsToButton(t *testing.T) {
	g := NewTwilioGatewayWithAPI(&fakeTwilio{}, "whatsapp:+14155238886")
	require.NoError(t, g.SendButtons(context.Background(), "919876543210", "Choose", []menu.Button{
		{ID: "pay_via_upi", Title: "Pay via UPI"},
		{ID: "track_order", Title: "Track Order"},
	}, ""))

	ev, ok := g.ParseInbound(map[string]string{
		"From":       "whatsapp:+919876543210",
		"Body":       " 2 ",
		"MessageSid": "SM1",
	})
	require.True(t, ok)
	assert.Equal(t, bus.KindInteractive, ev.Kind)
	assert.Equal(t, "track_order", ev.InteractiveID)
	assert.Equal(t, "+919876543210", ev.From)

	ev, _ = g.ParseInbound(map[string]string{"From": "whatsapp:+919876543210", "Body": "7"})
	assert.Equal(t, bus.KindText, ev.Kind, "out-of-range numbers stay text")
}

func TestTwilioGateway_ParseInboundKinds(t *testing.T) {
	g := NewTwilioGatewayWithAPI(&fakeTwilio{}, "whatsapp:+14155238886")

	ev, ok := g.ParseInbound(map[string]string{"From": "whatsapp:+919876543210", "NumMedia": "1", "MediaContentType0": "image/png"})
	require.True(t, ok)
	assert.Equal(t, bus.KindMedia, ev.Kind)
	assert.Equal(t, "image", ev.MediaType)

	ev, _ = g.ParseInbound(map[string]string{"From": "whatsapp:+919876543210", "ButtonPayload": "shop_now", "ButtonText": "Shop"})
	assert.Equal(t, bus.KindInteractive, ev.Kind)
	assert.Equal(t, "shop_now", ev.InteractiveID)

	_, ok = g.ParseInbound(map[string]string{"Body": "hi"})
	assert.False(t, ok)
}

func TestTwilioGateway_ErrorsAndTimeout(t *testing.T) {
	g := NewTwilioGatewayWithAPI(&fakeTwilio{err: errors.New("20003 auth")}, "+1")
	assert.Error(t, g.SendText(context.Background(), "919876543210", "hi"))

	blocked := &fakeTwilio{block: make(chan struct{})}
	defer close(blocked.block)
	g = NewTwilioGatewayWithAPI(blocked, "+1")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, g.SendText(ctx, "919876543210", "hi"), context.DeadlineExceeded)
}

func TestRenderButtons(t *testing.T) {
	out := RenderButtons("Body", []menu.Button{{ID: "a", Title: "First"}}, "foot")
	assert.Equal(t, "Body\n\n1. First\n\nReply with a number.\n_foot_", out)
	assert.Equal(t, "Just text", RenderButtons(" Just text ", nil, ""))
}

func TestNewGateway(t *testing.T) {
	gw, err := NewGateway(config.WhatsAppConfig{Provider: "cloudapi", PhoneNumberID: "1", AccessToken: "t"})
	require.NoError(t, err)
	assert.IsType(t, &CloudClient{}, gw)

	_, err = NewGateway(config.WhatsAppConfig{Provider: "twilio"})
	assert.Error(t, err)

	_, err = NewGateway(config.WhatsAppConfig{Provider: "carrier-pigeon"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestWriterGateway(t *testing.T) {
	var buf bytes.Buffer
	g := NewWriterGateway(&buf)
	require.NoError(t, g.SendButtons(context.Background(), "91", "Body", []menu.Button{{ID: "x", Title: "X"}}, ""))
	assert.Contains(t, buf.String(), "[x] X")
}
