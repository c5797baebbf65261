package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayuer/kaapav-go/internal/bus"
	"github.com/dayuer/kaapav-go/internal/identity"
	"github.com/dayuer/kaapav-go/internal/lane"
	"github.com/dayuer/kaapav-go/internal/menu"
	"github.com/dayuer/kaapav-go/internal/ratelimit"
	"github.com/dayuer/kaapav-go/internal/session"
	"github.com/dayuer/kaapav-go/internal/translate"
	"github.com/dayuer/kaapav-go/internal/whatsapp"
)

const testUser = "919876543210"

type sent struct {
	To      string
	Body    string
	Buttons []menu.Button
}

type fakeGateway struct {
	mu       sync.Mutex
	calls    []sent
	failures int // fail this many calls before succeeding; -1 fails forever
	delay    func(body string) time.Duration
}

func (g *fakeGateway) SendText(ctx context.Context, to, text string) error {
	return g.send(ctx, sent{To: to, Body: text})
}

func (g *fakeGateway) SendButtons(ctx context.Context, to, body string, buttons []menu.Button, _ string) error {
	return g.send(ctx, sent{To: to, Body: body, Buttons: buttons})
}

func (g *fakeGateway) send(ctx context.Context, s sent) error {
	if g.delay != nil {
		time.Sleep(g.delay(s.Body))
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, s)
	if g.failures != 0 {
		if g.failures > 0 {
			g.failures--
		}
		return errors.New("gateway unavailable")
	}
	return ctx.Err()
}

func (g *fakeGateway) sent() []sent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sent(nil), g.calls...)
}

type fakeSink struct {
	mu     sync.Mutex
	events []bus.Event
}

func (s *fakeSink) Record(name, userID string, payload map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, bus.Event{Name: name, UserID: userID, Payload: payload})
}

func (s *fakeSink) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Name == name {
			n++
		}
	}
	return n
}

type countingStore struct {
	*session.MemoryStore
	mu      sync.Mutex
	patches int
}

func (c *countingStore) Patch(ctx context.Context, userID string, p session.Patch) (session.Session, error) {
	c.mu.Lock()
	c.patches++
	c.mu.Unlock()
	return c.MemoryStore.Patch(ctx, userID, p)
}

func (c *countingStore) patchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.patches
}

type fakeLanguage struct {
	inbound map[string]translate.Result
}

func (fakeLanguage) WorkingLanguage() string { return "en" }

func (f fakeLanguage) DetectAndTranslateToWorking(_ context.Context, text string) translate.Result {
	if res, ok := f.inbound[text]; ok {
		return res
	}
	return translate.Result{Text: text, Language: "en"}
}

func (fakeLanguage) TranslateFromWorking(_ context.Context, text, target string) string {
	return "[" + target + "] " + text
}

type harness struct {
	router  *Router
	gateway *fakeGateway
	sink    *fakeSink
	store   *countingStore
}

func newHarness(t *testing.T, mutate ...func(*Config)) *harness {
	t.Helper()
	h := &harness{
		gateway: &fakeGateway{},
		sink:    &fakeSink{},
		store:   &countingStore{MemoryStore: session.NewMemoryStore("en")},
	}
	cfg := Config{
		Store:       h.store,
		Gateway:     h.gateway,
		Sink:        h.sink,
		Limiter:     ratelimit.New(ratelimit.Config{Interval: time.Nanosecond}),
		SendTimeout: time.Second,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	r, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = r.Drain(ctx)
	})
	h.router = r
	return h
}

// returning marks the user as already greeted.
func (h *harness) returning(t *testing.T, userID string, menuState session.Menu) {
	t.Helper()
	_, err := h.store.MemoryStore.Patch(context.Background(), userID, session.Patch{
		InteractionDelta: 1,
		CurrentMenu:      session.MenuPtr(menuState),
	})
	require.NoError(t, err)
}

func (h *harness) session(t *testing.T, userID string) session.Session {
	t.Helper()
	s, err := h.store.Get(context.Background(), userID)
	require.NoError(t, err)
	return s
}

func textEvent(id, text string) bus.InboundEvent {
	return bus.InboundEvent{ProviderMessageID: id, From: testUser, Kind: bus.KindText, Text: text}
}

func buttonEvent(id, buttonID string) bus.InboundEvent {
	return bus.InboundEvent{ProviderMessageID: id, From: testUser, Kind: bus.KindInteractive, InteractiveID: buttonID}
}

func expectedBody(a Action, language string) string {
	reply, _ := NewDispatcher(nil).Plan(a, session.New(testUser, language, time.Now()))
	return reply.Text
}

// --- Resolver ---

func TestResolveInteractive_IgnoresCaseAndPunctuation(t *testing.T) {
	for id, want := range idTable {
		for _, variant := range []string{id, strings.ToUpper(id), " " + id + "!! ", "#" + strings.ToUpper(id) + "."} {
			got, ok := ResolveInteractive(variant, "", "")
			require.True(t, ok, variant)
			assert.Equal(t, want, got, variant)
		}
	}
}

func TestResolveInteractive_FallsBackToTitleThenRowID(t *testing.T) {
	a, ok := ResolveInteractive("", "Pay_Now", "")
	require.True(t, ok)
	assert.Equal(t, ActionPayNow, a)

	a, ok = ResolveInteractive("  ", "", "track_order")
	require.True(t, ok)
	assert.Equal(t, ActionTrackOrder, a)

	_, ok = ResolveInteractive("no_such_button", "", "track_order")
	assert.False(t, ok, "the first non-empty field decides")
}

func TestResolveText(t *testing.T) {
	tests := []struct {
		text string
		want Action
	}{
		{"show me the offer menu", ActionOffersMenu},
		{"browse menu please", ActionJewelleryMenu},
		{"Any DISCOUNTS today?", ActionOffersMenu},
		{"can I pay by upi", ActionPaymentMenu},
		{"I want to track my order", ActionTrackOrder},
		{"where is my order", ActionTrackOrder},
		{"your insta page", ActionSocialMenu},
		{"I need help", ActionChatMenu},
		{"Hello", ActionMainMenu},
		{"namaste", ActionMainMenu},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ResolveText(tt.text)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := ResolveText("this is xyz123")
	assert.False(t, ok, "words containing keywords do not match")
}

func TestResolve_FirstContactAndDefaults(t *testing.T) {
	assert.Equal(t, ActionMainMenu, Resolve(textEvent("1", "offers"), "offers", true))
	assert.Equal(t, ActionOffersMenu, Resolve(textEvent("1", "offers"), "offers", false))
	assert.Equal(t, ActionMainMenu, Resolve(textEvent("1", "xyz123"), "xyz123", false))
	assert.Equal(t, ActionMainMenu, Resolve(buttonEvent("1", "unknown"), "", false))
	assert.Equal(t, ActionMediaAck, Resolve(bus.InboundEvent{Kind: bus.KindMedia}, "", false))
}

func TestIsNoop(t *testing.T) {
	assert.True(t, IsNoop(textEvent("1", "  \n\t")))
	assert.True(t, IsNoop(bus.InboundEvent{Kind: bus.KindInteractive}))
	assert.True(t, IsNoop(bus.InboundEvent{Kind: "location"}))
	assert.False(t, IsNoop(bus.InboundEvent{Kind: bus.KindMedia, MediaType: "image"}))
	assert.False(t, IsNoop(textEvent("1", "hi")))
}

func TestAction_StringParseAndMenu(t *testing.T) {
	for _, a := range Actions() {
		parsed, ok := ParseAction(strings.ToLower(a.String()))
		require.True(t, ok)
		assert.Equal(t, a, parsed)
	}
	_, ok := ParseAction("NOPE")
	assert.False(t, ok)
	assert.Equal(t, "UNKNOWN", Action(99).String())

	m, ok := ActionTrackOrder.Menu()
	assert.True(t, ok)
	assert.Equal(t, session.MenuPayment, m)
	_, ok = ActionMediaAck.Menu()
	assert.False(t, ok)
}

func TestExtractLead(t *testing.T) {
	lead := ExtractLead("Hi, my name is Asha Rani Verma Singh, mail ASHA@Example.com or call +91 9876543210")
	assert.Equal(t, "Asha Rani Verma", lead.Name)
	assert.Equal(t, "asha@example.com", lead.Email)
	assert.Equal(t, "919876543210", lead.Phone)

	assert.True(t, ExtractLead("show offers").IsZero())
}

// --- Dispatcher ---

func TestPlan_UnknownActionIsMainMenu(t *testing.T) {
	d := NewDispatcher(nil)
	s := session.New(testUser, "en", time.Now())
	reply, patch := d.Plan(Action(42), s)
	assert.Equal(t, ActionMainMenu, reply.Action)
	require.NotNil(t, patch.CurrentMenu)
	assert.Equal(t, session.MenuMain, *patch.CurrentMenu)
}

func TestPlan_CTARecordsParentMenuAndExpandsLinks(t *testing.T) {
	d := NewDispatcher(nil)
	reply, patch := d.Plan(ActionPayUPI, session.New(testUser, "en", time.Now()))
	assert.Contains(t, reply.Text, menu.DefaultLinks().UPI)
	assert.NotContains(t, reply.Text, "{upi}")
	require.NotNil(t, patch.CurrentMenu)
	assert.Equal(t, session.MenuPayment, *patch.CurrentMenu)

	_, patch = d.Plan(ActionMediaAck, session.New(testUser, "en", time.Now()))
	assert.Nil(t, patch.CurrentMenu)
}

func TestPlan_EveryActionHasContent(t *testing.T) {
	d := NewDispatcher(nil)
	for _, lang := range []string{"en", "hi"} {
		for _, a := range Actions() {
			reply, _ := d.Plan(a, session.New(testUser, lang, time.Now()))
			assert.NotEmpty(t, reply.Text, "%s/%s", lang, a)
		}
	}
}

// --- Router ---

func TestRouter_FirstContactGetsMainMenu(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.router.HandleAndWait(context.Background(), textEvent("m1", "xyz123")))

	calls := h.gateway.sent()
	require.Len(t, calls, 1)
	assert.Equal(t, testUser, calls[0].To)
	assert.Equal(t, expectedBody(ActionMainMenu, "en"), calls[0].Body)
	assert.Equal(t, "jewellery_categories", calls[0].Buttons[0].ID)

	s := h.session(t, testUser)
	assert.Equal(t, session.MenuMain, s.CurrentMenu)
	assert.Equal(t, 1, s.InteractionCount)
	require.Len(t, s.RecentMessages, 1)
	assert.Equal(t, "xyz123", s.RecentMessages[0].Text)
}

func TestRouter_FirstContactOverridesKeyword(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.router.HandleAndWait(context.Background(), textEvent("m1", "track my order")))
	assert.Equal(t, expectedBody(ActionMainMenu, "en"), h.gateway.sent()[0].Body)
}

func TestRouter_OffersMoreButton(t *testing.T) {
	h := newHarness(t)
	h.returning(t, testUser, session.MenuMain)

	require.NoError(t, h.router.HandleAndWait(context.Background(), buttonEvent("m1", "offers_more")))

	calls := h.gateway.sent()
	require.Len(t, calls, 1)
	assert.NotEmpty(t, calls[0].Buttons)
	assert.LessOrEqual(t, len(calls[0].Buttons), menu.MaxButtons)
	assert.Equal(t, expectedBody(ActionOffersMenu, "en"), calls[0].Body)
	assert.Equal(t, session.MenuOffers, h.session(t, testUser).CurrentMenu)
	assert.Equal(t, 1, h.sink.count(bus.EventButtonPressed))
}

func TestRouter_ListReplyRoutesByID(t *testing.T) {
	h := newHarness(t)
	h.returning(t, testUser, session.MenuMain)

	events, err := whatsapp.ParseWebhook([]byte(`{"entry":[{"changes":[{"value":{"messages":[
		{"from":"919876543210","id":"wamid.list","timestamp":"1700000000","type":"interactive",
		 "interactive":{"type":"list_reply","list_reply":{"id":"offers_more","title":"Offers & More"}}}]}}]}]}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ActionOffersMenu, Resolve(events[0], "", false))

	require.NoError(t, h.router.HandleAndWait(context.Background(), events[0]))
	calls := h.gateway.sent()
	require.Len(t, calls, 1)
	assert.Equal(t, expectedBody(ActionOffersMenu, "en"), calls[0].Body)
	assert.Equal(t, session.MenuOffers, h.session(t, testUser).CurrentMenu)
}

func TestRouter_TrackOrderText(t *testing.T) {
	h := newHarness(t)
	h.returning(t, testUser, session.MenuMain)

	require.NoError(t, h.router.HandleAndWait(context.Background(), textEvent("m1", "I want to track my order")))

	calls := h.gateway.sent()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Body, menu.DefaultLinks().Shiprocket)
	assert.Equal(t, session.MenuPayment, h.session(t, testUser).CurrentMenu)
}

func TestRouter_DuplicateDeliveryProcessedOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.router.HandleAndWait(ctx, textEvent("wamid.1", "hi")))
	err := h.router.HandleAndWait(ctx, textEvent("wamid.1", "hi"))
	assert.ErrorIs(t, err, ErrDuplicate)

	assert.Len(t, h.gateway.sent(), 1)
	assert.Equal(t, 1, h.store.patchCount())
	assert.Equal(t, 1, h.session(t, testUser).InteractionCount)
	assert.Equal(t, 1, h.sink.count(bus.EventIncomingMessage), "duplicates are not observed")
}

func TestRouter_RejectedDuringDrainIsNotMarkedSeen(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.router.Drain(context.Background()))

	_, err := h.router.Handle(context.Background(), textEvent("wamid.late", "hi"))
	assert.ErrorIs(t, err, lane.ErrStopped)
	assert.Equal(t, 0, h.router.dedup.Len())
	assert.False(t, h.router.dedup.Seen("wamid.late"), "a redelivery is still routed")
}

func TestRouter_MissingMessageIDIsNeverDeduped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.router.HandleAndWait(ctx, textEvent("", "hi")))
	require.NoError(t, h.router.HandleAndWait(ctx, textEvent("", "hi")))
	assert.Len(t, h.gateway.sent(), 2)
}

func TestRouter_RateLimitedEventStillCounted(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Limiter = ratelimit.New(ratelimit.Config{Interval: time.Hour})
	})
	h.returning(t, testUser, session.MenuMain)
	ctx := context.Background()

	require.NoError(t, h.router.HandleAndWait(ctx, textEvent("m1", "offers")))
	require.NoError(t, h.router.HandleAndWait(ctx, textEvent("m2", "payment")))

	assert.Len(t, h.gateway.sent(), 1)
	s := h.session(t, testUser)
	assert.Equal(t, 3, s.InteractionCount)
	assert.Len(t, s.RecentMessages, 2)
	assert.Equal(t, session.MenuOffers, s.CurrentMenu, "a skipped reply does not move the menu")
	assert.Equal(t, 1, h.sink.count(bus.EventRateLimited))
}

func TestRouter_EmptyTextIsNoop(t *testing.T) {
	h := newHarness(t)
	err := h.router.HandleAndWait(context.Background(), textEvent("m1", "   "))
	assert.ErrorIs(t, err, ErrEmptyEvent)

	assert.Empty(t, h.gateway.sent())
	_, err = h.store.Get(context.Background(), testUser)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestRouter_InvalidIdentityRejected(t *testing.T) {
	h := newHarness(t)
	ev := textEvent("m1", "hi")
	ev.From = "12345"

	err := h.router.HandleAndWait(context.Background(), ev)
	assert.ErrorIs(t, err, identity.ErrInvalidIdentity)
	assert.Empty(t, h.gateway.sent())
	assert.Equal(t, 1, h.sink.count(bus.EventInputRejected))

	sessions, err := h.store.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRouter_NormalizesSender(t *testing.T) {
	h := newHarness(t)
	ev := textEvent("m1", "hi")
	ev.From = "whatsapp:+91 98765-43210"
	require.NoError(t, h.router.HandleAndWait(context.Background(), ev))
	assert.Equal(t, testUser, h.gateway.sent()[0].To)
}

func TestRouter_MediaAckKeepsMenu(t *testing.T) {
	h := newHarness(t)
	h.returning(t, testUser, session.MenuOffers)

	ev := bus.InboundEvent{ProviderMessageID: "m1", From: testUser, Kind: bus.KindMedia, MediaType: "image"}
	require.NoError(t, h.router.HandleAndWait(context.Background(), ev))

	calls := h.gateway.sent()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Buttons)
	assert.Equal(t, expectedBody(ActionMediaAck, "en"), calls[0].Body)
	assert.Equal(t, session.MenuOffers, h.session(t, testUser).CurrentMenu)
}

func TestRouter_GatewayFailureSendsOneFallback(t *testing.T) {
	h := newHarness(t)
	h.gateway.failures = 1
	h.returning(t, testUser, session.MenuMain)

	require.NoError(t, h.router.HandleAndWait(context.Background(), buttonEvent("m1", "payment_orders")))

	calls := h.gateway.sent()
	require.Len(t, calls, 2)
	assert.Equal(t, "Sorry, something went wrong. Type *menu* to see options.", calls[1].Body)
	assert.Empty(t, calls[1].Buttons)
	assert.Equal(t, 1, h.sink.count(bus.EventSendFailed))
	assert.Zero(t, h.sink.count(bus.EventFallbackFailed))

	s := h.session(t, testUser)
	assert.Equal(t, session.MenuMain, s.CurrentMenu)
	assert.Equal(t, 2, s.InteractionCount)
}

func TestRouter_FallbackFailureIsSilent(t *testing.T) {
	h := newHarness(t)
	h.gateway.failures = -1

	require.NoError(t, h.router.HandleAndWait(context.Background(), textEvent("m1", "hi")))
	assert.Len(t, h.gateway.sent(), 2, "one dispatch and one fallback, no retries")
	assert.Equal(t, 1, h.sink.count(bus.EventFallbackFailed))

	// The next message routes normally.
	h.gateway.mu.Lock()
	h.gateway.failures = 0
	h.gateway.mu.Unlock()
	require.NoError(t, h.router.HandleAndWait(context.Background(), textEvent("m2", "offers")))
	assert.Len(t, h.gateway.sent(), 3)
}

func TestRouter_SendTimeoutTakesFallbackPath(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.SendTimeout = 10 * time.Millisecond })
	h.gateway.delay = func(body string) time.Duration {
		if strings.HasPrefix(body, "Sorry") {
			return 0
		}
		return 30 * time.Millisecond
	}

	require.NoError(t, h.router.HandleAndWait(context.Background(), textEvent("m1", "hi")))
	assert.Equal(t, 1, h.sink.count(bus.EventSendFailed))
	calls := h.gateway.sent()
	require.Len(t, calls, 2)
	assert.True(t, strings.HasPrefix(calls[1].Body, "Sorry"))
}

func TestRouter_SameUserRepliesInArrivalOrder(t *testing.T) {
	h := newHarness(t)
	h.returning(t, testUser, session.MenuMain)
	// Earlier replies are slower so any overlap would reorder them.
	h.gateway.delay = func(body string) time.Duration {
		if body == expectedBody(ActionJewelleryMenu, "en") {
			return 30 * time.Millisecond
		}
		return 0
	}

	inputs := []struct {
		text string
		want Action
	}{
		{"browse", ActionJewelleryMenu},
		{"offers", ActionOffersMenu},
		{"payment", ActionPaymentMenu},
		{"help", ActionChatMenu},
		{"insta", ActionSocialMenu},
	}
	var last <-chan struct{}
	for i, in := range inputs {
		done, err := h.router.Handle(context.Background(), textEvent(string(rune('a'+i)), in.text))
		require.NoError(t, err)
		last = done
	}
	<-last

	calls := h.gateway.sent()
	require.Len(t, calls, len(inputs))
	for i, in := range inputs {
		assert.Equal(t, expectedBody(in.want, "en"), calls[i].Body, in.text)
	}
	s := h.session(t, testUser)
	assert.Equal(t, session.MenuSocial, s.CurrentMenu)
	assert.Equal(t, 6, s.InteractionCount)
}

func TestRouter_ButtonTitlesTruncatedBeforeSend(t *testing.T) {
	h := newHarness(t)
	buttons := []menu.Button{
		{ID: "a", Title: "This title is far longer than twenty characters"},
		{ID: "b", Title: "b"},
		{ID: "c", Title: "c"},
		{ID: "d", Title: "d"},
	}
	require.NoError(t, h.router.SendButtons(context.Background(), testUser, "pick one", buttons, ""))

	calls := h.gateway.sent()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Buttons, menu.MaxButtons)
	for _, b := range calls[0].Buttons {
		assert.LessOrEqual(t, utf8.RuneCountInString(b.Title), menu.MaxTitleRunes)
	}
}

func TestRouter_HindiUsesNativeScreens(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Language = fakeLanguage{inbound: map[string]translate.Result{
			"ऑफ़र दिखाओ": {Text: "show offers", Language: "hi"},
		}}
	})
	h.returning(t, testUser, session.MenuMain)

	require.NoError(t, h.router.HandleAndWait(context.Background(), textEvent("m1", "ऑफ़र दिखाओ")))

	calls := h.gateway.sent()
	require.Len(t, calls, 1)
	assert.Equal(t, expectedBody(ActionOffersMenu, "hi"), calls[0].Body)
	assert.Equal(t, "hi", h.session(t, testUser).Language)
}

func TestRouter_OtherLanguagesTranslatedAndClamped(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Language = fakeLanguage{inbound: map[string]translate.Result{
			"montre-moi les offres": {Text: "show me the offers", Language: "fr"},
		}}
	})
	h.returning(t, testUser, session.MenuMain)

	require.NoError(t, h.router.HandleAndWait(context.Background(), textEvent("m1", "montre-moi les offres")))

	calls := h.gateway.sent()
	require.Len(t, calls, 1)
	assert.True(t, strings.HasPrefix(calls[0].Body, "[fr] "))
	for _, b := range calls[0].Buttons {
		assert.LessOrEqual(t, utf8.RuneCountInString(b.Title), menu.MaxTitleRunes)
	}
}

func TestRouter_CapturesLead(t *testing.T) {
	h := newHarness(t)
	h.returning(t, testUser, session.MenuMain)
	ctx := context.Background()

	require.NoError(t, h.router.HandleAndWait(ctx, textEvent("m1", "my name is Priya")))
	require.NoError(t, h.router.HandleAndWait(ctx, textEvent("m2", "email priya@example.com")))
	require.NoError(t, h.router.HandleAndWait(ctx, textEvent("m3", "my name is Someone Else")))

	lead := h.session(t, testUser).Lead
	assert.Equal(t, "Priya", lead.Name)
	assert.Equal(t, "priya@example.com", lead.Email)
}

func TestRouter_DispatchAction(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.router.DispatchAction(context.Background(), testUser, ActionPaymentMenu))

	calls := h.gateway.sent()
	require.Len(t, calls, 1)
	assert.Equal(t, expectedBody(ActionPaymentMenu, "en"), calls[0].Body)
	s := h.session(t, testUser)
	assert.Equal(t, session.MenuPayment, s.CurrentMenu)
	assert.Zero(t, s.InteractionCount, "outbound-only dispatches are not interactions")

	assert.Error(t, h.router.DispatchAction(context.Background(), testUser, ActionNone))
}

func TestRouter_SendTextRejectsEmpty(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.router.SendText(context.Background(), testUser, " "), ErrEmptyMessage)
	require.NoError(t, h.router.SendText(context.Background(), testUser, "Your order has shipped"))
	assert.Equal(t, "Your order has shipped", h.gateway.sent()[0].Body)
}

func TestNew_RequiresStoreAndGateway(t *testing.T) {
	_, err := New(Config{Gateway: &fakeGateway{}})
	assert.Error(t, err)
	_, err = New(Config{Store: session.NewMemoryStore("en")})
	assert.Error(t, err)
}
