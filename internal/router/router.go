// Package router turns inbound WhatsApp events into exactly one reply per
// message.
//
// An event passes identity normalization and the duplicate guard on the
// caller's goroutine, then runs on its user's lane: session load, language
// pivot, action resolution, bookkeeping, the rate-limit gate, one send, and
// a single session patch. Every observation goes to a non-blocking Sink.
package router

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dayuer/kaapav-go/internal/bus"
	"github.com/dayuer/kaapav-go/internal/dedup"
	"github.com/dayuer/kaapav-go/internal/identity"
	"github.com/dayuer/kaapav-go/internal/lane"
	"github.com/dayuer/kaapav-go/internal/menu"
	"github.com/dayuer/kaapav-go/internal/ratelimit"
	"github.com/dayuer/kaapav-go/internal/session"
	"github.com/dayuer/kaapav-go/internal/translate"
	"github.com/dayuer/kaapav-go/internal/utils"
)

var (
	ErrEmptyEvent   = errors.New("event has nothing to route")
	ErrDuplicate    = errors.New("duplicate provider message id")
	ErrEmptyMessage = errors.New("message text is empty")
)

// Gateway sends messages to WhatsApp users.
type Gateway interface {
	SendText(ctx context.Context, to, text string) error
	SendButtons(ctx context.Context, to, body string, buttons []menu.Button, footer string) error
}

// Sink receives fire-and-forget observations. Record must not block.
type Sink interface {
	Record(name, userID string, payload map[string]any)
}

// LanguageAdapter pivots text to and from the working language. Neither
// call may fail; on error the input comes back unchanged.
type LanguageAdapter interface {
	WorkingLanguage() string
	DetectAndTranslateToWorking(ctx context.Context, text string) translate.Result
	TranslateFromWorking(ctx context.Context, text, target string) string
}

// Config wires a Router. Store and Gateway are required.
type Config struct {
	Store      session.Store
	Gateway    Gateway
	Sink       Sink
	Language   LanguageAdapter
	Catalog    *menu.Catalog
	Normalizer *identity.Normalizer
	Dedup      *dedup.Deduplicator
	Limiter    *ratelimit.Limiter
	Lanes      *lane.Manager

	SendTimeout time.Duration // per gateway call (default 5s)
	Now         func() time.Time
	Logger      *logrus.Entry
}

// Router is the inbound message state machine.
type Router struct {
	store       session.Store
	gateway     Gateway
	sink        Sink
	lang        LanguageAdapter
	dispatcher  *Dispatcher
	normalizer  *identity.Normalizer
	dedup       *dedup.Deduplicator
	limiter     *ratelimit.Limiter
	lanes       *lane.Manager
	sendTimeout time.Duration
	now         func() time.Time
	log         *logrus.Entry
}

// New creates a Router. Guards left nil get their defaults.
func New(cfg Config) (*Router, error) {
	if cfg.Store == nil {
		return nil, errors.New("router: session store is required")
	}
	if cfg.Gateway == nil {
		return nil, errors.New("router: gateway is required")
	}
	if cfg.Sink == nil {
		cfg.Sink = discardSink{}
	}
	if cfg.Language == nil {
		cfg.Language = identityLanguage{}
	}
	if cfg.Normalizer == nil {
		cfg.Normalizer = identity.NewNormalizer(identity.DefaultCountryCode)
	}
	if cfg.Dedup == nil {
		cfg.Dedup = dedup.New(dedup.Config{})
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.New(ratelimit.Config{})
	}
	if cfg.Lanes == nil {
		cfg.Lanes = lane.NewManager(lane.ManagerConfig{})
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.WithField("component", "router")
	}
	return &Router{
		store:       cfg.Store,
		gateway:     cfg.Gateway,
		sink:        cfg.Sink,
		lang:        cfg.Language,
		dispatcher:  NewDispatcher(cfg.Catalog),
		normalizer:  cfg.Normalizer,
		dedup:       cfg.Dedup,
		limiter:     cfg.Limiter,
		lanes:       cfg.Lanes,
		sendTimeout: cfg.SendTimeout,
		now:         cfg.Now,
		log:         cfg.Logger,
	}, nil
}

// Handle admits ev and queues it on its user's lane. The returned channel
// closes when routing has finished. Rejected, empty and duplicate events
// return an error and are never queued.
func (r *Router) Handle(ctx context.Context, ev bus.InboundEvent) (<-chan struct{}, error) {
	userID, err := r.normalizer.Normalize(ev.From)
	if err != nil {
		r.sink.Record(bus.EventInputRejected, "", map[string]any{
			"from":   ev.From,
			"reason": err.Error(),
		})
		r.log.WithField("from", ev.From).Warn("rejected sender identity")
		return nil, err
	}
	ev.UserID = userID
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = r.now()
	}

	if IsNoop(ev) {
		r.sink.Record(bus.EventInputRejected, userID, map[string]any{
			"reason":            "empty payload",
			"providerMessageId": ev.ProviderMessageID,
		})
		return nil, ErrEmptyEvent
	}
	if r.dedup.Seen(ev.ProviderMessageID) {
		r.log.WithFields(logrus.Fields{
			"user": utils.MaskPhone(userID),
			"id":   ev.ProviderMessageID,
		}).Debug("dropping duplicate delivery")
		return nil, ErrDuplicate
	}

	done, err := r.lanes.Enqueue(ctx, userID, func(ctx context.Context) {
		r.process(ctx, ev)
	})
	if err != nil {
		// Not accepted, so a redelivery must still be routed.
		r.dedup.Forget(ev.ProviderMessageID)
		return nil, err
	}
	return done, nil
}

// HandleAndWait is Handle followed by waiting for the lane to finish ev.
func (r *Router) HandleAndWait(ctx context.Context, ev bus.InboundEvent) error {
	done, err := r.Handle(ctx, ev)
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Router) process(ctx context.Context, ev bus.InboundEvent) {
	userID := ev.UserID
	log := r.log.WithField("user", utils.MaskPhone(userID))

	sess, err := r.store.LoadOrCreate(ctx, userID)
	if err != nil {
		r.storeFailed(log, userID, "load", err)
		return
	}
	firstContact := sess.InteractionCount == 0

	r.recordInbound(ev)

	routedText := ev.Text
	var detected string
	if ev.Kind == bus.KindText {
		res := r.lang.DetectAndTranslateToWorking(ctx, ev.Text)
		routedText, detected = res.Text, res.Language
		r.sink.Record(bus.EventTextRouted, userID, map[string]any{
			"original": ev.Text,
			"routed":   routedText,
			"language": detected,
		})
	}

	action := Resolve(ev, routedText, firstContact)
	log = log.WithField("action", action.String())

	now := r.now()
	book := session.Patch{
		InteractionDelta: 1,
		AppendMessages: []session.Message{{
			Text: ev.Summary(),
			Kind: string(ev.Kind),
			At:   ev.ReceivedAt,
		}},
	}
	if ev.Kind == bus.KindText {
		book.Lead = ExtractLead(ev.Text)
		if detected != "" {
			book.Language = session.StringPtr(detected)
		}
	}

	if !r.limiter.Allow(userID) {
		log.Debug("reply rate limited")
		r.sink.Record(bus.EventRateLimited, userID, map[string]any{"action": action.String()})
		r.commit(ctx, log, userID, book)
		return
	}

	planned := sess.Clone()
	book.Apply(&planned, now)
	reply, patch := r.dispatcher.Plan(action, planned)

	if err := r.deliver(ctx, userID, reply); err != nil {
		log.WithError(err).Warn("dispatch failed")
		r.sink.Record(bus.EventSendFailed, userID, map[string]any{
			"action": action.String(),
			"error":  err.Error(),
		})
		r.sendFallback(ctx, log, userID, planned.Language)
		r.commit(ctx, log, userID, book)
		return
	}

	r.sink.Record(bus.EventRouteAction, userID, map[string]any{
		"action":       action.String(),
		"firstContact": firstContact,
	})
	r.commit(ctx, log, userID, book.Merge(patch))
}

// DispatchAction sends the reply for a to userID on the user's lane, outside
// of any inbound event. Used by the admin surface.
func (r *Router) DispatchAction(ctx context.Context, to string, a Action) error {
	if !a.Valid() {
		return errors.Errorf("router: unknown action %d", int(a))
	}
	userID, err := r.normalizer.Normalize(to)
	if err != nil {
		return err
	}
	var sendErr error
	err = r.lanes.Do(ctx, userID, func(ctx context.Context) {
		log := r.log.WithFields(logrus.Fields{"user": utils.MaskPhone(userID), "action": a.String()})
		sess, err := r.store.LoadOrCreate(ctx, userID)
		if err != nil {
			r.storeFailed(log, userID, "load", err)
			sendErr = err
			return
		}
		reply, patch := r.dispatcher.Plan(a, sess)
		if sendErr = r.deliver(ctx, userID, reply); sendErr != nil {
			r.sink.Record(bus.EventSendFailed, userID, map[string]any{
				"action": a.String(),
				"error":  sendErr.Error(),
			})
			return
		}
		r.sink.Record(bus.EventRouteAction, userID, map[string]any{"action": a.String(), "admin": true})
		r.commit(ctx, log, userID, patch)
	})
	if err != nil {
		return err
	}
	return sendErr
}

// SendText sends free text from a human agent on the user's lane.
func (r *Router) SendText(ctx context.Context, to, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	return r.SendButtons(ctx, to, text, nil, "")
}

// SendButtons sends an agent-authored quick-reply message. Buttons are
// clamped like any other reply.
func (r *Router) SendButtons(ctx context.Context, to, body string, buttons []menu.Button, footer string) error {
	if strings.TrimSpace(body) == "" {
		return ErrEmptyMessage
	}
	userID, err := r.normalizer.Normalize(to)
	if err != nil {
		return err
	}
	var sendErr error
	err = r.lanes.Do(ctx, userID, func(ctx context.Context) {
		reply := Reply{Text: body, Buttons: buttons, Footer: footer, Native: true}
		sendErr = r.deliver(ctx, userID, reply)
		if sendErr != nil {
			r.sink.Record(bus.EventSendFailed, userID, map[string]any{"agent": true, "error": sendErr.Error()})
		}
	})
	if err != nil {
		return err
	}
	return sendErr
}

// UserID normalizes a raw sender identifier the same way inbound events are.
func (r *Router) UserID(raw string) (string, error) { return r.normalizer.Normalize(raw) }

// Store exposes the session store to read-only surfaces.
func (r *Router) Store() session.Store { return r.store }

// Stats reports guard and lane sizes.
func (r *Router) Stats() map[string]any {
	stats := r.lanes.Stats()
	stats["dedupTracked"] = r.dedup.Len()
	stats["rateLimited"] = r.limiter.Len()
	return stats
}

// ActiveLanes returns the number of users currently being routed.
func (r *Router) ActiveLanes() int { return r.lanes.ActiveCount() }

// Drain stops accepting events and waits for queued ones.
func (r *Router) Drain(ctx context.Context) error {
	return r.lanes.Drain(ctx)
}

// deliver localizes, clamps and sends one reply under the send timeout.
func (r *Router) deliver(ctx context.Context, userID string, reply Reply) error {
	reply = r.localize(ctx, reply)
	reply.Buttons = menu.Clamp(reply.Buttons)

	sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()

	var err error
	if reply.HasButtons() {
		err = r.gateway.SendButtons(sendCtx, userID, reply.Text, reply.Buttons, reply.Footer)
	} else {
		err = r.gateway.SendText(sendCtx, userID, reply.Text)
	}
	if err != nil {
		return errors.Wrap(err, "gateway send")
	}

	payload := map[string]any{"text": reply.Text}
	if reply.Action.Valid() {
		payload["action"] = reply.Action.String()
	}
	if reply.HasButtons() {
		payload["buttons"] = reply.Buttons
	}
	r.sink.Record(bus.EventOutgoingMessage, userID, payload)
	return nil
}

func (r *Router) sendFallback(ctx context.Context, log *logrus.Entry, userID, language string) {
	fallback := r.dispatcher.Fallback(language)
	if err := r.deliver(ctx, userID, fallback); err != nil {
		log.WithError(err).Warn("fallback send failed")
		r.sink.Record(bus.EventFallbackFailed, userID, map[string]any{"error": err.Error()})
	}
}

// localize machine-translates replies that have no native screens.
func (r *Router) localize(ctx context.Context, reply Reply) Reply {
	target := reply.Language
	if reply.Native || target == "" || strings.EqualFold(target, r.lang.WorkingLanguage()) {
		return reply
	}
	reply.Text = r.lang.TranslateFromWorking(ctx, reply.Text, target)
	if reply.Footer != "" {
		reply.Footer = r.lang.TranslateFromWorking(ctx, reply.Footer, target)
	}
	buttons := make([]menu.Button, len(reply.Buttons))
	for i, b := range reply.Buttons {
		buttons[i] = menu.Button{ID: b.ID, Title: r.lang.TranslateFromWorking(ctx, b.Title, target)}
	}
	reply.Buttons = buttons
	return reply
}

func (r *Router) commit(ctx context.Context, log *logrus.Entry, userID string, p session.Patch) {
	if p.IsEmpty() {
		return
	}
	updated, err := r.store.Patch(ctx, userID, p)
	if err != nil {
		r.storeFailed(log, userID, "patch", err)
		return
	}
	r.sink.Record(bus.EventSessionUpdate, userID, map[string]any{
		"currentMenu":      string(updated.CurrentMenu),
		"language":         updated.Language,
		"interactionCount": updated.InteractionCount,
	})
}

func (r *Router) recordInbound(ev bus.InboundEvent) {
	r.sink.Record(bus.EventIncomingMessage, ev.UserID, map[string]any{
		"providerMessageId": ev.ProviderMessageID,
		"kind":              string(ev.Kind),
		"text":              ev.Summary(),
		"profileName":       ev.ProfileName,
	})
	if ev.Kind == bus.KindInteractive {
		r.sink.Record(bus.EventButtonPressed, ev.UserID, map[string]any{
			"id":    ev.InteractiveID,
			"title": ev.InteractiveTitle,
			"rowId": ev.RowID,
		})
	}
}

func (r *Router) storeFailed(log *logrus.Entry, userID, op string, err error) {
	log.WithError(err).Errorf("session %s failed", op)
	r.sink.Record(bus.EventStoreFailed, userID, map[string]any{"op": op, "error": err.Error()})
}

type discardSink struct{}

func (discardSink) Record(string, string, map[string]any) {}

type identityLanguage struct{}

func (identityLanguage) WorkingLanguage() string { return "en" }

func (identityLanguage) DetectAndTranslateToWorking(_ context.Context, text string) translate.Result {
	return translate.Result{Text: text}
}

func (identityLanguage) TranslateFromWorking(_ context.Context, text, _ string) string { return text }
