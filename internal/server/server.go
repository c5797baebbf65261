// Package server exposes the WhatsApp webhooks, health, metrics and the
// authenticated admin API over a single fiber app.
package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dayuer/kaapav-go/internal/admin"
	"github.com/dayuer/kaapav-go/internal/bus"
	"github.com/dayuer/kaapav-go/internal/history"
	"github.com/dayuer/kaapav-go/internal/identity"
	"github.com/dayuer/kaapav-go/internal/metrics"
	"github.com/dayuer/kaapav-go/internal/router"
	"github.com/dayuer/kaapav-go/internal/session"
	"github.com/dayuer/kaapav-go/internal/whatsapp"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	shutdownTimeout  = 5 * time.Second
)

// Config wires the server to the rest of the process. Router is required;
// everything else is optional and disables its routes when nil or empty.
type Config struct {
	Host            string
	Port            int
	AdminToken      string
	VerifyToken     string
	AppSecret       string
	TwilioAuthToken string
	PublicURL       string

	Router  *router.Router
	History history.Log
	Hub     *admin.Hub
	Metrics *metrics.Collector
	Twilio  *whatsapp.TwilioGateway
	Bus     *bus.MessageBus
}

// Server is the kaapav HTTP API.
type Server struct {
	cfg       Config
	app       *fiber.App
	startTime time.Time
	log       *logrus.Entry
}

// New builds the fiber app and registers every route.
func New(cfg Config) (*Server, error) {
	if cfg.Router == nil {
		return nil, errors.New("server: router is required")
	}
	s := &Server{
		cfg:       cfg,
		startTime: time.Now(),
		log:       logrus.WithField("component", "server"),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "KAAPAV WhatsApp Router",
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	s.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	s.app.Use(recover.New())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	s.app.Get("/", s.handleIndex)
	s.app.Get("/health", s.handleHealth)
	if cfg.Metrics != nil {
		s.app.Get("/metrics", cfg.Metrics.Handler)
	}

	for _, path := range []string{"/webhooks/whatsapp/cloudapi", "/webhook"} {
		s.app.Get(path, s.handleVerify)
		s.app.Post(path, s.handleCloudWebhook)
	}
	if cfg.Twilio != nil {
		s.app.Post("/webhooks/twilio", s.handleTwilioWebhook)
	}

	if cfg.AdminToken == "" {
		s.log.Warn("admin token not set, admin API is unauthenticated")
	}
	api := s.app.Group("/admin", s.withAuth)
	api.Get("/sessions", s.handleSessions)
	api.Get("/sessions/:id", s.handleSession)
	api.Get("/sessions/:id/messages", s.handleMessages)
	api.Post("/send", s.handleSend)
	api.Post("/message", s.handleMessage)
	api.Post("/simulate", s.handleSimulate)
	if cfg.Hub != nil {
		api.Get("/ws", admin.Upgrade, cfg.Hub.Handler())
	}

	return s, nil
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Start listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.log.Infof("HTTP API → http://%s", addr)
	s.log.Infof("webhook → http://%s/webhooks/whatsapp/cloudapi", addr)

	go func() {
		<-ctx.Done()
		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			s.log.WithError(err).Warn("shutdown")
		}
	}()
	return s.app.Listen(addr)
}

// withAuth checks the admin bearer token. Browsers cannot set headers on a
// WebSocket handshake, so ?token= is accepted as well.
func (s *Server) withAuth(c *fiber.Ctx) error {
	if s.cfg.AdminToken == "" {
		return c.Next()
	}
	token := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if token == "" {
		token = c.Query("token")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	return c.Next()
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "KAAPAV WhatsApp Router",
		"routes": fiber.Map{
			"health":  "GET /health",
			"metrics": "GET /metrics",
			"webhook": "GET|POST /webhooks/whatsapp/cloudapi",
			"admin":   "/admin (bearer token)",
		},
	})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := fiber.Map{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
		"router": s.cfg.Router.Stats(),
	}
	if s.cfg.Bus != nil {
		resp["bus"] = fiber.Map{"pending": s.cfg.Bus.Pending(), "dropped": s.cfg.Bus.Dropped()}
	}
	if s.cfg.Hub != nil {
		resp["adminConnections"] = s.cfg.Hub.ConnectionCount()
	}
	return c.JSON(resp)
}

func (s *Server) handleVerify(c *fiber.Ctx) error {
	mode, token, challenge := c.Query("hub.mode"), c.Query("hub.verify_token"), c.Query("hub.challenge")
	if mode == "" || token == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing verification parameters")
	}
	out, ok := whatsapp.VerifyChallenge(mode, token, challenge, s.cfg.VerifyToken)
	if !ok {
		s.log.Warn("webhook verification failed")
		return fiber.NewError(fiber.StatusForbidden, "verification failed")
	}
	return c.SendString(out)
}

// handleCloudWebhook always answers 200 once the payload is authentic;
// routing happens on the lanes after the response.
func (s *Server) handleCloudWebhook(c *fiber.Ctx) error {
	body := c.Body()
	if s.cfg.AppSecret != "" {
		if err := whatsapp.VerifySignature(s.cfg.AppSecret, c.Get(whatsapp.SignatureHeader), body); err != nil {
			s.log.WithError(err).Warn("webhook signature rejected")
			return fiber.NewError(fiber.StatusUnauthorized, "invalid signature")
		}
	}
	events, err := whatsapp.ParseWebhook(body)
	if err != nil {
		s.log.WithError(err).Warn("malformed webhook")
		return fiber.NewError(fiber.StatusBadRequest, "malformed payload")
	}
	for _, ev := range events {
		s.admit(ev)
	}
	return c.SendString("EVENT_RECEIVED")
}

func (s *Server) handleTwilioWebhook(c *fiber.Ctx) error {
	form := make(map[string]string)
	c.Request().PostArgs().VisitAll(func(k, v []byte) {
		form[string(k)] = string(v)
	})
	if s.cfg.TwilioAuthToken != "" {
		url := strings.TrimSuffix(s.cfg.PublicURL, "/") + c.Path()
		if err := whatsapp.VerifyTwilioSignature(s.cfg.TwilioAuthToken, url, form, c.Get(whatsapp.TwilioSignatureHeader)); err != nil {
			s.log.WithError(err).Warn("twilio signature rejected")
			return fiber.NewError(fiber.StatusForbidden, "invalid signature")
		}
	}
	if ev, ok := s.cfg.Twilio.ParseInbound(form); ok {
		s.admit(ev)
	}
	c.Set(fiber.HeaderContentType, "text/xml")
	return c.SendString("<Response></Response>")
}

// admit queues ev. Duplicate and empty deliveries are expected and quiet.
func (s *Server) admit(ev bus.InboundEvent) {
	_, err := s.cfg.Router.Handle(context.Background(), ev)
	switch {
	case err == nil, errors.Is(err, router.ErrDuplicate), errors.Is(err, router.ErrEmptyEvent):
	default:
		s.log.WithError(err).WithField("id", ev.ProviderMessageID).Warn("event not routed")
	}
}

func (s *Server) handleSessions(c *fiber.Ctx) error {
	limit := clampLimit(c.QueryInt("limit", defaultListLimit))
	sessions, err := s.cfg.Router.Store().List(c.UserContext(), limit)
	if err != nil {
		return errors.Wrap(err, "list sessions")
	}
	return c.JSON(fiber.Map{"sessions": sessions, "count": len(sessions)})
}

func (s *Server) handleSession(c *fiber.Ctx) error {
	userID, err := s.userID(c.Params("id"))
	if err != nil {
		return err
	}
	sess, err := s.cfg.Router.Store().Get(c.UserContext(), userID)
	if errors.Is(err, session.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	if err != nil {
		return errors.Wrap(err, "get session")
	}
	return c.JSON(sess)
}

func (s *Server) handleMessages(c *fiber.Ctx) error {
	userID, err := s.userID(c.Params("id"))
	if err != nil {
		return err
	}
	records := []history.Record{}
	if s.cfg.History != nil {
		records, err = s.cfg.History.Recent(c.UserContext(), userID, clampLimit(c.QueryInt("limit", defaultListLimit)))
		if err != nil {
			return errors.Wrap(err, "recent messages")
		}
	}
	return c.JSON(fiber.Map{"userId": userID, "messages": records})
}

type sendRequest struct {
	To     string `json:"to"`
	Action string `json:"action"`
	Text   string `json:"text"`
}

func (s *Server) handleSend(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	action, ok := router.ParseAction(req.Action)
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
	}
	if err := s.cfg.Router.DispatchAction(c.UserContext(), req.To, action); err != nil {
		return sendError(err)
	}
	return c.JSON(fiber.Map{"status": "sent", "action": action.String()})
}

func (s *Server) handleMessage(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := s.cfg.Router.SendText(c.UserContext(), req.To, req.Text); err != nil {
		return sendError(err)
	}
	return c.JSON(fiber.Map{"status": "sent"})
}

// handleSimulate routes req.Text as if the user had sent it and returns the
// resulting session.
func (s *Server) handleSimulate(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	userID, err := s.userID(req.To)
	if err != nil {
		return err
	}
	ev := bus.InboundEvent{
		ProviderMessageID: "sim-" + uuid.NewString(),
		From:              userID,
		Kind:              bus.KindText,
		Text:              req.Text,
	}
	if err := s.cfg.Router.HandleAndWait(c.UserContext(), ev); err != nil {
		return sendError(err)
	}
	sess, err := s.cfg.Router.Store().Get(c.UserContext(), userID)
	if err != nil {
		return errors.Wrap(err, "get session")
	}
	return c.JSON(sess)
}

func (s *Server) userID(raw string) (string, error) {
	id, err := s.cfg.Router.UserID(raw)
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return id, nil
}

// sendError maps caller mistakes to 400 and everything else to 502.
func sendError(err error) error {
	switch {
	case errors.Is(err, identity.ErrInvalidIdentity),
		errors.Is(err, router.ErrEmptyMessage),
		errors.Is(err, router.ErrEmptyEvent):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
}

func clampLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}
