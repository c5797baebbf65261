// Package admin streams router events to agent dashboards over WebSocket
// and accepts agent commands on the same connection.
//
// Protocol:
//
//	server → agent: {"type": "sessions_snapshot", "sessions": [...]}
//	server → agent: {"type": "event", "event": {...}}
//	agent → server: {"type": "admin_send_message", "to": "...", "text": "..."}
//	agent → server: {"type": "admin_send_buttons", "to": "...", "body": "...", "buttons": [...]}
//	agent → server: {"type": "fetch_session_messages", "userId": "...", "limit": 50}
//	agent → server: {"type": "ping"}
package admin

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dayuer/kaapav-go/internal/bus"
	"github.com/dayuer/kaapav-go/internal/history"
	"github.com/dayuer/kaapav-go/internal/menu"
	"github.com/dayuer/kaapav-go/internal/session"
)

const (
	snapshotLimit  = 200
	readTimeout    = 60 * time.Second
	writeTimeout   = 10 * time.Second
	commandTimeout = 10 * time.Second
	sendQueueSize  = 64
)

// Sender delivers agent-authored messages.
type Sender interface {
	SendText(ctx context.Context, to, text string) error
	SendButtons(ctx context.Context, to, body string, buttons []menu.Button, footer string) error
}

// Command is a message from an agent.
type Command struct {
	Type    string        `json:"type"`
	To      string        `json:"to,omitempty"`
	Text    string        `json:"text,omitempty"`
	Body    string        `json:"body,omitempty"`
	Buttons []menu.Button `json:"buttons,omitempty"`
	Footer  string        `json:"footer,omitempty"`
	UserID  string        `json:"userId,omitempty"`
	Limit   int           `json:"limit,omitempty"`
}

// Message is anything the hub writes to an agent.
type Message struct {
	Type     string            `json:"type"`
	Event    *bus.Event        `json:"event,omitempty"`
	Sessions []session.Session `json:"sessions,omitempty"`
	UserID   string            `json:"userId,omitempty"`
	Messages []history.Record  `json:"messages,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// conn wraps a websocket.Conn with a write mutex; the underlying
// connection does not support concurrent writers. JSON messages go through
// a bounded queue drained by writeLoop so a slow agent never stalls the bus.
type conn struct {
	*websocket.Conn
	id string
	mu sync.Mutex

	out     chan any
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newConn(raw *websocket.Conn) *conn {
	return &conn{
		Conn:    raw,
		id:      uuid.NewString(),
		out:     make(chan any, sendQueueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// enqueue hands v to the write loop. It reports false when the queue is
// full or the connection is shut down.
func (c *conn) enqueue(v any) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- v:
		return true
	default:
		return false
	}
}

func (c *conn) writeLoop() {
	defer close(c.stopped)
	for {
		select {
		case v := <-c.out:
			if err := c.writeJSON(v); err != nil {
				c.shutdown()
				return
			}
		case <-c.done:
			return
		}
	}
}

// shutdown stops the write loop and closes the socket. Safe to call twice.
func (c *conn) shutdown() {
	c.once.Do(func() {
		close(c.done)
		if c.Conn != nil {
			_ = c.Close()
		}
	})
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.WriteJSON(v)
}

func (c *conn) writePing() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

func (c *conn) writeClose(code int, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
}

// HubConfig wires a Hub. History and Sender are optional.
type HubConfig struct {
	Sessions  session.Store
	History   history.Log
	Sender    Sender
	Heartbeat time.Duration // ping interval (default 20s)
}

// Hub fans events out to connected agents.
type Hub struct {
	sessions  session.Store
	history   history.Log
	sender    Sender
	heartbeat time.Duration

	mu    sync.Mutex
	conns map[*conn]bool
	log   *logrus.Entry
}

// NewHub creates a hub.
func NewHub(cfg HubConfig) *Hub {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 20 * time.Second
	}
	return &Hub{
		sessions:  cfg.Sessions,
		history:   cfg.History,
		sender:    cfg.Sender,
		heartbeat: cfg.Heartbeat,
		conns:     make(map[*conn]bool),
		log:       logrus.WithField("component", "admin"),
	}
}

// Attach streams every event on b to connected agents.
func (h *Hub) Attach(b *bus.MessageBus) {
	b.Subscribe(bus.Wildcard, h.Broadcast)
}

// Broadcast queues ev for every agent without blocking. An agent whose queue
// is full is disconnected.
func (h *Hub) Broadcast(ev bus.Event) {
	msg := Message{Type: "event", Event: &ev}
	var dead []*conn
	for _, c := range h.snapshot() {
		if !c.enqueue(msg) {
			dead = append(dead, c)
		}
	}
	if len(dead) > 0 {
		h.log.Warnf("dropping %d slow agent connection(s)", len(dead))
	}
	h.drop(dead)
}

// Handler returns the fiber handler for the upgrade route.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(h.serve)
}

// Upgrade rejects plain HTTP requests on the WebSocket route.
func Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *Hub) serve(raw *websocket.Conn) {
	c := newConn(raw)
	log := h.log.WithField("client", c.id[:8])
	log.Info("agent connected")

	h.sendSnapshot(c)

	h.mu.Lock()
	h.conns[c] = true
	h.mu.Unlock()
	go c.writeLoop()
	defer func() {
		h.drop([]*conn{c})
		c.shutdown()
		<-c.stopped
		log.Info("agent disconnected")
	}()

	raw.SetReadDeadline(time.Now().Add(readTimeout))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		var cmd Command
		if err := raw.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("read failed")
			}
			return
		}
		raw.SetReadDeadline(time.Now().Add(readTimeout))
		if reply := h.handle(cmd); reply != nil {
			if !c.enqueue(reply) {
				return
			}
		}
	}
}

func (h *Hub) sendSnapshot(c *conn) {
	if h.sessions == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	list, err := h.sessions.List(ctx, snapshotLimit)
	if err != nil {
		h.log.WithError(err).Warn("session snapshot failed")
		list = nil
	}
	if list == nil {
		list = []session.Session{}
	}
	_ = c.writeJSON(Message{Type: "sessions_snapshot", Sessions: list})
}

func (h *Hub) handle(cmd Command) *Message {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch cmd.Type {
	case "ping":
		return &Message{Type: "pong"}

	case "admin_send_message":
		if h.sender == nil {
			return errorMessage(cmd.Type, "sending is disabled")
		}
		if err := h.sender.SendText(ctx, cmd.To, cmd.Text); err != nil {
			return errorMessage(cmd.Type, err.Error())
		}
		return &Message{Type: "ack", UserID: cmd.To}

	case "admin_send_buttons":
		if h.sender == nil {
			return errorMessage(cmd.Type, "sending is disabled")
		}
		if err := h.sender.SendButtons(ctx, cmd.To, cmd.Body, cmd.Buttons, cmd.Footer); err != nil {
			return errorMessage(cmd.Type, err.Error())
		}
		return &Message{Type: "ack", UserID: cmd.To}

	case "fetch_session_messages":
		if h.history == nil {
			return &Message{Type: "session_messages", UserID: cmd.UserID, Messages: []history.Record{}}
		}
		records, err := h.history.Recent(ctx, cmd.UserID, cmd.Limit)
		if err != nil {
			return errorMessage(cmd.Type, err.Error())
		}
		return &Message{Type: "session_messages", UserID: cmd.UserID, Messages: records}
	}
	return errorMessage(cmd.Type, "unknown command")
}

func errorMessage(cmdType, msg string) *Message {
	return &Message{Type: "error", Error: cmdType + ": " + msg}
}

// Run pings agents until ctx ends, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.CloseAll()
			return
		case <-ticker.C:
			h.ping()
		}
	}
}

func (h *Hub) ping() {
	var dead []*conn
	for _, c := range h.snapshot() {
		if err := c.writePing(); err != nil {
			dead = append(dead, c)
		}
	}
	h.drop(dead)
}

// CloseAll disconnects every agent.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		_ = c.writeClose(websocket.CloseGoingAway, "server shutdown")
		c.shutdown()
		delete(h.conns, c)
	}
}

// ConnectionCount returns the number of connected agents.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) snapshot() []*conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		out = append(out, c)
	}
	return out
}

func (h *Hub) drop(dead []*conn) {
	if len(dead) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range dead {
		if h.conns[c] {
			delete(h.conns, c)
			c.shutdown()
		}
	}
}
