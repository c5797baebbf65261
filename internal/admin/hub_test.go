package admin

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayuer/kaapav-go/internal/bus"
	"github.com/dayuer/kaapav-go/internal/history"
	"github.com/dayuer/kaapav-go/internal/menu"
	"github.com/dayuer/kaapav-go/internal/session"
)

type fakeSender struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeSender) SendText(_ context.Context, to, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, to+":"+text)
	return f.err
}

func (f *fakeSender) SendButtons(_ context.Context, to, body string, _ []menu.Button, _ string) error {
	return f.SendText(context.Background(), to, body)
}

func startHub(t *testing.T, h *Hub) string {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use("/ws", Upgrade)
	app.Get("/ws", h.Handler())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "ws://" + ln.Addr().String() + "/ws"
}

func dial(t *testing.T, url string) *gorilla.Conn {
	t.Helper()
	var c *gorilla.Conn
	require.Eventually(t, func() bool {
		var err error
		c, _, err = gorilla.DefaultDialer.Dial(url, nil)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	t.Cleanup(func() { c.Close() })
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	return c
}

func TestHub_SnapshotEventsAndCommands(t *testing.T) {
	store := session.NewMemoryStore("en")
	_, err := store.LoadOrCreate(context.Background(), "919876543210")
	require.NoError(t, err)

	log := history.NewMemoryLog()
	require.NoError(t, log.Append(context.Background(), history.Record{UserID: "919876543210", Direction: history.Inbound, Text: "hi"}))

	sender := &fakeSender{}
	hub := NewHub(HubConfig{Sessions: store, History: log, Sender: sender})
	c := dial(t, startHub(t, hub))

	var snap Message
	require.NoError(t, c.ReadJSON(&snap))
	assert.Equal(t, "sessions_snapshot", snap.Type)
	require.Len(t, snap.Sessions, 1)
	assert.Equal(t, "919876543210", snap.Sessions[0].UserID)

	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)
	hub.Broadcast(bus.NewEvent(bus.EventRouteAction, "919876543210", map[string]any{"action": "MAIN_MENU"}))

	var evMsg Message
	require.NoError(t, c.ReadJSON(&evMsg))
	assert.Equal(t, "event", evMsg.Type)
	require.NotNil(t, evMsg.Event)
	assert.Equal(t, bus.EventRouteAction, evMsg.Event.Name)

	require.NoError(t, c.WriteJSON(Command{Type: "admin_send_message", To: "919876543210", Text: "hello from agent"}))
	var ack Message
	require.NoError(t, c.ReadJSON(&ack))
	assert.Equal(t, "ack", ack.Type)
	sender.mu.Lock()
	assert.Equal(t, []string{"919876543210:hello from agent"}, sender.texts)
	sender.mu.Unlock()

	require.NoError(t, c.WriteJSON(Command{Type: "fetch_session_messages", UserID: "919876543210"}))
	var msgs Message
	require.NoError(t, c.ReadJSON(&msgs))
	assert.Equal(t, "session_messages", msgs.Type)
	require.Len(t, msgs.Messages, 1)
	assert.Equal(t, "hi", msgs.Messages[0].Text)
}

func TestHub_CloseAll(t *testing.T) {
	hub := NewHub(HubConfig{})
	c := dial(t, startHub(t, hub))
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.CloseAll()
	assert.Equal(t, 0, hub.ConnectionCount())
	_, _, err := c.ReadMessage()
	assert.Error(t, err)
}

func TestHub_BroadcastDoesNotWaitForSlowAgent(t *testing.T) {
	hub := NewHub(HubConfig{})
	stuck := newConn(nil)
	hub.conns[stuck] = true

	// No write loop drains the queue, so it fills and the agent is dropped.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i <= sendQueueSize; i++ {
			hub.Broadcast(bus.NewEvent(bus.EventRouteAction, "919876543210", nil))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full agent queue")
	}
	assert.Equal(t, 0, hub.ConnectionCount())
	assert.False(t, stuck.enqueue(Message{Type: "event"}), "a dropped agent takes no more messages")
}

func TestHub_HandleCommands(t *testing.T) {
	hub := NewHub(HubConfig{})
	assert.Equal(t, "pong", hub.handle(Command{Type: "ping"}).Type)
	assert.Equal(t, "error", hub.handle(Command{Type: "admin_send_message"}).Type)
	assert.Equal(t, "error", hub.handle(Command{Type: "bogus"}).Type)

	msgs := hub.handle(Command{Type: "fetch_session_messages", UserID: "u"})
	assert.Equal(t, "session_messages", msgs.Type)
	assert.Empty(t, msgs.Messages)

	hub = NewHub(HubConfig{Sender: &fakeSender{err: errors.New("gateway down")}})
	reply := hub.handle(Command{Type: "admin_send_buttons", To: "u", Body: "b"})
	assert.Equal(t, "error", reply.Type)
	assert.Contains(t, reply.Error, "gateway down")
}
