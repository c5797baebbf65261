package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dayuer/kaapav-go/internal/admin"
	"github.com/dayuer/kaapav-go/internal/utils"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live routing events from a running server",
	RunE:  runWatch,
}

var (
	watchURL   string
	watchToken string
)

func init() {
	watchCmd.Flags().StringVar(&watchURL, "url", "", "server base URL (default from config)")
	watchCmd.Flags().StringVar(&watchToken, "token", "", "admin token (default from config)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	base := watchURL
	if base == "" {
		host := cfg.Server.Host
		if host == "" || host == "0.0.0.0" {
			host = "127.0.0.1"
		}
		base = fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
	}
	token := watchToken
	if token == "" {
		token = cfg.Server.AdminToken
	}

	u, err := url.Parse(strings.TrimSuffix(base, "/") + "/admin/ws")
	if err != nil {
		return errors.Wrap(err, "invalid url")
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, resp, err := dialer.Dial(u.String(), header)
	if err != nil {
		if resp != nil {
			return errors.Errorf("connect %s: HTTP %d", u, resp.StatusCode)
		}
		return errors.Wrapf(err, "connect %s", u)
	}
	defer ws.Close()
	fmt.Printf("👀 Watching %s (Ctrl+C to quit)\n\n", u)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		ws.Close()
	}()

	for {
		var msg admin.Message
		if err := ws.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errors.Wrap(err, "read")
		}
		printAdminMessage(msg)
	}
}

func printAdminMessage(msg admin.Message) {
	switch msg.Type {
	case "sessions_snapshot":
		fmt.Printf("%d active session(s)\n", len(msg.Sessions))
		for _, s := range msg.Sessions {
			fmt.Printf("  %s  menu=%s lang=%s count=%d\n",
				utils.MaskPhone(s.UserID), s.CurrentMenu, s.Language, s.InteractionCount)
		}
		fmt.Println()
	case "event":
		if msg.Event == nil {
			return
		}
		ev := msg.Event
		fmt.Printf("%s  %-18s %s  %v\n",
			ev.At.Format("15:04:05"), ev.Name, utils.MaskPhone(ev.UserID), ev.Payload)
	case "error":
		fmt.Printf("error: %s\n", msg.Error)
	}
}
