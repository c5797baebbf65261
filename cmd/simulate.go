package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dayuer/kaapav-go/internal/bus"
	"github.com/dayuer/kaapav-go/internal/session"
	"github.com/dayuer/kaapav-go/internal/whatsapp"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Chat with the menu router locally; replies are printed, not sent",
	Long: `Chat with the menu router locally. Plain input is sent as a text
message; "/b <id>" presses a reply button; "/media" sends a photo.`,
	RunE: runSimulate,
}

var (
	simulateMessage   string
	simulateFrom      string
	simulateTranslate bool
)

func init() {
	simulateCmd.Flags().StringVarP(&simulateMessage, "message", "m", "", "send one message and exit")
	simulateCmd.Flags().StringVarP(&simulateFrom, "from", "f", "919999999999", "customer phone number")
	simulateCmd.Flags().BoolVar(&simulateTranslate, "translate", false, "call the translation endpoint")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Translate.Enabled = simulateTranslate
	if cfg.Log.Level == "" || cfg.Log.Level == "info" {
		logrus.SetLevel(logrus.WarnLevel)
	}

	store := session.NewMemoryStore(cfg.Router.WorkingLanguage)
	rt, err := newRouter(cfg, store, whatsapp.NewWriterGateway(os.Stdout), nil)
	if err != nil {
		return err
	}
	defer drainRouter(rt, logrus.WithField("component", "simulate"))

	userID, err := rt.UserID(simulateFrom)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if simulateMessage != "" {
		return rt.HandleAndWait(ctx, simulatedEvent(simulateMessage))
	}

	fmt.Println("💎 kaapav simulator (type 'exit' or Ctrl+C to quit)")
	fmt.Println()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nGoodbye!")
		cancel()
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	exitCommands := map[string]bool{
		"exit": true, "quit": true, "/exit": true, "/quit": true, ":q": true,
	}
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if exitCommands[strings.ToLower(input)] {
			fmt.Println("Goodbye!")
			break
		}
		fmt.Println()
		if err := rt.HandleAndWait(ctx, simulatedEvent(input)); err != nil {
			fmt.Printf("(not routed: %v)\n\n", err)
			continue
		}
		if sess, err := store.Get(ctx, userID); err == nil {
			fmt.Printf("[menu=%s lang=%s count=%d]\n\n", sess.CurrentMenu, sess.Language, sess.InteractionCount)
		}
	}
	return nil
}

// simulatedEvent turns one REPL line into an inbound event.
func simulatedEvent(input string) bus.InboundEvent {
	ev := bus.InboundEvent{
		ProviderMessageID: "sim-" + uuid.NewString(),
		From:              simulateFrom,
		ProfileName:       "Simulator",
		Kind:              bus.KindText,
		Text:              input,
		ReceivedAt:        time.Now(),
	}
	switch {
	case strings.HasPrefix(input, "/b "):
		ev.Kind = bus.KindInteractive
		ev.Text = ""
		ev.InteractiveID = strings.TrimSpace(strings.TrimPrefix(input, "/b "))
	case input == "/media":
		ev.Kind = bus.KindMedia
		ev.Text = ""
		ev.MediaType = "image"
	}
	return ev
}
