package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dayuer/kaapav-go/internal/admin"
	"github.com/dayuer/kaapav-go/internal/bus"
	"github.com/dayuer/kaapav-go/internal/config"
	"github.com/dayuer/kaapav-go/internal/forward"
	"github.com/dayuer/kaapav-go/internal/history"
	"github.com/dayuer/kaapav-go/internal/metrics"
	"github.com/dayuer/kaapav-go/internal/router"
	"github.com/dayuer/kaapav-go/internal/server"
	"github.com/dayuer/kaapav-go/internal/whatsapp"
)

const busBuffer = 4096

var (
	serverPort       int
	serverAdminToken string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the webhook server in the foreground",
	Long: `Run the kaapav webhook server with:
  - WhatsApp Cloud API (and optional Twilio) webhooks
  - per-user ordered routing with dedup and rate limiting
  - admin API and live event stream on /admin
  - Prometheus metrics on /metrics`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.PersistentFlags().IntVarP(&serverPort, "port", "p", 0, "HTTP port (overrides config and PORT)")
	serverCmd.PersistentFlags().StringVar(&serverAdminToken, "admin-token", "", "bearer token for /admin (or ADMIN_TOKEN env)")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}
	if serverAdminToken != "" {
		cfg.Server.AdminToken = serverAdminToken
	}
	log := logrus.WithField("component", "main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Session store
	store, err := openStore(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "opening session store")
	}
	defer store.Close()
	log.Infof("session store: %s", cfg.Session.Driver)

	// 2. Outbound gateway
	gw, err := whatsapp.NewGateway(cfg.WhatsApp)
	if err != nil {
		return errors.Wrap(err, "creating whatsapp gateway")
	}
	twilioGW, _ := gw.(*whatsapp.TwilioGateway)

	// 3. Observation bus and its subscribers
	msgBus := bus.NewMessageBus(busBuffer)

	var msgLog history.Log = history.NewMemoryLog()
	if cfg.History.DSN != "" {
		db, err := history.OpenPostgres(cfg.History.DSN)
		if err != nil {
			return errors.Wrap(err, "opening history database")
		}
		msgLog = db
		log.Info("history: postgres")
	}
	defer msgLog.Close()
	history.Attach(msgBus, msgLog)

	if fw := forward.New(time.Duration(cfg.Integrations.TimeoutMs)*time.Millisecond,
		cfg.Integrations.CRMWebhookURL, cfg.Integrations.N8NWebhookURL); fw != nil {
		fw.Attach(msgBus)
		log.Infof("forwarding inbound messages to %d target(s)", len(fw.Targets()))
	}

	// 4. Router
	rt, err := newRouter(cfg, store, gw, msgBus)
	if err != nil {
		return err
	}

	collector := metrics.New(metrics.Gauges{
		ActiveLanes: func() float64 { return float64(rt.ActiveLanes()) },
		BusPending:  func() float64 { return float64(msgBus.Pending()) },
		BusDropped:  func() float64 { return float64(msgBus.Dropped()) },
	})
	collector.Attach(msgBus)

	hub := admin.NewHub(admin.HubConfig{
		Sessions: store,
		History:  msgLog,
		Sender:   rt,
	})
	hub.Attach(msgBus)
	go hub.Run(ctx)
	go msgBus.Dispatch(ctx)

	// 5. HTTP
	srv, err := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		AdminToken:      cfg.Server.AdminToken,
		VerifyToken:     cfg.WhatsApp.VerifyToken,
		AppSecret:       cfg.WhatsApp.AppSecret,
		TwilioAuthToken: cfg.WhatsApp.TwilioAuthToken,
		PublicURL:       cfg.Server.PublicURL,
		Router:          rt,
		History:         msgLog,
		Hub:             hub,
		Metrics:         collector,
		Twilio:          twilioGW,
		Bus:             msgBus,
	})
	if err != nil {
		return err
	}

	fmt.Println("🚀 Starting kaapav server...")
	fmt.Printf("   Provider: %s\n", cfg.WhatsApp.Provider)
	fmt.Printf("   ✅ HTTP → http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println("────────────────────────────────────────")

	// A daemon-spawned process finds the pid file already written.
	isForeground := false
	if _, err := os.Stat(pidFilePath()); os.IsNotExist(err) {
		writePID(os.Getpid())
		isForeground = true
	}
	defer func() {
		if isForeground {
			removePID()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGHUP:
				reloadLogging(log)
			case syscall.SIGINT, syscall.SIGTERM:
				fmt.Println("\n🛑 Shutting down...")
				cancel()
				return
			}
		}
	}()

	err = srv.Start(ctx)
	drainRouter(rt, log)
	return err
}

// reloadLogging re-reads the config and applies its log settings. Routing
// settings need a restart.
func reloadLogging(log *logrus.Entry) {
	cfg, err := config.LoadWithEnv(configPath, envFile)
	if err != nil {
		log.WithError(err).Warn("reload failed")
		return
	}
	setupLogging(cfg.Log)
	log.Infof("log level now %s", logrus.GetLevel())
}

func drainRouter(rt *router.Router, log *logrus.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rt.Drain(ctx); err != nil {
		log.WithError(err).Warn("router drain incomplete")
	}
}
