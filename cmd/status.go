package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"

	"github.com/dayuer/kaapav-go/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and probe the running server",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := configPath
	if path == "" {
		path = config.GetConfigPath()
	}

	fmt.Println("💎 kaapav Status")
	fmt.Println()
	fmt.Printf("Config: %s\n", path)
	fmt.Printf("Provider: %s\n", cfg.WhatsApp.Provider)
	fmt.Printf("Session store: %s\n", cfg.Session.Driver)
	if cfg.History.DSN != "" {
		fmt.Println("History: postgres")
	} else {
		fmt.Println("History: memory")
	}
	fmt.Printf("Translation: %v\n", cfg.Translate.Enabled)

	fmt.Println("\nCredentials:")
	check := func(label string, ok bool) {
		mark := "✗"
		if ok {
			mark = "✓"
		}
		fmt.Printf("  %s: %s\n", label, mark)
	}
	switch cfg.WhatsApp.Provider {
	case "twilio":
		check("Twilio account", cfg.WhatsApp.TwilioAccountSID != "" && cfg.WhatsApp.TwilioAuthToken != "")
		check("Twilio sender", cfg.WhatsApp.TwilioFrom != "")
	default:
		check("Access token", cfg.WhatsApp.AccessToken != "")
		check("Phone number id", cfg.WhatsApp.PhoneNumberID != "")
		check("Verify token", cfg.WhatsApp.VerifyToken != "")
		check("App secret", cfg.WhatsApp.AppSecret != "")
	}
	check("Admin token", cfg.Server.AdminToken != "")

	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	url := fmt.Sprintf("http://%s:%d/health", host, cfg.Server.Port)
	fmt.Printf("\nServer (%s): ", url)

	code, body, errs := fiber.Get(url).Timeout(3 * time.Second).Bytes()
	if len(errs) > 0 {
		fmt.Println("unreachable")
		return nil
	}
	if code != fiber.StatusOK {
		fmt.Printf("HTTP %d\n", code)
		return nil
	}
	var health map[string]any
	if err := json.Unmarshal(body, &health); err != nil {
		fmt.Println("invalid response")
		return nil
	}
	fmt.Printf("%v, up %v\n", health["status"], health["uptime"])
	if rs, ok := health["router"].(map[string]any); ok {
		fmt.Printf("  lanes: %v active / %v total, %v queued\n", rs["activeLanes"], rs["totalLanes"], rs["queuedJobs"])
	}
	return nil
}
