package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// GetConfigPath returns the default config file path (~/.kaapav/config.json).
func GetConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".kaapav", "config.json")
}

// Load reads configuration from a JSON file.
// If path is empty, uses the default config path.
// If the file doesn't exist, returns DefaultConfig().
func Load(path string) (Config, error) {
	if path == "" {
		path = GetConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return Config{}, errors.Wrapf(err, "reading config %s", path)
	}

	cfg := DefaultConfig() // start with defaults so zero-value fields get filled
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}

// LoadWithEnv loads the JSON file, then a .env file (if present), then
// applies environment overrides on top.
func LoadWithEnv(path, envFile string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if envFile == "" {
		envFile = ".env"
	}
	if _, statErr := os.Stat(envFile); statErr == nil {
		if err := godotenv.Load(envFile); err != nil {
			return cfg, errors.Wrapf(err, "loading %s", envFile)
		}
	}
	ApplyEnv(&cfg)
	return cfg, nil
}

// ApplyEnv overrides cfg with any recognised environment variables.
func ApplyEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("WHATSAPP_PROVIDER", &cfg.WhatsApp.Provider)
	str("WHATSAPP_ACCESS_TOKEN", &cfg.WhatsApp.AccessToken)
	str("WHATSAPP_PHONE_NUMBER_ID", &cfg.WhatsApp.PhoneNumberID)
	str("GRAPH_API_VERSION", &cfg.WhatsApp.GraphVersion)
	str("VERIFY_TOKEN", &cfg.WhatsApp.VerifyToken)
	str("WHATSAPP_APP_SECRET", &cfg.WhatsApp.AppSecret)
	str("TWILIO_ACCOUNT_SID", &cfg.WhatsApp.TwilioAccountSID)
	str("TWILIO_AUTH_TOKEN", &cfg.WhatsApp.TwilioAuthToken)
	str("TWILIO_WHATSAPP_FROM", &cfg.WhatsApp.TwilioFrom)

	str("HOST", &cfg.Server.Host)
	num("PORT", &cfg.Server.Port)
	str("ADMIN_TOKEN", &cfg.Server.AdminToken)
	str("PUBLIC_URL", &cfg.Server.PublicURL)

	num("DUPLICATE_WINDOW_MS", &cfg.Router.DedupWindowMs)
	num("RATE_LIMIT_MS", &cfg.Router.RateLimitIntervalMs)
	num("SEND_TIMEOUT_MS", &cfg.Router.SendTimeoutMs)
	num("TRANSLATE_TIMEOUT_MS", &cfg.Router.TranslateTimeoutMs)
	str("COUNTRY_CODE", &cfg.Router.CountryCode)

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Session.RedisURL = v
		cfg.Session.Driver = "redis"
	}
	str("SESSION_DRIVER", &cfg.Session.Driver)
	str("DATABASE_URL", &cfg.History.DSN)

	str("CRM_WEBHOOK_URL", &cfg.Integrations.CRMWebhookURL)
	str("N8N_WEBHOOK_URL", &cfg.Integrations.N8NWebhookURL)

	str("MENU_CATALOG", &cfg.Menus.CatalogPath)
	str("LOG_LEVEL", &cfg.Log.Level)
	if v := os.Getenv("TRANSLATE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Translate.Enabled = b
		}
	}
}

// Save writes configuration to a JSON file.
// If path is empty, uses the default config path.
func Save(cfg Config, path string) error {
	if path == "" {
		path = GetConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "creating config dir")
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
