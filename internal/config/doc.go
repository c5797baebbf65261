// Package config handles configuration loading, saving, and schema definition.
package config

import "time"

// Config is the top-level kaapav configuration.
// Uses json tags in camelCase to match the JSON config file format.
type Config struct {
	WhatsApp     WhatsAppConfig     `json:"whatsapp"`
	Server       ServerConfig       `json:"server"`
	Router       RouterConfig       `json:"router"`
	Session      SessionConfig      `json:"session"`
	History      HistoryConfig      `json:"history"`
	Translate    TranslateConfig    `json:"translate"`
	Integrations IntegrationsConfig `json:"integrations"`
	Menus        MenusConfig        `json:"menus"`
	Log          LogConfig          `json:"log"`
}

// WhatsAppConfig holds outbound gateway and webhook settings.
type WhatsAppConfig struct {
	Provider      string `json:"provider,omitempty"` // "cloudapi" or "twilio"
	PhoneNumberID string `json:"phoneNumberId,omitempty"`
	AccessToken   string `json:"accessToken,omitempty"`
	GraphVersion  string `json:"graphVersion,omitempty"`
	GraphBaseURL  string `json:"graphBaseUrl,omitempty"`
	VerifyToken   string `json:"verifyToken,omitempty"`
	AppSecret     string `json:"appSecret,omitempty"` // X-Hub-Signature-256 key

	TwilioAccountSID string `json:"twilioAccountSid,omitempty"`
	TwilioAuthToken  string `json:"twilioAuthToken,omitempty"`
	TwilioFrom       string `json:"twilioFrom,omitempty"` // e.g. "whatsapp:+14155238886"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host       string `json:"host,omitempty"`
	Port       int    `json:"port,omitempty"`
	AdminToken string `json:"adminToken,omitempty"`
	PublicURL  string `json:"publicUrl,omitempty"` // used to validate Twilio signatures
}

// RouterConfig holds routing guard settings. Durations are milliseconds.
type RouterConfig struct {
	DedupWindowMs       int    `json:"dedupWindowMs,omitempty"`
	DedupHighWater      int    `json:"dedupHighWater,omitempty"`
	RateLimitIntervalMs int    `json:"rateLimitIntervalMs,omitempty"`
	SendTimeoutMs       int    `json:"sendTimeoutMs,omitempty"`
	TranslateTimeoutMs  int    `json:"translateTimeoutMs,omitempty"`
	WorkingLanguage     string `json:"workingLanguage,omitempty"`
	CountryCode         string `json:"countryCode,omitempty"`
}

// DedupWindow returns the dedup window as a duration.
func (r RouterConfig) DedupWindow() time.Duration {
	return time.Duration(r.DedupWindowMs) * time.Millisecond
}

// RateLimitInterval returns the per-user send interval.
func (r RouterConfig) RateLimitInterval() time.Duration {
	return time.Duration(r.RateLimitIntervalMs) * time.Millisecond
}

// SendTimeout bounds a single gateway call.
func (r RouterConfig) SendTimeout() time.Duration {
	return time.Duration(r.SendTimeoutMs) * time.Millisecond
}

// TranslateTimeout bounds a single translation call.
func (r RouterConfig) TranslateTimeout() time.Duration {
	return time.Duration(r.TranslateTimeoutMs) * time.Millisecond
}

// SessionConfig selects the session store driver.
type SessionConfig struct {
	Driver   string `json:"driver,omitempty"` // "memory" or "redis"
	RedisURL string `json:"redisUrl,omitempty"`
	TTLHours int    `json:"ttlHours,omitempty"`
}

// HistoryConfig holds message log settings. Empty DSN keeps history in memory.
type HistoryConfig struct {
	DSN string `json:"dsn,omitempty"`
}

// TranslateConfig holds Language Adapter settings.
type TranslateConfig struct {
	Enabled         bool   `json:"enabled"`
	Endpoint        string `json:"endpoint,omitempty"`
	CacheTTLMinutes int    `json:"cacheTtlMinutes,omitempty"`
}

// IntegrationsConfig holds optional outbound webhook targets.
type IntegrationsConfig struct {
	CRMWebhookURL string `json:"crmWebhookUrl,omitempty"`
	N8NWebhookURL string `json:"n8nWebhookUrl,omitempty"`
	TimeoutMs     int    `json:"timeoutMs,omitempty"`
}

// MenusConfig points at an optional YAML catalog override.
type MenusConfig struct {
	CatalogPath string `json:"catalogPath,omitempty"`
}

// LogConfig holds logrus settings.
type LogConfig struct {
	Level string `json:"level,omitempty"`
	JSON  bool   `json:"json,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		WhatsApp: WhatsAppConfig{
			Provider:     "cloudapi",
			GraphVersion: "v17.0",
			GraphBaseURL: "https://graph.facebook.com",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5555,
		},
		Router: RouterConfig{
			DedupWindowMs:       20000,
			DedupHighWater:      5000,
			RateLimitIntervalMs: 900,
			SendTimeoutMs:       5000,
			TranslateTimeoutMs:  3000,
			WorkingLanguage:     "en",
			CountryCode:         "91",
		},
		Session: SessionConfig{
			Driver:   "memory",
			TTLHours: 24 * 30,
		},
		Translate: TranslateConfig{
			Enabled:         true,
			Endpoint:        "https://translate.googleapis.com/translate_a/single",
			CacheTTLMinutes: 60,
		},
		Integrations: IntegrationsConfig{
			TimeoutMs: 15000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
