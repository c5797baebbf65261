package cmd

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dayuer/kaapav-go/internal/bus"
	"github.com/dayuer/kaapav-go/internal/config"
	"github.com/dayuer/kaapav-go/internal/dedup"
	"github.com/dayuer/kaapav-go/internal/identity"
	"github.com/dayuer/kaapav-go/internal/menu"
	"github.com/dayuer/kaapav-go/internal/ratelimit"
	kredis "github.com/dayuer/kaapav-go/internal/redis"
	"github.com/dayuer/kaapav-go/internal/router"
	"github.com/dayuer/kaapav-go/internal/session"
	"github.com/dayuer/kaapav-go/internal/translate"
)

// loadConfig resolves the config file and .env overrides from the root flags.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath, envFile)
	if err != nil {
		return cfg, errors.Wrap(err, "loading config")
	}
	setupLogging(cfg.Log)
	return cfg, nil
}

// setupLogging applies the log section to the standard logrus logger.
func setupLogging(lc config.LogConfig) {
	logrus.SetOutput(os.Stderr)
	if lc.JSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(strings.ToLower(lc.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// openStore creates the configured session store.
func openStore(ctx context.Context, cfg config.Config) (session.Store, error) {
	lang := cfg.Router.WorkingLanguage
	switch session.StoreType(cfg.Session.Driver) {
	case session.StoreTypeRedis:
		client, err := kredis.Connect(ctx, kredis.Config{URL: cfg.Session.RedisURL})
		if err != nil {
			return nil, err
		}
		return session.NewStore(session.StoreTypeRedis,
			session.WithRedisClient(client),
			session.WithRedisTTL(time.Duration(cfg.Session.TTLHours)*time.Hour),
			session.WithDefaultLanguage(lang),
		)
	default:
		return session.NewStore(session.StoreType(cfg.Session.Driver), session.WithDefaultLanguage(lang))
	}
}

// newLanguageAdapter returns the translator, or the router's identity
// adapter when translation is disabled.
func newLanguageAdapter(cfg config.Config) router.LanguageAdapter {
	if !cfg.Translate.Enabled {
		return nil
	}
	return translate.New(translate.NewClient(cfg.Translate.Endpoint), translate.Config{
		Enabled:         true,
		WorkingLanguage: cfg.Router.WorkingLanguage,
		Timeout:         cfg.Router.TranslateTimeout(),
		CacheTTL:        time.Duration(cfg.Translate.CacheTTLMinutes) * time.Minute,
	})
}

// newRouter builds a Router from cfg around the given store, gateway and sink.
func newRouter(cfg config.Config, store session.Store, gw router.Gateway, sink *bus.MessageBus) (*router.Router, error) {
	catalog, err := menu.Load(cfg.Menus.CatalogPath)
	if err != nil {
		return nil, err
	}
	rc := router.Config{
		Store:      store,
		Gateway:    gw,
		Catalog:    catalog,
		Normalizer: identity.NewNormalizer(cfg.Router.CountryCode),
		Dedup: dedup.New(dedup.Config{
			Window:    cfg.Router.DedupWindow(),
			HighWater: cfg.Router.DedupHighWater,
		}),
		Limiter:     ratelimit.New(ratelimit.Config{Interval: cfg.Router.RateLimitInterval()}),
		SendTimeout: cfg.Router.SendTimeout(),
	}
	if sink != nil {
		rc.Sink = sink
	}
	if lang := newLanguageAdapter(cfg); lang != nil {
		rc.Language = lang
	}
	return router.New(rc)
}
