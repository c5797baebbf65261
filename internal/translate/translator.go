package translate

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Backend performs one translation call.
type Backend interface {
	Translate(ctx context.Context, text, source, target string) (Result, error)
}

// Config configures a Translator.
type Config struct {
	Enabled         bool
	WorkingLanguage string        // pivot language for routing (default "en")
	Timeout         time.Duration // per call (default 3s)
	CacheTTL        time.Duration // outbound translation cache (default 1h)
}

// Translator is the best-effort Language Adapter. It never returns an error.
type Translator struct {
	backend Backend
	cfg     Config
	cache   *cache.Cache
	log     *logrus.Entry
}

// New creates a Translator over backend.
func New(backend Backend, cfg Config) *Translator {
	if cfg.WorkingLanguage == "" {
		cfg.WorkingLanguage = "en"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return &Translator{
		backend: backend,
		cfg:     cfg,
		cache:   cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		log:     logrus.WithField("component", "translate"),
	}
}

// WorkingLanguage returns the pivot language.
func (t *Translator) WorkingLanguage() string {
	return t.cfg.WorkingLanguage
}

// DetectAndTranslateToWorking pivots text into the working language.
// On any failure it returns the original text tagged with the working language.
func (t *Translator) DetectAndTranslateToWorking(ctx context.Context, text string) Result {
	identity := Result{Text: text, Language: t.cfg.WorkingLanguage}
	if !t.cfg.Enabled || t.backend == nil || strings.TrimSpace(text) == "" {
		return identity
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	res, err := t.backend.Translate(ctx, text, "auto", t.cfg.WorkingLanguage)
	if err != nil {
		t.log.WithError(err).Debug("inbound translation failed, using original text")
		return identity
	}
	if strings.TrimSpace(res.Text) == "" {
		res.Text = text
	}
	if res.Language == "" {
		res.Language = t.cfg.WorkingLanguage
	}
	return res
}

// TranslateFromWorking localizes text into target. Results are cached;
// failures return text unchanged and are not cached.
func (t *Translator) TranslateFromWorking(ctx context.Context, text, target string) string {
	target = normalizeLang(target)
	if !t.cfg.Enabled || t.backend == nil || target == "" || target == t.cfg.WorkingLanguage || strings.TrimSpace(text) == "" {
		return text
	}

	key := target + "\x00" + text
	if v, ok := t.cache.Get(key); ok {
		return v.(string)
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	res, err := t.backend.Translate(ctx, text, t.cfg.WorkingLanguage, target)
	if err != nil || strings.TrimSpace(res.Text) == "" {
		if err != nil {
			t.log.WithError(err).WithField("target", target).Debug("outbound translation failed")
		}
		return text
	}
	t.cache.Set(key, res.Text, cache.DefaultExpiration)
	return res.Text
}
