// Package translate is the Language Adapter: it detects the language of
// inbound text, pivots it to the working language for routing, and
// localizes outbound menu text. Every public method falls back to the
// original text on failure.
package translate

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"
)

// DefaultEndpoint is the keyless Google Translate endpoint.
const DefaultEndpoint = "https://translate.googleapis.com/translate_a/single"

// Result is a translated text plus the detected source language.
type Result struct {
	Text     string `json:"translatedText"`
	Language string `json:"detectedLanguage"`
}

// Client talks to the gtx translate endpoint.
type Client struct {
	Endpoint   string
	HTTPClient *http.Client
}

// NewClient creates a Client. An empty endpoint uses DefaultEndpoint.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Translate translates text from source ("auto" to detect) into target.
func (c *Client) Translate(ctx context.Context, text, source, target string) (Result, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", source)
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return Result{}, errors.Wrap(err, "building translate request")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Result{}, errors.Wrap(err, "translate request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, errors.Wrap(err, "reading translate response")
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, errors.Errorf("translate: HTTP %d", resp.StatusCode)
	}
	return parseResponse(body)
}

// parseResponse reads the positional gtx payload:
// [[["translated","original",...],...], null, "detected", ...]
func parseResponse(body []byte) (Result, error) {
	var parts []string
	var parseErr error
	_, err := jsonparser.ArrayEach(body, func(seg []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if dataType != jsonparser.Array {
			return
		}
		s, err := jsonparser.GetString(seg, "[0]")
		if err != nil {
			parseErr = err
			return
		}
		parts = append(parts, s)
	}, "[0]")
	if err != nil {
		return Result{}, errors.Wrap(err, "parsing translate segments")
	}
	if parseErr != nil {
		return Result{}, errors.Wrap(parseErr, "parsing translate segment")
	}

	lang, err := jsonparser.GetString(body, "[2]")
	if err != nil {
		lang = ""
	}
	return Result{Text: strings.Join(parts, ""), Language: normalizeLang(lang)}, nil
}

// normalizeLang trims region suffixes ("en-US" -> "en").
func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}
