package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dayuer/kaapav-go/internal/menu"
	"github.com/dayuer/kaapav-go/internal/utils"
)

// Graph API body limits.
const (
	maxTextRunes        = 4096
	maxInteractiveRunes = 1024
	maxFooterRunes      = 60
)

// APIError is a non-2xx Graph API response.
type APIError struct {
	Status  int
	Code    int64
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph api %d (code %d): %s", e.Status, e.Code, e.Message)
}

// CloudClient sends messages through the WhatsApp Cloud API.
type CloudClient struct {
	BaseURL       string
	Version       string
	PhoneNumberID string
	AccessToken   string
	HTTPClient    *http.Client

	log *logrus.Entry
}

// NewCloudClient creates a Cloud API client.
func NewCloudClient(baseURL, version, phoneNumberID, accessToken string) *CloudClient {
	if baseURL == "" {
		baseURL = "https://graph.facebook.com"
	}
	if version == "" {
		version = "v17.0"
	}
	return &CloudClient{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		Version:       version,
		PhoneNumberID: phoneNumberID,
		AccessToken:   accessToken,
		HTTPClient:    &http.Client{Timeout: 15 * time.Second},
		log:           logrus.WithField("component", "cloudapi"),
	}
}

type textBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type replyButton struct {
	Type  string `json:"type"`
	Reply struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"reply"`
}

type interactive struct {
	Type string `json:"type"`
	Body struct {
		Text string `json:"text"`
	} `json:"body"`
	Footer *struct {
		Text string `json:"text"`
	} `json:"footer,omitempty"`
	Action struct {
		Buttons []replyButton `json:"buttons"`
	} `json:"action"`
}

type outbound struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             *textBody    `json:"text,omitempty"`
	Interactive      *interactive `json:"interactive,omitempty"`
}

// SendText sends a plain text message with link previews.
func (c *CloudClient) SendText(ctx context.Context, to, text string) error {
	msg := outbound{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &textBody{PreviewURL: true, Body: utils.TruncateRunes(text, maxTextRunes)},
	}
	_, err := c.post(ctx, msg)
	return err
}

// SendButtons sends a reply-button message. Callers clamp buttons first;
// this only enforces the body limits.
func (c *CloudClient) SendButtons(ctx context.Context, to, body string, buttons []menu.Button, footer string) error {
	in := &interactive{Type: "button"}
	in.Body.Text = utils.TruncateRunes(body, maxInteractiveRunes)
	if footer = strings.TrimSpace(footer); footer != "" {
		in.Footer = &struct {
			Text string `json:"text"`
		}{Text: utils.TruncateRunes(footer, maxFooterRunes)}
	}
	for _, b := range buttons {
		rb := replyButton{Type: "reply"}
		rb.Reply.ID = b.ID
		rb.Reply.Title = b.Title
		in.Action.Buttons = append(in.Action.Buttons, rb)
	}

	msg := outbound{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
		Interactive:      in,
	}
	_, err := c.post(ctx, msg)
	return err
}

// post sends msg and returns the provider message id.
func (c *CloudClient) post(ctx context.Context, msg outbound) (string, error) {
	if c.AccessToken == "" || c.PhoneNumberID == "" {
		return "", errors.New("cloud api credentials not configured")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", errors.Wrap(err, "encoding message")
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.BaseURL, c.Version, c.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "building request")
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "sending message")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "reading response")
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		apiErr.Message, _ = jsonparser.GetString(body, "error", "message")
		apiErr.Code, _ = jsonparser.GetInt(body, "error", "code")
		if apiErr.Message == "" {
			apiErr.Message = utils.Preview(string(body), 200)
		}
		return "", apiErr
	}

	id, _ := jsonparser.GetString(body, "messages", "[0]", "id")
	c.log.WithFields(logrus.Fields{"to": utils.MaskPhone(msg.To), "type": msg.Type, "id": id}).Debug("message sent")
	return id, nil
}
