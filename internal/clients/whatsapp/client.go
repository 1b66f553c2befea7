package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/wappstudy/wappstudy-backend/internal/pkg/envutil"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/httpx"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
)

// Client sends messages through the Meta WhatsApp Cloud API.
type Client interface {
	SendText(ctx context.Context, to string, body string) (*SendResult, error)
	SendDocument(ctx context.Context, to string, link string, filename string, caption string) (*SendResult, error)
	SendImages(ctx context.Context, to string, images []Image) error
	SendInteractiveButtons(ctx context.Context, to string, body string, buttons []Button) (*SendResult, error)
	SendInteractiveList(ctx context.Context, to string, req ListRequest) (*SendResult, error)
}

type Config struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	Timeout       time.Duration
	MaxRetries    int
}

func ConfigFromEnv() Config {
	timeoutSec := envutil.Int("WHATSAPP_TIMEOUT_SECONDS", 30)
	maxRetries := envutil.Int("WHATSAPP_MAX_RETRIES", 4)

	return Config{
		AccessToken:   strings.TrimSpace(os.Getenv("WHATSAPP_ACCESS_TOKEN")),
		PhoneNumberID: strings.TrimSpace(os.Getenv("WHATSAPP_PHONE_NUMBER_ID")),
		BaseURL:       strings.TrimSpace(os.Getenv("WHATSAPP_BASE_URL")),
		Timeout:       time.Duration(timeoutSec) * time.Second,
		MaxRetries:    maxRetries,
	}
}

func NewFromEnv(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv())
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	cfg.AccessToken = strings.TrimSpace(cfg.AccessToken)
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("missing WHATSAPP_ACCESS_TOKEN")
	}
	cfg.PhoneNumberID = strings.TrimSpace(cfg.PhoneNumberID)
	if cfg.PhoneNumberID == "" {
		return nil, fmt.Errorf("missing WHATSAPP_PHONE_NUMBER_ID")
	}

	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://graph.facebook.com/v22.0"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 4
	}

	return &client{
		log:        log.With("client", "WhatsappClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
	maxRetries int
}

type Image struct {
	URL     string
	Caption string
}

type Button struct {
	ID    string
	Title string
}

type ListRow struct {
	ID          string
	Title       string
	Description string
}

type ListRequest struct {
	Header     string
	Body       string
	Footer     string
	ButtonText string
	Rows       []ListRow
}

type SendResult struct {
	MessageID string
}

// --- Cloud API wire types ---

type messagePayload struct {
	MessagingProduct string              `json:"messaging_product"`
	RecipientType    string              `json:"recipient_type"`
	To               string              `json:"to"`
	Type             string              `json:"type"`
	Text             *textPayload        `json:"text,omitempty"`
	Document         *documentPayload    `json:"document,omitempty"`
	Image            *imagePayload       `json:"image,omitempty"`
	Interactive      *interactivePayload `json:"interactive,omitempty"`
}

type textPayload struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type documentPayload struct {
	Link     string `json:"link"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type imagePayload struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

type interactivePayload struct {
	Type   string             `json:"type"`
	Header *interactiveText   `json:"header,omitempty"`
	Body   interactiveText    `json:"body"`
	Footer *interactiveText   `json:"footer,omitempty"`
	Action *interactiveAction `json:"action,omitempty"`
}

type interactiveText struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
}

type interactiveAction struct {
	Button   string              `json:"button,omitempty"`
	Buttons  []interactiveButton `json:"buttons,omitempty"`
	Sections []listSection       `json:"sections,omitempty"`
}

type interactiveButton struct {
	Type  string      `json:"type"`
	Reply buttonReply `json:"reply"`
}

type buttonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type listSection struct {
	Title string        `json:"title,omitempty"`
	Rows  []listRowWire `json:"rows"`
}

type listRowWire struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (c *client) SendText(ctx context.Context, to string, body string) (*SendResult, error) {
	to = strings.TrimSpace(to)
	body = strings.TrimSpace(body)
	if to == "" {
		return nil, fmt.Errorf("whatsapp: to required")
	}
	if body == "" {
		return nil, fmt.Errorf("whatsapp: body required")
	}

	return c.send(ctx, messagePayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &textPayload{PreviewURL: false, Body: body},
	})
}

func (c *client) SendDocument(ctx context.Context, to string, link string, filename string, caption string) (*SendResult, error) {
	to = strings.TrimSpace(to)
	link = strings.TrimSpace(link)
	if to == "" {
		return nil, fmt.Errorf("whatsapp: to required")
	}
	if link == "" {
		return nil, fmt.Errorf("whatsapp: document link required")
	}

	return c.send(ctx, messagePayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "document",
		Document: &documentPayload{
			Link:     link,
			Caption:  strings.TrimSpace(caption),
			Filename: strings.TrimSpace(filename),
		},
	})
}

// SendImages sends each image as its own message; a failed send aborts the rest.
func (c *client) SendImages(ctx context.Context, to string, images []Image) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("whatsapp: to required")
	}

	for _, img := range images {
		link := strings.TrimSpace(img.URL)
		if link == "" {
			continue
		}
		_, err := c.send(ctx, messagePayload{
			MessagingProduct: "whatsapp",
			RecipientType:    "individual",
			To:               to,
			Type:             "image",
			Image:            &imagePayload{Link: link, Caption: strings.TrimSpace(img.Caption)},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// SendInteractiveButtons sends a reply-button message. The Cloud API allows at
// most three buttons; extras are dropped.
func (c *client) SendInteractiveButtons(ctx context.Context, to string, body string, buttons []Button) (*SendResult, error) {
	to = strings.TrimSpace(to)
	body = strings.TrimSpace(body)
	if to == "" {
		return nil, fmt.Errorf("whatsapp: to required")
	}
	if body == "" {
		return nil, fmt.Errorf("whatsapp: body required")
	}
	if len(buttons) == 0 {
		return nil, fmt.Errorf("whatsapp: at least one button required")
	}
	if len(buttons) > 3 {
		buttons = buttons[:3]
	}

	wire := make([]interactiveButton, 0, len(buttons))
	for _, b := range buttons {
		wire = append(wire, interactiveButton{
			Type:  "reply",
			Reply: buttonReply{ID: strings.TrimSpace(b.ID), Title: strings.TrimSpace(b.Title)},
		})
	}

	return c.send(ctx, messagePayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
		Interactive: &interactivePayload{
			Type:   "button",
			Body:   interactiveText{Text: body},
			Action: &interactiveAction{Buttons: wire},
		},
	})
}

func (c *client) SendInteractiveList(ctx context.Context, to string, req ListRequest) (*SendResult, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return nil, fmt.Errorf("whatsapp: to required")
	}
	if strings.TrimSpace(req.Body) == "" {
		return nil, fmt.Errorf("whatsapp: body required")
	}
	if len(req.Rows) == 0 {
		return nil, fmt.Errorf("whatsapp: at least one row required")
	}

	rows := make([]listRowWire, 0, len(req.Rows))
	for _, r := range req.Rows {
		rows = append(rows, listRowWire{
			ID:          strings.TrimSpace(r.ID),
			Title:       strings.TrimSpace(r.Title),
			Description: strings.TrimSpace(r.Description),
		})
	}

	interactive := &interactivePayload{
		Type: "list",
		Body: interactiveText{Text: strings.TrimSpace(req.Body)},
		Action: &interactiveAction{
			Button:   strings.TrimSpace(req.ButtonText),
			Sections: []listSection{{Rows: rows}},
		},
	}
	if h := strings.TrimSpace(req.Header); h != "" {
		interactive.Header = &interactiveText{Type: "text", Text: h}
	}
	if f := strings.TrimSpace(req.Footer); f != "" {
		interactive.Footer = &interactiveText{Text: f}
	}

	return c.send(ctx, messagePayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
		Interactive:      interactive,
	})
}

// ---------- HTTP / retry helpers ----------

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "whatsapp: <nil error>"
	}
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 4000 {
		msg = msg[:4000] + "..."
	}
	return fmt.Sprintf("whatsapp http %d: %s", e.StatusCode, msg)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) send(ctx context.Context, payload messagePayload) (*SendResult, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("whatsapp client unavailable")
	}

	endpoint := fmt.Sprintf("%s/%s/messages", c.cfg.BaseURL, c.cfg.PhoneNumberID)
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		out, resp, err := c.sendOnce(ctx, endpoint, payload)
		if err == nil {
			return out, nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return nil, err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("WhatsApp request retrying",
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}

	return nil, fmt.Errorf("unreachable retry loop")
}

func (c *client) sendOnce(ctx context.Context, endpoint string, payload messagePayload) (*SendResult, *http.Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, resp, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var decoded sendResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, resp, fmt.Errorf("whatsapp decode error: %w; raw=%s", err, string(raw))
	}

	result := &SendResult{}
	if len(decoded.Messages) > 0 {
		result.MessageID = decoded.Messages[0].ID
	}
	return result, resp, nil
}
