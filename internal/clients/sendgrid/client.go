package sendgrid

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	sg "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
)

type Client interface {
	Send(ctx context.Context, req SendEmailRequest) (*SendEmailResult, error)
}

type Config struct {
	APIKey           string
	DefaultFromEmail string
	DefaultFromName  string
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:           strings.TrimSpace(os.Getenv("SENDGRID_API_KEY")),
		DefaultFromEmail: strings.TrimSpace(os.Getenv("SENDGRID_FROM_EMAIL")),
		DefaultFromName:  strings.TrimSpace(os.Getenv("SENDGRID_FROM_NAME")),
	}
}

func NewFromEnv(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv())
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing SENDGRID_API_KEY")
	}
	return &client{
		log: log.With("client", "SendGridClient"),
		cfg: cfg,
		sg:  sg.NewSendClient(cfg.APIKey),
	}, nil
}

type client struct {
	log *logger.Logger
	cfg Config
	sg  *sg.Client
}

type EmailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type Attachment struct {
	Filename string
	MIMEType string
	Content  []byte
}

type SendEmailRequest struct {
	From        EmailAddress
	To          []EmailAddress
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

type SendEmailResult struct {
	StatusCode int
	MessageID  string
}

func (c *client) Send(ctx context.Context, req SendEmailRequest) (*SendEmailResult, error) {
	if c == nil || c.sg == nil {
		return nil, fmt.Errorf("sendgrid client unavailable")
	}

	if strings.TrimSpace(req.From.Email) == "" {
		req.From.Email = c.cfg.DefaultFromEmail
		if strings.TrimSpace(req.From.Name) == "" {
			req.From.Name = c.cfg.DefaultFromName
		}
	}
	req.From.Email = strings.TrimSpace(req.From.Email)
	req.Subject = strings.TrimSpace(req.Subject)

	if req.From.Email == "" {
		return nil, fmt.Errorf("sendgrid: From.Email required (or set SENDGRID_FROM_EMAIL)")
	}
	if len(req.To) == 0 {
		return nil, fmt.Errorf("sendgrid: at least one recipient required")
	}
	if req.Text == "" && req.HTML == "" {
		return nil, fmt.Errorf("sendgrid: content required (Text or HTML)")
	}

	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(req.From.Name, req.From.Email))
	message.Subject = req.Subject

	p := mail.NewPersonalization()
	for _, to := range req.To {
		p.AddTos(mail.NewEmail(to.Name, to.Email))
	}
	message.AddPersonalizations(p)

	if req.Text != "" {
		message.AddContent(mail.NewContent("text/plain", req.Text))
	}
	if req.HTML != "" {
		message.AddContent(mail.NewContent("text/html", req.HTML))
	}
	for _, a := range req.Attachments {
		if len(a.Content) == 0 {
			continue
		}
		att := mail.NewAttachment()
		att.SetContent(base64.StdEncoding.EncodeToString(a.Content))
		att.SetFilename(a.Filename)
		if a.MIMEType != "" {
			att.SetType(a.MIMEType)
		}
		att.SetDisposition("attachment")
		message.AddAttachment(att)
	}

	resp, err := c.sg.SendWithContext(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		c.log.Error("sendgrid send rejected", "status", resp.StatusCode, "body", strings.TrimSpace(resp.Body))
		return nil, fmt.Errorf("sendgrid http %d: %s", resp.StatusCode, strings.TrimSpace(resp.Body))
	}

	result := &SendEmailResult{StatusCode: resp.StatusCode}
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		result.MessageID = ids[0]
	}
	c.log.Debug("email sent", "status", resp.StatusCode, "to", len(req.To))
	return result, nil
}
