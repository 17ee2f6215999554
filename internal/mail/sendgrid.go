// Package mail sends transactional email through the SendGrid v3 API.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/prodhub/production-api/internal/config"
	"github.com/prodhub/production-api/internal/queue"
)

const (
	resetSubject = "Reset your Production Management password"
	sendEndpoint = "/v3/mail/send"
)

var resetTemplate = template.Must(template.New("reset").Parse(`<div style="font-family: Arial, sans-serif; color: #0b0f1a;">
  <h2 style="margin-bottom: 12px;">Reset your password</h2>
  <p>{{if .Name}}Hi {{.Name}},{{else}}Hi there,{{end}}</p>
  <p>We received a request to reset your password for the Production Management System.</p>
  <p>
    <a href="{{.Link}}" style="display: inline-block; background: #ff7a00; color: #fff; padding: 10px 18px; border-radius: 6px; text-decoration: none;">Reset password</a>
  </p>
  <p>If you did not request this, you can safely ignore this email.</p>
</div>`))

// Client posts messages to SendGrid.  A client without API key or sender
// address logs and skips every send.
type Client struct {
	cfg  config.MailConfig
	rest *rest.Client
	log  *slog.Logger
}

func NewClient(cfg config.MailConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:  cfg,
		rest: &rest.Client{HTTPClient: &http.Client{Timeout: 10 * time.Second}},
		log:  logger.With("component", "mail"),
	}
}

// Configured reports whether sends will actually reach SendGrid.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != "" && c.cfg.From != ""
}

// SendPasswordReset mails the reset link in ev to its recipient.
func (c *Client) SendPasswordReset(ctx context.Context, ev queue.PasswordResetRequested) error {
	if !c.Configured() {
		c.log.WarnContext(ctx, "sendgrid is not configured; skipping reset email", "user_id", ev.UserID)
		return nil
	}
	var html bytes.Buffer
	if err := resetTemplate.Execute(&html, struct{ Name, Link string }{ev.Name, ev.ResetLink}); err != nil {
		return fmt.Errorf("render reset email: %w", err)
	}
	text := "Reset your Production Management password: " + ev.ResetLink
	msg := sgmail.NewV3MailInit(
		sgmail.NewEmail("", c.cfg.From),
		resetSubject,
		sgmail.NewEmail(ev.Name, ev.To),
		sgmail.NewContent("text/plain", text),
		sgmail.NewContent("text/html", html.String()),
	)
	return c.send(ctx, msg)
}

func (c *Client) send(ctx context.Context, msg *sgmail.SGMailV3) error {
	req := sendgrid.GetRequest(c.cfg.APIKey, sendEndpoint, strings.TrimRight(c.cfg.BaseURL, "/"))
	req.Method = rest.Post
	req.Body = sgmail.GetRequestBody(msg)

	resp, err := c.rest.SendWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if resp.StatusCode >= 300 {
		body := resp.Body
		if len(body) > 1024 {
			body = body[:1024]
		}
		return fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, strings.TrimSpace(body))
	}
	return nil
}
