// Package mailer sends notification emails through the Resend API.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/crexpressinc/formsgate/internal/config"
	"github.com/crexpressinc/formsgate/internal/metrics"
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("email delivery disabled")

// Message is one outbound email. Empty From and To fall back to configuration.
type Message struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	HTML    string
	Tag     string // form type, used for metrics
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendResponse struct {
	ID string `json:"id"`
}

type apiError struct {
	Name       string `json:"name"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// Client talks to the Resend REST API.
type Client struct {
	apiKey string
	from   string
	to     []string
	http   *resty.Client
	log    zerolog.Logger
}

// NewClient creates a mail client.
func NewClient(cfg config.MailConfig, log zerolog.Logger) *Client {
	return &Client{
		apiKey: cfg.ResendAPIKey,
		from:   cfg.From,
		to:     cfg.To,
		http: resty.New().
			SetBaseURL(strings.TrimSuffix(cfg.ResendURL, "/")).
			SetTimeout(15 * time.Second).
			SetHeader("Content-Type", "application/json"),
		log: log.With().Str("component", "mailer").Logger(),
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Send delivers msg and returns the provider message id.
func (c *Client) Send(ctx context.Context, msg Message) (string, error) {
	tag := msg.Tag
	if tag == "" {
		tag = "other"
	}
	if !c.Enabled() {
		c.log.Warn().Str("subject", msg.Subject).Msg("⚠️ RESEND_API_KEY not set, email not sent")
		metrics.RecordEmail(tag, "disabled")
		return "", ErrDisabled
	}

	req := sendRequest{
		From:    msg.From,
		To:      msg.To,
		ReplyTo: msg.ReplyTo,
		Subject: msg.Subject,
		HTML:    msg.HTML,
	}
	if req.From == "" {
		req.From = c.from
	}
	if len(req.To) == 0 {
		req.To = c.to
	}
	if len(req.To) == 0 {
		metrics.RecordEmail(tag, "error")
		return "", fmt.Errorf("email has no recipients")
	}

	var result sendResponse
	var failure apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(req).
		SetResult(&result).
		SetError(&failure).
		Post("/emails")
	if err != nil {
		metrics.RecordEmail(tag, "error")
		return "", fmt.Errorf("send email: %w", err)
	}
	if resp.IsError() {
		metrics.RecordEmail(tag, "error")
		msg := failure.Message
		if msg == "" {
			msg = resp.Status()
		}
		c.log.Error().Int("status", resp.StatusCode()).Str("error", msg).Msg("❌ Resend error")
		return "", fmt.Errorf("send email: %s", msg)
	}

	metrics.RecordEmail(tag, "sent")
	c.log.Info().Str("id", result.ID).Str("subject", req.Subject).Msg("✉️ Email sent")
	return result.ID, nil
}
