// Package webhook forwards submissions to the automation tool (Zapier).
package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/crexpressinc/formsgate/internal/metrics"
)

// ErrNoEndpoint is returned when the target URL is empty.
var ErrNoEndpoint = errors.New("webhook endpoint not configured")

// maxErrorBody caps the response text kept in error messages.
const maxErrorBody = 500

// Forwarder posts JSON payloads to webhook endpoints.
type Forwarder struct {
	http *resty.Client
	log  zerolog.Logger
}

// NewForwarder creates a Forwarder.
func NewForwarder(log zerolog.Logger) *Forwarder {
	return &Forwarder{
		http: resty.New().
			SetTimeout(20*time.Second).
			SetHeader("Content-Type", "application/json"),
		log: log.With().Str("component", "webhook").Logger(),
	}
}

// Forward posts payload to url. Any non-2xx response is an error of the
// form "HTTP <status>: <body>".
func (f *Forwarder) Forward(ctx context.Context, url string, payload interface{}) error {
	if strings.TrimSpace(url) == "" {
		return ErrNoEndpoint
	}

	resp, err := f.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(url)
	if err != nil {
		metrics.RecordForward("error")
		f.log.Error().Err(err).Msg("❌ Webhook delivery failed")
		return fmt.Errorf("webhook request: %w", err)
	}
	if resp.IsError() {
		metrics.RecordForward("error")
		body := strings.TrimSpace(resp.String())
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		f.log.Error().Int("status", resp.StatusCode()).Str("body", body).Msg("❌ Webhook rejected payload")
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode(), body)
	}

	metrics.RecordForward("ok")
	f.log.Debug().Int("status", resp.StatusCode()).Msg("✅ Webhook delivered")
	return nil
}
