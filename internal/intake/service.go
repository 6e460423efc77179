// Package intake handles the public lead forms of the website: contact,
// quote requests, job applications and the newsletter.
package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/crexpressinc/formsgate/internal/config"
	"github.com/crexpressinc/formsgate/internal/metrics"
	"github.com/crexpressinc/formsgate/internal/sanitize"
	"github.com/crexpressinc/formsgate/internal/services/mailer"
	"github.com/crexpressinc/formsgate/internal/validation"
)

// Kind identifies a lead form.
type Kind string

const (
	KindContact           Kind = "contact"
	KindServiceQuote      Kind = "service-quote"
	KindLocationQuote     Kind = "location-quote"
	KindDrayageQuote      Kind = "drayage-quote"
	KindNewsletter        Kind = "newsletter"
	KindJobApplication    Kind = "job-application"
	KindDriverApplication Kind = "driver-application"
)

// Kinds lists every lead form.
var Kinds = []Kind{
	KindContact, KindServiceQuote, KindLocationQuote, KindDrayageQuote,
	KindNewsletter, KindJobApplication, KindDriverApplication,
}

var (
	// ErrUnknownKind is returned for a route kind outside Kinds.
	ErrUnknownKind = errors.New("unknown form kind")
	// ErrMalformed means the body could not be decoded into the kind's payload.
	ErrMalformed = errors.New("invalid request body")
	// ErrNotConfigured is returned for the newsletter when no webhook is set.
	ErrNotConfigured = errors.New("newsletter service not configured")
)

// DeliveryError means the lead passed validation but could not be delivered.
// Message is safe to show to the client.
type DeliveryError struct {
	Message string
	Err     error
}

func (e *DeliveryError) Error() string { return e.Message }
func (e *DeliveryError) Unwrap() error { return e.Err }

// envelopeKeys are top-level request fields merged into the form data.
var envelopeKeys = []string{"recaptchaToken", "serviceName", "serviceType", "cityName", "jobTitle", "department"}

// Meta describes the client that sent the form.
type Meta struct {
	IPAddress string
	UserAgent string
}

// Result is returned on success.
type Result struct {
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// Sender sends email.
type Sender interface {
	Send(ctx context.Context, msg mailer.Message) (string, error)
}

// Forwarder delivers payloads to the automation webhook.
type Forwarder interface {
	Forward(ctx context.Context, url string, payload interface{}) error
}

// Captcha verifies bot-protection tokens.
type Captcha interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// Service processes lead submissions.
type Service struct {
	mail    Sender
	fwd     Forwarder
	captcha Captcha
	hooks   config.AutomationConfig
	now     func() time.Time
	log     zerolog.Logger
}

// NewService creates a lead Service.
func NewService(mail Sender, fwd Forwarder, captcha Captcha, hooks config.AutomationConfig, log zerolog.Logger) *Service {
	return &Service{
		mail:    mail,
		fwd:     fwd,
		captcha: captcha,
		hooks:   hooks,
		now:     time.Now,
		log:     log.With().Str("component", "intake").Logger(),
	}
}

// ParseKind maps a route name to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Submit validates, verifies and delivers one lead. raw is the request body,
// either {"formData": {...}, "recaptchaToken": ..., ...} or a flat object.
func (s *Service) Submit(ctx context.Context, kind Kind, raw []byte, meta Meta) (*Result, error) {
	form, ok := newForm(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	data, err := decodeEnvelope(raw)
	if err != nil {
		metrics.RecordSubmission(string(kind), "invalid")
		return nil, err
	}
	if err := bind(data, form); err != nil {
		metrics.RecordSubmission(string(kind), "invalid")
		return nil, err
	}
	if err := validation.Struct(form); err != nil {
		metrics.RecordSubmission(string(kind), "invalid")
		return nil, err
	}

	token, _ := data["recaptchaToken"].(string)
	if err := s.captcha.Verify(ctx, token, meta.IPAddress); err != nil {
		metrics.RecordSubmission(string(kind), "rejected")
		return nil, err
	}

	delete(data, "recaptchaToken")
	clean := sanitize.Map(data)

	if kind == KindNewsletter {
		return s.subscribe(ctx, clean)
	}

	email, err := buildEmail(form)
	if err != nil {
		return nil, err
	}
	html, err := mailer.Render(email.body)
	if err != nil {
		return nil, err
	}
	id, err := s.mail.Send(ctx, mailer.Message{
		ReplyTo: email.replyTo,
		Subject: email.subject,
		HTML:    html,
		Tag:     string(kind),
	})
	if err != nil {
		metrics.RecordSubmission(string(kind), "error")
		s.log.Error().Err(err).Str("kind", string(kind)).Msg("❌ Failed to send lead email")
		return nil, &DeliveryError{Message: "Failed to send email: " + err.Error(), Err: err}
	}

	s.forwardLead(ctx, kind, clean, meta)

	metrics.RecordSubmission(string(kind), "ok")
	s.log.Info().Str("kind", string(kind)).Str("email_id", id).Msg("✅ Lead submitted")
	return &Result{ID: id, Message: successMessage(kind)}, nil
}

// forwardLead posts the lead to the automation webhook. Failures are logged
// only, the email has already gone out.
func (s *Service) forwardLead(ctx context.Context, kind Kind, data map[string]interface{}, meta Meta) {
	if s.hooks.LeadWebhookURL == "" {
		return
	}
	payload := make(map[string]interface{}, len(data)+4)
	for k, v := range data {
		payload[k] = v
	}
	payload["formType"] = string(kind)
	if phone, ok := data["phone"].(string); ok {
		payload["phone"] = sanitize.FormatPhoneUS(phone)
	}
	payload["submittedAt"] = s.now().UTC().Format(time.RFC3339Nano)
	payload["ipAddress"] = nil
	if meta.IPAddress != "" && meta.IPAddress != "unknown" {
		payload["ipAddress"] = meta.IPAddress
	}

	if err := s.fwd.Forward(ctx, s.hooks.LeadWebhookURL, payload); err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Msg("⚠️ Automation webhook failed, lead email already sent")
	}
}

func (s *Service) subscribe(ctx context.Context, data map[string]interface{}) (*Result, error) {
	if s.hooks.NewsletterWebhookURL == "" {
		s.log.Error().Msg("❌ Newsletter webhook URL not configured")
		metrics.RecordSubmission(string(KindNewsletter), "error")
		return nil, ErrNotConfigured
	}
	payload := map[string]interface{}{
		"email":        data["email"],
		"subscribedAt": s.now().UTC().Format(time.RFC3339Nano),
		"source":       "website-footer",
	}
	if name, ok := data["name"].(string); ok && name != "" {
		payload["name"] = name
	}
	if err := s.fwd.Forward(ctx, s.hooks.NewsletterWebhookURL, payload); err != nil {
		metrics.RecordSubmission(string(KindNewsletter), "error")
		return nil, &DeliveryError{Message: "Failed to subscribe. Please try again.", Err: err}
	}
	metrics.RecordSubmission(string(KindNewsletter), "ok")
	return &Result{Message: successMessage(KindNewsletter)}, nil
}

func newForm(kind Kind) (interface{}, bool) {
	switch kind {
	case KindContact:
		return &validation.ContactForm{}, true
	case KindServiceQuote:
		return &validation.ServiceQuoteForm{}, true
	case KindLocationQuote:
		return &validation.LocationQuoteForm{}, true
	case KindDrayageQuote:
		return &validation.DrayageQuoteForm{}, true
	case KindNewsletter:
		return &validation.NewsletterForm{}, true
	case KindJobApplication:
		return &validation.JobApplicationForm{}, true
	case KindDriverApplication:
		return &validation.DriverApplicationForm{}, true
	}
	return nil, false
}

func successMessage(kind Kind) string {
	switch kind {
	case KindContact:
		return "Contact form submitted successfully"
	case KindDrayageQuote:
		return "Drayage quote request submitted successfully"
	case KindServiceQuote, KindLocationQuote:
		return "Quote request submitted successfully"
	case KindJobApplication:
		return "Application submitted successfully"
	case KindDriverApplication:
		return "Driver application submitted successfully"
	case KindNewsletter:
		return "Successfully subscribed to newsletter!"
	}
	return "Submitted successfully"
}

// decodeEnvelope returns the form data of a request body with envelope fields
// merged in. formData may also arrive as a JSON encoded string.
func decodeEnvelope(raw []byte) (map[string]interface{}, error) {
	var body map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil || body == nil {
		return nil, ErrMalformed
	}

	inner, present := body["formData"]
	if !present {
		return body, nil
	}

	var data map[string]interface{}
	switch v := inner.(type) {
	case map[string]interface{}:
		data = v
	case string:
		if err := json.Unmarshal([]byte(v), &data); err != nil || data == nil {
			return nil, ErrMalformed
		}
	default:
		return nil, ErrMalformed
	}

	for _, k := range envelopeKeys {
		if v, ok := body[k]; ok {
			if _, exists := data[k]; !exists {
				data[k] = v
			}
		}
	}
	return data, nil
}

// bind copies decoded data into a form struct. Non-string scalars where a
// string is expected are reported as a malformed body.
func bind(data map[string]interface{}, form interface{}) error {
	b, err := json.Marshal(data)
	if err != nil {
		return ErrMalformed
	}
	if err := json.Unmarshal(b, form); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
