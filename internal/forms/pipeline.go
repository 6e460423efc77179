package forms

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/crexpressinc/formsgate/internal/metrics"
	"github.com/crexpressinc/formsgate/internal/models"
	"github.com/crexpressinc/formsgate/internal/sanitize"
	"github.com/crexpressinc/formsgate/internal/services/pdf"
	"github.com/crexpressinc/formsgate/internal/signedlink"
	"github.com/crexpressinc/formsgate/internal/submissions"
	"github.com/crexpressinc/formsgate/internal/validation"
	"github.com/crexpressinc/formsgate/internal/websocket"
)

var (
	// ErrFormInactive rejects submissions to a closed form.
	ErrFormInactive = errors.New("form is no longer active")
	// ErrInvalidUpload wraps W-9 decoding and content errors.
	ErrInvalidUpload = errors.New("invalid W-9 upload")
)

// SubmissionStore is the part of the submission store the pipeline writes to.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, formID string, payload map[string]interface{}, meta submissions.Metadata) (*models.Submission, error)
	StoreArtifact(ctx context.Context, submissionID string, kind models.ArtifactKind, contentType string, body []byte) (*models.Artifact, error)
	DeleteSubmission(ctx context.Context, id string) (submissions.DeleteResult, error)
	MarkForwarded(ctx context.Context, id string, at time.Time) error
	RecordForwardError(ctx context.Context, id, message string) error
}

// Forwarder delivers payloads to the automation webhook.
type Forwarder interface {
	Forward(ctx context.Context, url string, payload interface{}) error
}

// Publisher receives admin feed events.
type Publisher interface {
	Publish(ev websocket.Event)
}

// PipelineConfig holds the settings of the submission pipeline.
type PipelineConfig struct {
	PublicBaseURL string
	LinkTTL       time.Duration
	WebhookURL    string // onboarding automation endpoint, optional
	MaxUpload     int64
}

// Request is one managed form submission.
type Request struct {
	FormID    string
	Slug      string
	LinkToken string
	Payload   map[string]interface{}
	W9Base64  string
	IPAddress string
	UserAgent string
}

// Result is returned on success.
type Result struct {
	SubmissionID string                         `json:"submission_id"`
	Links        map[models.ArtifactKind]string `json:"links"`
	Forwarded    bool                           `json:"forwarded"`
}

// Pipeline turns form submissions into stored submissions with documents.
type Pipeline struct {
	registry *Registry
	store    SubmissionStore
	issuer   *signedlink.Issuer
	fwd      Forwarder
	events   Publisher
	cfg      PipelineConfig
	now      func() time.Time
	log      zerolog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(registry *Registry, store SubmissionStore, issuer *signedlink.Issuer, fwd Forwarder, events Publisher, cfg PipelineConfig, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		registry: registry,
		store:    store,
		issuer:   issuer,
		fwd:      fwd,
		events:   events,
		cfg:      cfg,
		now:      time.Now,
		log:      log.With().Str("component", "pipeline").Logger(),
	}
}

// Submit stores a submission, renders its documents, issues download links
// and forwards onboarding submissions to automation.
func (p *Pipeline) Submit(ctx context.Context, req Request) (*Result, error) {
	form, err := p.resolveForm(ctx, req)
	if err != nil {
		return nil, err
	}
	if !form.IsActive {
		return nil, ErrFormInactive
	}

	if err := validation.Payload(form.FormType, req.Payload); err != nil {
		metrics.RecordSubmission(form.FormType, "invalid")
		return nil, err
	}

	var w9 []byte
	if strings.TrimSpace(req.W9Base64) != "" {
		if w9, err = decodeUpload(req.W9Base64, p.cfg.MaxUpload); err != nil {
			metrics.RecordSubmission(form.FormType, "invalid")
			return nil, err
		}
	}

	if req.LinkToken != "" {
		if _, err := p.registry.ConsumeLink(ctx, req.LinkToken, form.ID); err != nil {
			return nil, err
		}
	}

	clean := sanitize.Map(req.Payload)
	sub, err := p.store.CreateSubmission(ctx, form.ID, clean, extractMetadata(clean, req))
	if err != nil {
		metrics.RecordSubmission(form.FormType, "error")
		p.releaseLink(ctx, req.LinkToken)
		return nil, err
	}

	if err := p.storeDocuments(ctx, form, sub, w9); err != nil {
		metrics.RecordSubmission(form.FormType, "error")
		p.rollback(ctx, sub.ID, req.LinkToken)
		return nil, err
	}

	res := &Result{SubmissionID: sub.ID, Links: make(map[models.ArtifactKind]string)}
	kinds := []models.ArtifactKind{models.ArtifactOnboarding}
	if w9 != nil {
		kinds = append(kinds, models.ArtifactW9)
	}
	for _, kind := range kinds {
		link, err := p.issuer.IssueLink(sub.ID, string(kind), p.cfg.LinkTTL)
		if err != nil {
			metrics.RecordSubmission(form.FormType, "error")
			p.rollback(ctx, sub.ID, req.LinkToken)
			return nil, fmt.Errorf("issue %s link: %w", kind, err)
		}
		res.Links[kind] = link.AbsoluteURL(p.cfg.PublicBaseURL)
	}

	if forwardsToAutomation(form.FormType) && p.cfg.WebhookURL != "" {
		res.Forwarded = p.forward(ctx, sub, clean, res.Links)
	}

	company := ""
	if sub.CompanyName != nil {
		company = *sub.CompanyName
	}
	p.events.Publish(websocket.Event{
		Type:         websocket.EventSubmissionCreated,
		SubmissionID: sub.ID,
		FormID:       form.ID,
		FormType:     form.FormType,
		CompanyName:  company,
		At:           sub.SubmittedAt,
	})

	metrics.RecordSubmission(form.FormType, "ok")
	p.log.Info().Str("submission_id", sub.ID).Str("form_type", form.FormType).Msg("✅ Form submission completed")
	return res, nil
}

// rollback removes a submission that cannot be completed and gives its form
// link use back, so the sender can retry.
func (p *Pipeline) rollback(ctx context.Context, submissionID, linkToken string) {
	if _, err := p.store.DeleteSubmission(ctx, submissionID); err != nil {
		p.log.Error().Err(err).Str("submission_id", submissionID).Msg("❌ Failed to roll back submission")
	}
	p.releaseLink(ctx, linkToken)
}

func (p *Pipeline) releaseLink(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if err := p.registry.ReleaseLink(ctx, token); err != nil {
		p.log.Error().Err(err).Msg("❌ Failed to release form link")
	}
}

func (p *Pipeline) resolveForm(ctx context.Context, req Request) (*models.Form, error) {
	switch {
	case req.FormID != "":
		return p.registry.Get(ctx, req.FormID)
	case req.Slug != "":
		return p.registry.GetBySlug(ctx, req.Slug)
	}
	return nil, ErrFormNotFound
}

func (p *Pipeline) storeDocuments(ctx context.Context, form *models.Form, sub *models.Submission, w9 []byte) error {
	doc, err := RenderDocument(form, sub)
	if err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if _, err := p.store.StoreArtifact(ctx, sub.ID, models.ArtifactOnboarding, models.ContentTypePDF, doc); err != nil {
		return fmt.Errorf("store onboarding pdf: %w", err)
	}
	if w9 != nil {
		if _, err := p.store.StoreArtifact(ctx, sub.ID, models.ArtifactW9, models.ContentTypePDF, w9); err != nil {
			return fmt.Errorf("store w9: %w", err)
		}
	}
	return nil
}

// RenderDocument renders the PDF of a stored submission.
func RenderDocument(form *models.Form, sub *models.Submission) ([]byte, error) {
	title := "Form Submission"
	if form != nil && form.Name != "" {
		title = form.Name
	}
	return pdf.RenderSubmission(pdf.Document{
		Title:        title,
		SubmissionID: sub.ID,
		SubmittedAt:  sub.SubmittedAt,
		Sections:     pdf.SectionsFromPayload(sub.Payload),
		Meta: []pdf.Field{
			{Label: "IP Address", Value: deref(sub.IPAddress)},
			{Label: "User Agent", Value: deref(sub.UserAgent)},
			{Label: "Browser", Value: deref(sub.Browser)},
		},
	})
}

func (p *Pipeline) forward(ctx context.Context, sub *models.Submission, payload map[string]interface{}, links map[models.ArtifactKind]string) bool {
	body := OnboardingPayload(sub, payload, links, p.now())
	if err := p.fwd.Forward(ctx, p.cfg.WebhookURL, body); err != nil {
		p.log.Error().Err(err).Str("submission_id", sub.ID).Msg("❌ Onboarding webhook failed")
		if rerr := p.store.RecordForwardError(ctx, sub.ID, err.Error()); rerr != nil {
			p.log.Error().Err(rerr).Str("submission_id", sub.ID).Msg("❌ Failed to record webhook error")
		}
		return false
	}
	if err := p.store.MarkForwarded(ctx, sub.ID, p.now()); err != nil {
		p.log.Error().Err(err).Str("submission_id", sub.ID).Msg("❌ Failed to mark submission forwarded")
	}
	return true
}

var nonFilename = regexp.MustCompile(`[^a-zA-Z0-9]`)

// OnboardingPayload builds the automation webhook body of an onboarding
// submission.
func OnboardingPayload(sub *models.Submission, payload map[string]interface{}, links map[models.ArtifactKind]string, now time.Time) map[string]interface{} {
	company := str(payload, "companyLegalName")
	safe := SafeFilename(company)
	ts := now.UnixMilli()

	body := map[string]interface{}{
		"submission_id":           sub.ID,
		"company_name":            company,
		"submitted_at":            sub.SubmittedAt.UTC().Format(time.RFC3339Nano),
		"onboarding_pdf_url":      links[models.ArtifactOnboarding],
		"onboarding_pdf_filename": fmt.Sprintf("Onboarding_%s_%d.pdf", safe, ts),
		"w9_pdf_url":              nil,
		"w9_pdf_filename":         nil,
		"metadata": map[string]interface{}{
			"division": str(payload, "division"),
			"branch": fmt.Sprintf("%s, %s, %s %s",
				str(payload, "branchAddressLine1"), str(payload, "branchCity"),
				str(payload, "branchState"), str(payload, "branchZipCode")),
			"mc":                    orNA(str(payload, "mc")),
			"dot":                   orNA(str(payload, "dot")),
			"scac_code":             orNA(str(payload, "scacCode")),
			"primary_contact_email": str(payload, "primaryContactEmail"),
		},
	}
	if u, ok := links[models.ArtifactW9]; ok {
		body["w9_pdf_url"] = u
		body["w9_pdf_filename"] = fmt.Sprintf("W9_%s_%d.pdf", safe, ts)
	}
	return body
}

// SafeFilename keeps ASCII letters and digits of s, replacing the rest with
// underscores, and caps it at 50 characters.
func SafeFilename(s string) string {
	safe := nonFilename.ReplaceAllString(s, "_")
	if len(safe) > 50 {
		safe = safe[:50]
	}
	return safe
}

// forwardsToAutomation reports whether a form type goes to the onboarding webhook
func forwardsToAutomation(formType string) bool {
	return formType == models.FormTypeCarrierOnboarding
}

// decodeUpload decodes a base64 PDF, optionally given as a data URL.
func decodeUpload(encoded string, max int64) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if i := strings.Index(encoded, ";base64,"); strings.HasPrefix(encoded, "data:") && i >= 0 {
		encoded = encoded[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}
	if err := validation.PDF(data, max); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUpload, err)
	}
	return data, nil
}

func extractMetadata(payload map[string]interface{}, req Request) submissions.Metadata {
	name := strings.TrimSpace(str(payload, "primaryContactFirstName") + " " + str(payload, "primaryContactLastName"))
	if name == "" {
		name = first(payload, "name", "contactName", "driverName", "employeeName")
	}
	browser := ""
	if fields := strings.Fields(req.UserAgent); len(fields) > 0 {
		browser = fields[0]
	}
	return submissions.Metadata{
		SubmitterName:  name,
		SubmitterEmail: first(payload, "primaryContactEmail", "email", "contactEmail"),
		SubmitterPhone: first(payload, "primaryContactPhone", "phone", "contactPhone"),
		CompanyName:    first(payload, "companyLegalName", "companyName", "company"),
		IPAddress:      req.IPAddress,
		UserAgent:      req.UserAgent,
		Browser:        browser,
	}
}

// str reads a payload value as plain (unescaped) text
func str(m map[string]interface{}, key string) string {
	return strings.TrimSpace(pdf.FormatValue(m[key]))
}

func first(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v := str(m, k); v != "" {
			return v
		}
	}
	return ""
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return "N/A"
	}
	return *s
}
